// Package cli provides output utilities for exporting solver results.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/agbru/ddsolve/internal/solver"
)

// OutputConfig holds configuration for result output.
type OutputConfig struct {
	// OutputFile is the path to save the solution (empty for no file output).
	OutputFile string
	// Quiet mode suppresses verbose output.
	Quiet bool
	// Verbose shows the full solution vector.
	Verbose bool
	// Details shows the work counters and phase breakdown.
	Details bool
}

// WriteResultToFile writes a solution to a file: a commented header with
// the run metadata followed by one "index value" line per coordinate.
//
// Parameters:
//   - res: The solve result.
//   - system: A short description of the solved system.
//   - config: Output configuration.
//
// Returns:
//   - error: An error if the file cannot be written.
func WriteResultToFile(res *solver.Result, system string, config OutputConfig) error {
	if config.OutputFile == "" {
		return nil
	}

	dir := filepath.Dir(config.OutputFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "# ddsolve solution\n")
	fmt.Fprintf(file, "# Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(file, "# System: %s\n", system)
	fmt.Fprintf(file, "# Method: %s\n", res.Method)
	fmt.Fprintf(file, "# Status: %s\n", res.Status)
	fmt.Fprintf(file, "# Iterations: %d\n", res.Iterations)
	fmt.Fprintf(file, "# Relative residual: %.6e\n", res.RelativeResidual)
	fmt.Fprintf(file, "# Error bound: %.6e (%s)\n", res.Certificate.ErrorBound, res.Certificate.Source)
	fmt.Fprintf(file, "# Duration: %s\n", res.Stats.Runtime)

	buf := make([]byte, 0, 64)
	for i, v := range res.X {
		buf = strconv.AppendInt(buf[:0], int64(i), 10)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := file.Write(buf); err != nil {
			return fmt.Errorf("failed to write solution: %w", err)
		}
	}
	return nil
}

// FormatQuietResult formats a result for quiet mode output: status,
// iterations and relative residual on a single line suitable for scripting.
func FormatQuietResult(res *solver.Result) string {
	return fmt.Sprintf("%s %d %.6e", res.Status, res.Iterations, res.RelativeResidual)
}

// FormatQuietEstimate formats an estimate as "value bound".
func FormatQuietEstimate(est *solver.Estimate) string {
	return fmt.Sprintf("%.17g %.6e", est.Value, est.ErrorBound())
}

// DisplayQuietResult outputs a result in quiet mode (minimal output).
func DisplayQuietResult(out io.Writer, res *solver.Result) {
	fmt.Fprintln(out, FormatQuietResult(res))
}

// DisplayResultWithConfig displays a result with the given output
// configuration and saves it when a file is requested.
//
// Parameters:
//   - out: The output writer.
//   - res: The solve result.
//   - system: A short description of the solved system.
//   - config: Output configuration.
//
// Returns:
//   - error: An error if file output fails.
func DisplayResultWithConfig(out io.Writer, res *solver.Result, system string, config OutputConfig) error {
	if config.Quiet {
		DisplayQuietResult(out, res)
	} else {
		DisplayResult(res, config.Verbose, config.Details, out)
	}

	if config.OutputFile != "" {
		if err := WriteResultToFile(res, system, config); err != nil {
			return err
		}
		if !config.Quiet {
			fmt.Fprintf(out, "\n%s✓ Solution saved to: %s%s%s\n",
				ColorGreen(), ColorCyan(), config.OutputFile, ColorReset())
		}
	}
	return nil
}

// PrintSnapshot writes one line per streamed iteration.
func PrintSnapshot(out io.Writer, snap solver.Snapshot) {
	m := snap.Metrics
	phase := ""
	if snap.Phase != "" {
		phase = fmt.Sprintf(" [%s]", snap.Phase)
	}
	rate := "-"
	if m.ConvergenceRate > 0 {
		rate = strconv.FormatFloat(m.ConvergenceRate, 'f', 4, 64)
	}
	fmt.Fprintf(out, "%s%6d%s  residual %s%.6e%s  rate %s  %s%s\n",
		ColorMagenta(), snap.Iteration, ColorReset(),
		ColorCyan(), m.RelativeResidualNorm, ColorReset(),
		rate, FormatExecutionDuration(snap.Elapsed), phase)
}
