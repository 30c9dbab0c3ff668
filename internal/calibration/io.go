package calibration

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/agbru/ddsolve/internal/cli"
	"github.com/agbru/ddsolve/internal/config"
)

// thresholdLabel renders a threshold, naming the sequential sentinel.
func thresholdLabel(threshold int) string {
	if threshold >= SequentialThreshold {
		return "Sequential"
	}
	return fmt.Sprintf("%d nnz", threshold)
}

func timingLabel(d time.Duration) string {
	if d < time.Microsecond {
		return "< 1µs"
	}
	return cli.FormatExecutionDuration(d)
}

// printCalibrationResults formats and prints the calibration results table.
// The row at the chosen threshold is marked optimal.
func printCalibrationResults(out io.Writer, results ThresholdResults) {
	fmt.Fprintf(out, "\n--- Calibration Summary ---\n")
	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "  %sNonzeros%s     │ %sSequential%s   │ %sParallel%s     │ %sSpeedup%s\n",
		cli.ColorUnderline(), cli.ColorReset(), cli.ColorUnderline(), cli.ColorReset(),
		cli.ColorUnderline(), cli.ColorReset(), cli.ColorUnderline(), cli.ColorReset())
	fmt.Fprintf(tw, "  %s┼%s┼%s┼%s\n", strings.Repeat("─", 14), strings.Repeat("─", 15), strings.Repeat("─", 15), strings.Repeat("─", 20))
	for _, t := range results.Timings {
		seq, par, speedup := fmt.Sprintf("%sN/A%s", cli.ColorRed(), cli.ColorReset()), "", ""
		if t.Err == nil {
			seq = timingLabel(t.Sequential)
			par = timingLabel(t.Parallel)
			speedup = fmt.Sprintf("%.2fx", t.Speedup())
		}
		highlight := ""
		if t.Err == nil && t.NNZ == results.ParallelThreshold {
			highlight = fmt.Sprintf(" %s(Optimal)%s", cli.ColorGreen(), cli.ColorReset())
		}
		fmt.Fprintf(tw, "  %s%-12d%s │ %-12s │ %-12s │ %s%s%s%s\n",
			cli.ColorCyan(), t.NNZ, cli.ColorReset(), seq, par,
			cli.ColorYellow(), speedup, cli.ColorReset(), highlight)
	}
	tw.Flush()
	fmt.Fprintf(out, "Parallel threshold: %s (confidence %.0f%%)\n", thresholdLabel(results.ParallelThreshold), results.Confidence*100)
}

// printCalibrationOutput prints the tuned kernel settings.
//
// Parameters:
//   - cfg: The updated configuration with calibration results.
//   - out: The writer for output.
func printCalibrationOutput(cfg config.AppConfig, out io.Writer) {
	fmt.Fprintf(out, "%sAuto-calibration%s: parallel threshold=%s%s%s, workers=%s%d%s\n",
		cli.ColorGreen(), cli.ColorReset(),
		cli.ColorYellow(), thresholdLabel(cfg.ParallelThreshold), cli.ColorReset(),
		cli.ColorYellow(), cfg.Workers, cli.ColorReset())
}
