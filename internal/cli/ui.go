// The cli package provides the terminal presentation of ddsolve: the
// asynchronous display of solver progress and the formatting of results,
// estimates and certificates.
package cli

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agbru/ddsolve/internal/solver"
	"github.com/agbru/ddsolve/internal/ui"
	"github.com/briandowns/spinner"
)

// FormatExecutionDuration formats a time.Duration for display.
// It shows microseconds for durations less than a millisecond, milliseconds for
// durations less than a second, and the default string representation otherwise.
// This approach provides a more human-readable output for short durations.
//
// Parameters:
//   - d: The duration to format.
//
// Returns:
//   - string: A formatted string representing the duration.
func FormatExecutionDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	} else if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

const (
	// TruncationLimit is the dimension from which a solution vector is
	// truncated in standard output to avoid cluttering the terminal.
	TruncationLimit = 12
	// DisplayEdges specifies the number of coordinates to display at the
	// beginning and end of a truncated solution.
	DisplayEdges = 4
	// ProgressRefreshRate defines the refresh frequency of the progress bar.
	// Optimized to 200ms to reduce updates and improve performance.
	ProgressRefreshRate = 200 * time.Millisecond
	// ProgressBarWidth defines the width in characters of the progress bar.
	ProgressBarWidth = 40
)

// Colour helpers used by the report printers; they follow ui's active theme.

func ColorReset() string     { return ui.ColorReset() }
func ColorRed() string       { return ui.ColorRed() }
func ColorGreen() string     { return ui.ColorGreen() }
func ColorYellow() string    { return ui.ColorYellow() }
func ColorBlue() string      { return ui.ColorBlue() }
func ColorMagenta() string   { return ui.ColorMagenta() }
func ColorCyan() string      { return ui.ColorCyan() }
func ColorBold() string      { return ui.ColorBold() }
func ColorUnderline() string { return ui.ColorUnderline() }

// Spinner is an interface that abstracts the behavior of a terminal spinner.
// This allows for the decoupling of the `DisplayProgress` function from a
// specific spinner implementation, facilitating easier testing and maintenance.
// It defines the essential controls for a spinner: starting, stopping, and
// updating its status message.
type Spinner interface {
	// Start begins the spinner animation.
	Start()
	// Stop halts the spinner animation.
	Stop()
	// UpdateSuffix sets the text that is displayed after the spinner.
	//
	// Parameters:
	//   - suffix: The text string to display.
	UpdateSuffix(suffix string)
}

// realSpinner is a wrapper for the `spinner.Spinner` that implements the
// `Spinner` interface. This adapter allows the `spinner` library to be used
// within the application's CLI framework.
type realSpinner struct {
	s *spinner.Spinner
}

// Start begins the spinner animation.
func (rs *realSpinner) Start() {
	rs.s.Start()
}

// Stop halts the spinner animation.
func (rs *realSpinner) Stop() {
	rs.s.Stop()
}

// UpdateSuffix sets the text that is displayed after the spinner.
//
// Parameters:
//   - suffix: The string to display.
func (rs *realSpinner) UpdateSuffix(suffix string) {
	rs.s.Suffix = suffix
}

var newSpinner = func(options ...spinner.Option) Spinner {
	// Using the same interval as ProgressRefreshRate to synchronize
	s := spinner.New(spinner.CharSets[11], ProgressRefreshRate, options...)
	return &realSpinner{s}
}

// ProgressState aggregates the progress of concurrent solves. Progress of a
// solve is the log-scale distance of its residual to the tolerance (see
// solver.Progress); the display shows the mean over all solves together with
// the worst residual seen so far.
type ProgressState struct {
	progresses []float64
	residuals  []float64
	numSolvers int
}

// NewProgressState creates a state tracking numSolvers solves.
func NewProgressState(numSolvers int) *ProgressState {
	ps := &ProgressState{
		progresses: make([]float64, numSolvers),
		residuals:  make([]float64, numSolvers),
		numSolvers: numSolvers,
	}
	for i := range ps.residuals {
		ps.residuals[i] = math.NaN()
	}
	return ps
}

// Update records a new progress value for a solve. Out of range indices are
// ignored.
func (ps *ProgressState) Update(index int, value float64) {
	if index >= 0 && index < len(ps.progresses) {
		ps.progresses[index] = value
	}
}

// UpdateResidual records the latest relative residual of a solve.
func (ps *ProgressState) UpdateResidual(index int, residual float64) {
	if index >= 0 && index < len(ps.residuals) {
		ps.residuals[index] = residual
	}
}

// WorstResidual returns the largest latest residual, or NaN before any
// solve reported one.
func (ps *ProgressState) WorstResidual() float64 {
	worst := math.NaN()
	for _, r := range ps.residuals {
		if !math.IsNaN(r) && (math.IsNaN(worst) || r > worst) {
			worst = r
		}
	}
	return worst
}

// CalculateAverage computes the average progress across all tracked solves.
func (ps *ProgressState) CalculateAverage() float64 {
	var totalProgress float64
	for _, p := range ps.progresses {
		totalProgress += p
	}
	if ps.numSolvers == 0 {
		return 0.0
	}
	return totalProgress / float64(ps.numSolvers)
}

// progressBar generates a string representing a textual progress bar.
//
// Parameters:
//   - progress: The normalized progress value (0.0 to 1.0).
//   - length: The total character width of the progress bar.
//
// Returns:
//   - string: A string representation of the progress bar.
func progressBar(progress float64, length int) string {
	if progress > 1.0 {
		progress = 1.0
	}
	if progress < 0.0 {
		progress = 0.0
	}
	count := int(progress * float64(length))
	var builder strings.Builder
	builder.Grow(length)
	for i := 0; i < length; i++ {
		if i < count {
			builder.WriteRune('█')
		} else {
			builder.WriteRune('░')
		}
	}
	return builder.String()
}

// DisplayProgress renders the aggregated progress of numSolvers concurrent
// solves as a spinner line with a bar, the worst residual and an estimate of
// the remaining time. When progressChan is closed it prints a final 100%
// line that stays on screen and signals wg.
func DisplayProgress(wg *sync.WaitGroup, progressChan <-chan solver.ProgressUpdate, numSolvers int, out io.Writer) {
	defer wg.Done()
	if numSolvers <= 0 {
		for range progressChan {
		}
		return
	}

	label := "Progress"
	if numSolvers > 1 {
		label = "Avg progress"
	}
	state := NewProgressWithETA(numSolvers)
	s := newSpinner(spinner.WithWriter(out))
	s.Start()
	stopped := false
	defer func() {
		if !stopped {
			s.Stop()
		}
	}()

	ticker := time.NewTicker(ProgressRefreshRate)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-progressChan:
			if !ok {
				s.Stop()
				stopped = true
				fmt.Fprintf(out, "%s: %6.2f%% [%s] %s\n", label, 100.0, progressBar(1.0, ProgressBarWidth), formatResidual(state.WorstResidual()))
				return
			}
			state.UpdateWithETA(update.SolverIndex, update.Value)
			state.UpdateResidual(update.SolverIndex, update.Residual)
		case <-ticker.C:
			s.UpdateSuffix(progressSuffix(label, state.CalculateAverage(), state.WorstResidual(), state.GetETA()))
		}
	}
}

// formatResidual renders a relative residual for the progress line.
func formatResidual(r float64) string {
	if math.IsNaN(r) {
		return "residual: -"
	}
	return fmt.Sprintf("residual: %.2e", r)
}

// DisplayResult formats and prints the outcome of a solve: status,
// iteration count, residuals, the error certificate and a preview of the
// solution. With details it adds the work counters, the convergence rate and
// the hybrid phase breakdown; with verbose it prints every coordinate.
//
// Parameters:
//   - res: The solve result.
//   - verbose: If true, prints the full solution regardless of its size.
//   - details: If true, prints detailed execution metrics.
//   - out: The io.Writer for the output.
func DisplayResult(res *solver.Result, verbose, details bool, out io.Writer) {
	statusColor := ui.StatusColor(res.Status.String())
	fmt.Fprintf(out, "Status: %s%s%s after %s%d%s iterations, relative residual %s%.3e%s.\n",
		statusColor, res.Status, ColorReset(),
		ColorCyan(), res.Iterations, ColorReset(),
		ColorCyan(), res.RelativeResidual, ColorReset())
	if res.Certificate.Source != "" {
		fmt.Fprintf(out, "Error bound: %s%.3e%s (%s, confidence %.2f).\n",
			ColorCyan(), res.Certificate.ErrorBound, ColorReset(), res.Certificate.Source, res.Certificate.Confidence)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "%sWarning:%s %v\n", ColorYellow(), ColorReset(), w)
	}
	if len(res.Fix.Rows) > 0 {
		fmt.Fprintf(out, "%sDiagonal fixed%s on %d rows.\n", ColorYellow(), ColorReset(), len(res.Fix.Rows))
	}

	if details {
		fmt.Fprintf(out, "\n%s--- Detailed result analysis ---%s\n", ColorBold(), ColorReset())
		durationStr := FormatExecutionDuration(res.Stats.Runtime)
		if res.Stats.Runtime == 0 {
			durationStr = "< 1µs"
		}
		fmt.Fprintf(out, "Solve time            : %s%s%s\n", ColorGreen(), durationStr, ColorReset())
		fmt.Fprintf(out, "Absolute residual     : %s%.6e%s\n", ColorCyan(), res.Residual, ColorReset())
		fmt.Fprintf(out, "Matrix-vector products: %s%s%s\n", ColorCyan(), formatNumberString(strconv.Itoa(res.Stats.MatVecs)), ColorReset())
		fmt.Fprintf(out, "Matrix entries touched: %s%s%s\n", ColorCyan(), formatNumberString(strconv.FormatInt(res.Stats.MatrixTouches, 10)), ColorReset())
		if res.Stats.Pushes > 0 {
			fmt.Fprintf(out, "Push operations       : %s%s%s\n", ColorCyan(), formatNumberString(strconv.FormatInt(res.Stats.Pushes, 10)), ColorReset())
		}
		if rate := res.Metrics.ConvergenceRate; rate > 0 && !math.IsInf(rate, 0) {
			fmt.Fprintf(out, "Convergence rate      : %s%.4f%s per iteration\n", ColorCyan(), rate, ColorReset())
		}
		for _, ph := range res.Phases {
			note := ""
			if ph.Skipped {
				note = " (skipped)"
			}
			fmt.Fprintf(out, "Phase %-16s: %d iterations, residual %.3e%s\n",
				ph.Phase, ph.Iterations, ph.Metrics.RelativeResidualNorm, note)
		}
	}

	n := len(res.X)
	if n == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s--- Solution ---%s\n", ColorBold(), ColorReset())
	if verbose || n <= TruncationLimit {
		for i, v := range res.X {
			fmt.Fprintf(out, "x[%s%d%s] = %s%.12g%s\n", ColorMagenta(), i, ColorReset(), ColorGreen(), v, ColorReset())
		}
		return
	}
	for i := 0; i < DisplayEdges; i++ {
		fmt.Fprintf(out, "x[%s%d%s] = %s%.12g%s\n", ColorMagenta(), i, ColorReset(), ColorGreen(), res.X[i], ColorReset())
	}
	fmt.Fprintf(out, "... (%d coordinates omitted)\n", n-2*DisplayEdges)
	for i := n - DisplayEdges; i < n; i++ {
		fmt.Fprintf(out, "x[%s%d%s] = %s%.12g%s\n", ColorMagenta(), i, ColorReset(), ColorGreen(), res.X[i], ColorReset())
	}
	fmt.Fprintf(out, "(Tip: use the %s-v%s option to display the full solution)\n", ColorYellow(), ColorReset())
}

// DisplayEstimate prints a single-entry or functional estimate with its
// certificate and work counters.
func DisplayEstimate(est *solver.Estimate, out io.Writer) {
	target := "tᵀx"
	if est.Row >= 0 {
		target = fmt.Sprintf("x[%d]", est.Row)
	}
	fmt.Fprintf(out, "%s%s%s = %s%.12g%s ± %.3e (%s, %s)\n",
		ColorMagenta(), target, ColorReset(),
		ColorGreen(), est.Value, ColorReset(),
		est.ErrorBound(), est.Certificate.Source, est.Status)
	fmt.Fprintf(out, "Matrix entries touched: %s%s%s, pushes: %s, time: %s\n",
		ColorCyan(), formatNumberString(strconv.FormatInt(est.Stats.MatrixTouches, 10)), ColorReset(),
		formatNumberString(strconv.FormatInt(est.Stats.Pushes, 10)),
		FormatExecutionDuration(est.Stats.Runtime))
	for _, w := range est.Warnings {
		fmt.Fprintf(out, "%sWarning:%s %v\n", ColorYellow(), ColorReset(), w)
	}
}

// formatNumberString inserts thousand separators into a numeric string.
// Optimized to reduce memory allocations
//
// Parameters:
//   - s: The numeric string to format.
//
// Returns:
//   - string: The formatted string with comma separators.
func formatNumberString(s string) string {
	if len(s) == 0 {
		return ""
	}
	prefix := ""
	if s[0] == '-' {
		prefix = "-"
		s = s[1:]
	}
	n := len(s)
	if n <= 3 {
		return prefix + s
	}

	// Precise calculation of the required capacity to avoid reallocations
	numSeparators := (n - 1) / 3
	capacity := len(prefix) + n + numSeparators
	var builder strings.Builder
	builder.Grow(capacity)
	builder.WriteString(prefix)

	firstGroupLen := n % 3
	if firstGroupLen == 0 {
		firstGroupLen = 3
	}
	builder.WriteString(s[:firstGroupLen])

	// Optimized loop with fewer function calls
	for i := firstGroupLen; i < n; i += 3 {
		builder.WriteByte(',')
		builder.WriteString(s[i : i+3])
	}
	return builder.String()
}
