// Package orchestration runs one or several solvers on the same system and
// reports how their outcomes compare.
package orchestration

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/agbru/ddsolve/internal/cli"
	"github.com/agbru/ddsolve/internal/config"
	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/solver"
	"github.com/agbru/ddsolve/internal/sparse"
	"github.com/agbru/ddsolve/internal/ui"
)

// SolveResult is the outcome of one method in a run.
type SolveResult struct {
	// Name is the display name of the method (e.g. "Gauss-Seidel").
	Name string
	// Method identifies the solver.
	Method solver.Method
	// Result is the solve result. It may be set together with Err when the
	// solve was interrupted, and is nil for input problems.
	Result *solver.Result
	// Duration is the wall-clock time of the call.
	Duration time.Duration
	// Err is the error returned by the solver.
	Err error
}

// Outcome returns the error that makes this result unusable for the
// comparison: the call error, or the typed status error of a solve that
// stopped without meeting the tolerance.
func (r SolveResult) Outcome() error {
	if r.Err != nil {
		return r.Err
	}
	if r.Result == nil {
		return fmt.Errorf("%s returned no result", r.Name)
	}
	return r.Result.Err()
}

// ProgressBufferMultiplier defines the buffer size multiplier for the progress
// channel. A larger buffer reduces the likelihood of dropped updates when
// the UI is slow to consume them.
const ProgressBufferMultiplier = 5

// ExecuteSolves runs the solvers concurrently on the same system.
//
// Every solver shares one ProgressSubject. A ChannelObserver feeds the
// terminal progress display; extra observers (logging, metrics) are
// registered alongside it. Individual failures are recorded in the results
// and never cancel the other solves.
//
// Parameters:
//   - ctx: The context for managing cancellation and deadlines.
//   - solvers: The solvers to execute.
//   - a, b: The system to solve.
//   - cfg: The application configuration, converted to solver.Options.
//   - out: The io.Writer for the progress display.
//   - observers: Additional progress observers.
//
// Returns:
//   - []SolveResult: One result per solver, in the input order.
func ExecuteSolves(ctx context.Context, solvers []solver.Solver, a *sparse.Matrix, b []float64, cfg config.AppConfig, out io.Writer, observers ...solver.ProgressObserver) []SolveResult {
	g, ctx := errgroup.WithContext(ctx)
	results := make([]SolveResult, len(solvers))
	progressChan := make(chan solver.ProgressUpdate, len(solvers)*ProgressBufferMultiplier)

	subject := solver.NewProgressSubject()
	subject.Register(solver.NewChannelObserver(progressChan))
	for _, o := range observers {
		subject.Register(o)
	}

	var displayWg sync.WaitGroup
	displayWg.Add(1)
	go cli.DisplayProgress(&displayWg, progressChan, len(solvers), out)

	opts := cfg.ToSolverOptions()
	for i, s := range solvers {
		idx, sv := i, s
		g.Go(func() error {
			startTime := time.Now()
			res, err := sv.SolveWithObservers(ctx, subject, idx, a, b, opts)
			results[idx] = SolveResult{
				Name: sv.Name(), Method: sv.Method(), Result: res, Duration: time.Since(startTime), Err: err,
			}
			return nil
		})
	}

	_ = g.Wait()
	close(progressChan)
	displayWg.Wait()

	return results
}

// consistencyBound is the largest ‖x_a − x_b‖∞ accepted between two
// converged solutions. When both carry a finite certificate the bounds add
// up; otherwise the bound falls back to √tol relative to the solution size.
func consistencyBound(x, y *solver.Result, tol float64) float64 {
	scale := math.Max(1, floats.Norm(x.X, math.Inf(1)))
	floor := 10 * tol * scale
	ex, ey := x.Certificate.ErrorBound, y.Certificate.ErrorBound
	if x.Certificate.Source != "" && y.Certificate.Source != "" &&
		!math.IsInf(ex, 0) && !math.IsInf(ey, 0) && !math.IsNaN(ex+ey) {
		return math.Max(ex+ey, floor)
	}
	return math.Max(math.Sqrt(tol)*scale, floor)
}

// AnalyzeComparisonResults processes the results from several methods and
// prints a summary report.
//
// Results are sorted with successes first, then by duration. Converged
// solutions are checked against the fastest one within consistencyBound;
// a disagreement is reported as a mismatch. When no method converged the
// first failure decides the exit code.
//
// Parameters:
//   - results: The results to analyze.
//   - cfg: The application configuration.
//   - out: The io.Writer for the summary report.
//
// Returns:
//   - int: An exit code indicating success (0) or the type of failure.
func AnalyzeComparisonResults(results []SolveResult, cfg config.AppConfig, out io.Writer) int {
	sort.SliceStable(results, func(i, j int) bool {
		oi, oj := results[i].Outcome() == nil, results[j].Outcome() == nil
		if oi != oj {
			return oi
		}
		return results[i].Duration < results[j].Duration
	})

	var reference *SolveResult
	var firstError error
	var firstErrorDuration time.Duration
	successCount := 0

	fmt.Fprintf(out, "\n--- Comparison Summary ---\n")
	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "%sMethod%s\t%sDuration%s\t%sIterations%s\t%sResidual%s\t%sStatus%s\n",
		ui.ColorUnderline(), ui.ColorReset(), ui.ColorUnderline(), ui.ColorReset(),
		ui.ColorUnderline(), ui.ColorReset(), ui.ColorUnderline(), ui.ColorReset(),
		ui.ColorUnderline(), ui.ColorReset())

	for i := range results {
		res := &results[i]
		iterations, residual := "-", "-"
		if res.Result != nil {
			iterations = fmt.Sprintf("%d", res.Result.Iterations)
			residual = fmt.Sprintf("%.3e", res.Result.RelativeResidual)
		}

		var status string
		if err := res.Outcome(); err != nil {
			status = ui.Paint(ui.ColorRed(), fmt.Sprintf("❌ Failure (%v)", err))
			if firstError == nil {
				firstError = err
				firstErrorDuration = res.Duration
			}
		} else {
			status = ui.Paint(ui.StatusColor(res.Result.Status.String()), "✅ Converged")
			successCount++
			if reference == nil {
				reference = res
			}
		}
		duration := cli.FormatExecutionDuration(res.Duration)
		if res.Duration == 0 {
			duration = "< 1µs"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ui.Paint(ui.ColorBlue(), res.Name), ui.Paint(ui.ColorYellow(), duration),
			iterations, residual, status)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(out, "Warning: failed to flush tabwriter: %v\n", err)
	}

	if successCount == 0 {
		fmt.Fprintf(out, "\nGlobal Status: Failure. No method converged.\n")
		return apperrors.HandleSolveError(firstError, firstErrorDuration, out, cli.CLIColorProvider{})
	}

	tol := cfg.ToSolverOptions().Tolerance
	if tol <= 0 {
		tol = solver.DefaultTolerance
	}
	mismatch := false
	for i := range results {
		res := &results[i]
		if res == reference || res.Outcome() != nil {
			continue
		}
		dist := floats.Distance(res.Result.X, reference.Result.X, math.Inf(1))
		if bound := consistencyBound(res.Result, reference.Result, tol); dist > bound {
			fmt.Fprintf(out, "%s%s differs from %s by %.3e (allowed %.3e).%s\n",
				ui.ColorRed(), res.Name, reference.Name, dist, bound, ui.ColorReset())
			mismatch = true
		}
	}
	if mismatch {
		fmt.Fprintf(out, "\nGlobal Status: CRITICAL ERROR! An inconsistency was detected between the solutions of the methods.\n")
		return apperrors.ExitErrorMismatch
	}

	fmt.Fprintf(out, "\nGlobal Status: Success. All converged solutions are consistent.\n")
	cli.DisplayResult(reference.Result, cfg.Verbose, cfg.Details, out)
	return apperrors.ExitSuccess
}
