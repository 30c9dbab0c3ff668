package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"

	"github.com/agbru/ddsolve/internal/calibration"
	"github.com/agbru/ddsolve/internal/cli"
	"github.com/agbru/ddsolve/internal/config"
	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/logging"
	"github.com/agbru/ddsolve/internal/orchestration"
	"github.com/agbru/ddsolve/internal/problem"
	"github.com/agbru/ddsolve/internal/service"
	"github.com/agbru/ddsolve/internal/solver"
	"github.com/agbru/ddsolve/internal/sparse"
	"github.com/agbru/ddsolve/internal/ui"
)

// Application represents the ddsolve application instance.
// It encapsulates the configuration and provides methods to run
// the application in its various modes (solve, estimate, stream,
// comparison, calibration).
type Application struct {
	// Config holds the parsed application configuration.
	Config config.AppConfig
	// Factory provides access to the solver implementations.
	Factory solver.Factory
	// Service runs the single-method entry points.
	Service service.Service
	// Logger receives structured diagnostics on ErrWriter.
	Logger logging.Logger
	// ErrWriter is the writer for error output (typically os.Stderr).
	ErrWriter io.Writer
	// In is the input of the interactive mode (typically os.Stdin).
	In io.Reader

	zlog zerolog.Logger
}

// New creates a new Application instance by parsing command-line arguments.
// It validates the configuration and returns an error if parsing or validation fails.
//
// Parameters:
//   - args: The command-line arguments (typically os.Args).
//   - errWriter: The writer for error output.
//
// Returns:
//   - *Application: A new application instance.
//   - error: An error if configuration parsing or validation fails.
func New(args []string, errWriter io.Writer) (*Application, error) {
	factory := solver.NewDefaultFactory()

	// args[0] is program name, args[1:] are the actual arguments
	programName := "ddsolve"
	var cmdArgs []string
	if len(args) > 0 {
		programName = args[0]
		cmdArgs = args[1:]
	}

	cfg, err := config.ParseConfig(programName, cmdArgs, errWriter, solver.MethodNames())
	if err != nil {
		return nil, err
	}

	// An explicit -parallel-threshold wins over any cached or estimated value.
	if !cfg.ParallelThresholdSet {
		if cfgWithProfile, loaded := calibration.LoadCachedCalibration(cfg, cfg.CalibrationProfile); loaded {
			cfg = cfgWithProfile
		} else {
			cfg = applyAdaptiveThresholds(cfg)
		}
	}

	level := logging.ParseLevel(cfg.LogLevel)
	// The solver packages log through the global zerolog logger.
	zerolog.SetGlobalLevel(level)
	logger := logging.NewLogger(errWriter, "ddsolve", level)

	return &Application{
		Config:    cfg,
		Factory:   factory,
		Service:   service.NewSolverService(factory, logger, 0),
		Logger:    logger,
		ErrWriter: errWriter,
		In:        os.Stdin,
		zlog:      logger.Zerolog(),
	}, nil
}

// applyAdaptiveThresholds replaces the parallel threshold by the hardware
// estimate unless it was set explicitly, and picks a worker count when none
// was given.
//
// Parameters:
//   - cfg: The initial configuration with potentially default threshold values.
//
// Returns:
//   - config.AppConfig: The configuration with adaptive thresholds applied.
func applyAdaptiveThresholds(cfg config.AppConfig) config.AppConfig {
	if !cfg.ParallelThresholdSet {
		cfg.ParallelThreshold = calibration.EstimateOptimalParallelThreshold()
	}
	if cfg.Workers == 0 {
		cfg.Workers = calibration.EstimateOptimalWorkers()
	}
	return cfg
}

// Run executes the application based on the configured mode.
//
// Parameters:
//   - ctx: The context for managing cancellation and timeouts.
//   - out: The writer for standard output.
//
// Returns:
//   - int: An exit code (0 for success, non-zero for errors).
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	if a.Config.Completion != "" {
		return a.runCompletion(out)
	}

	// Initialize CLI theme (respects --no-color flag and NO_COLOR env var)
	ui.InitTheme(a.Config.NoColor)

	if a.Config.Interactive {
		return a.runREPL(ctx, out)
	}

	if a.Config.Calibrate {
		return a.runCalibration(ctx, out)
	}

	a.Config = a.runAutoCalibrationIfEnabled(ctx, out)

	code := a.runSolve(ctx, out)
	if a.Config.Metrics {
		if err := dumpMetrics(out, prometheus.DefaultGatherer); err != nil {
			a.Logger.Error("metrics dump failed", err)
		}
	}
	return code
}

// runCompletion generates shell completion scripts.
func (a *Application) runCompletion(out io.Writer) int {
	if err := cli.GenerateCompletion(out, a.Config.Completion, solver.MethodNames()); err != nil {
		fmt.Fprintf(a.ErrWriter, "Error generating completion: %v\n", err)
		return apperrors.ExitErrorConfig
	}
	return apperrors.ExitSuccess
}

// runREPL generates the configured system once and starts the interactive
// session over it.
func (a *Application) runREPL(ctx context.Context, out io.Writer) int {
	m, b, err := a.buildSystem()
	if err != nil {
		return apperrors.HandleSolveError(err, 0, out, cli.CLIColorProvider{})
	}
	repl := cli.NewREPL(a.Factory, a.Service, m, b, cli.REPLConfig{
		DefaultMethod: a.Config.Method,
		Timeout:       a.Config.Timeout,
		Options:       a.Config.ToSolverOptions(),
		Seed:          a.Config.Seed,
		System:        a.systemLabel(m),
	})
	if a.In != nil {
		repl.SetInput(a.In)
	}
	repl.SetOutput(out)
	repl.Start(ctx)
	return apperrors.ExitSuccess
}

// runCalibration runs the full calibration mode.
func (a *Application) runCalibration(ctx context.Context, out io.Writer) int {
	return calibration.RunCalibrationWithOptions(ctx, out, a.Factory, calibration.CalibrationOptions{
		ProfilePath: a.Config.CalibrationProfile,
		SaveProfile: true,
		Timeout:     a.Config.Timeout,
	})
}

// runAutoCalibrationIfEnabled runs auto-calibration if enabled in the
// configuration and the threshold was not set explicitly. Returns the
// potentially updated configuration.
func (a *Application) runAutoCalibrationIfEnabled(ctx context.Context, out io.Writer) config.AppConfig {
	if a.Config.AutoCalibrate && !a.Config.ParallelThresholdSet {
		if updated, ok := calibration.AutoCalibrate(ctx, a.Config, out, a.Factory); ok {
			return updated
		}
	}
	return a.Config
}

// buildSystem generates the matrix and right-hand side described by the
// configuration.
func (a *Application) buildSystem() (*sparse.Matrix, []float64, error) {
	m, err := problem.Build(a.Config.ProblemSpec())
	if err != nil {
		return nil, nil, err
	}
	b, err := problem.Vector(a.Config.RHS, m.Rows(), a.Config.Seed)
	if err != nil {
		return nil, nil, err
	}
	return m, b, nil
}

// systemLabel describes the generated system for file headers.
func (a *Application) systemLabel(m *sparse.Matrix) string {
	return fmt.Sprintf("%s n=%d nnz=%d seed=%d rhs=%s", a.Config.Problem, m.Rows(), m.NNZ(), a.Config.Seed, a.Config.RHS)
}

func (a *Application) outputConfig() cli.OutputConfig {
	return cli.OutputConfig{
		OutputFile: a.Config.OutputFile,
		Quiet:      a.Config.Quiet,
		Verbose:    a.Config.Verbose,
		Details:    a.Config.Details,
	}
}

// runSolve dispatches the solve modes under the run's timeout and signal
// handling.
func (a *Application) runSolve(ctx context.Context, out io.Writer) int {
	ctx, lifecycle := SetupLifecycle(ctx, a.Config.Timeout)
	defer lifecycle.Cleanup()

	m, b, err := a.buildSystem()
	if err != nil {
		return apperrors.HandleSolveError(err, 0, out, cli.CLIColorProvider{})
	}

	solvers := cli.GetSolversToRun(a.Config, a.Factory)
	if len(solvers) == 0 {
		fmt.Fprintf(a.ErrWriter, "No method matches '%s'.\n", a.Config.Method)
		return apperrors.ExitErrorConfig
	}

	if !a.Config.JSONOutput && !a.Config.Quiet {
		cli.PrintExecutionConfig(a.Config, m, out)
		cli.PrintExecutionMode(solvers, out)
	}

	switch {
	case a.Config.Functional != "":
		return a.runFunctional(ctx, m, b, out)
	case len(a.Config.Rows) > 0:
		return a.runEntry(ctx, m, b, solvers, out)
	case a.Config.Stream:
		return a.runStream(ctx, m, b, solvers[0].Method(), out)
	default:
		return a.runCompare(ctx, m, b, solvers, out)
	}
}

// runCompare solves with every selected method concurrently. A single
// method gets the detailed report, several get the comparison summary.
func (a *Application) runCompare(ctx context.Context, m *sparse.Matrix, b []float64, solvers []solver.Solver, out io.Writer) int {
	progressOut := out
	if a.Config.Quiet || a.Config.JSONOutput {
		progressOut = io.Discard
	}

	observers := []solver.ProgressObserver{solver.NewLoggingObserver(a.zlog, 0.1)}
	if a.Config.Metrics {
		observers = append(observers, solver.NewMetricsObserver())
	}
	results := orchestration.ExecuteSolves(ctx, solvers, m, b, a.Config, progressOut, observers...)

	if a.Config.JSONOutput {
		return printJSONResults(results, out)
	}
	if len(results) > 1 {
		code := orchestration.AnalyzeComparisonResults(results, a.Config, out)
		if best := findBestResult(results); best != nil && code == apperrors.ExitSuccess {
			if err := a.saveResultIfNeeded(best, m, out); err != nil {
				return apperrors.ExitErrorGeneric
			}
		}
		return code
	}

	r := results[0]
	if r.Err != nil {
		return apperrors.HandleSolveError(r.Err, r.Duration, out, cli.CLIColorProvider{})
	}
	for _, w := range r.Result.Warnings {
		a.Logger.Warn("solve warning", logging.String("method", r.Name), logging.Err(w))
	}
	if err := cli.DisplayResultWithConfig(out, r.Result, a.systemLabel(m), a.outputConfig()); err != nil {
		fmt.Fprintf(a.ErrWriter, "Error saving result: %v\n", err)
		return apperrors.ExitErrorGeneric
	}
	if err := r.Result.Err(); err != nil {
		if a.Config.Quiet {
			return apperrors.ExitCodeFor(err)
		}
		return apperrors.HandleSolveError(err, r.Duration, out, cli.CLIColorProvider{})
	}
	return apperrors.ExitSuccess
}

// runEntry estimates x[row] for every configured row with every selected
// method, one method after the other. Each method validates the system
// once and answers the rows concurrently. It fails only when no method
// produced an estimate.
func (a *Application) runEntry(ctx context.Context, m *sparse.Matrix, b []float64, solvers []solver.Solver, out io.Writer) int {
	opts := a.Config.ToSolverOptions()
	estimates := make([]jsonEstimate, 0, len(solvers)*len(a.Config.Rows))
	var firstErr error
	succeeded := 0
	for _, s := range solvers {
		start := time.Now()
		ests, err := a.Service.EstimateEntries(ctx, m, b, a.Config.Rows, s.Method(), opts)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			estimates = append(estimates, newJSONEstimate(s.Name(), nil, time.Since(start), err))
			if !a.Config.Quiet && !a.Config.JSONOutput {
				fmt.Fprintf(out, "%s%s: %v%s\n", cli.ColorRed(), s.Name(), err, cli.ColorReset())
			}
			continue
		}
		succeeded++
		elapsed := time.Since(start)
		for _, est := range ests {
			estimates = append(estimates, newJSONEstimate(s.Name(), est, elapsed, nil))
			switch {
			case a.Config.JSONOutput:
			case a.Config.Quiet:
				fmt.Fprintln(out, cli.FormatQuietEstimate(est))
			default:
				cli.DisplayEstimate(est, out)
			}
		}
	}
	if a.Config.JSONOutput {
		if code := encodeJSON(out, estimates); code != apperrors.ExitSuccess {
			return code
		}
	}
	if succeeded == 0 {
		if a.Config.Quiet || a.Config.JSONOutput {
			return apperrors.ExitCodeFor(firstErr)
		}
		return apperrors.HandleSolveError(firstErr, 0, out, cli.CLIColorProvider{})
	}
	return apperrors.ExitSuccess
}

// runFunctional estimates tᵀx by backward push, t built like a right-hand
// side of the configured kind.
func (a *Application) runFunctional(ctx context.Context, m *sparse.Matrix, b []float64, out io.Writer) int {
	t, err := problem.Vector(a.Config.Functional, m.Cols(), a.Config.Seed+1)
	if err != nil {
		return apperrors.HandleSolveError(err, 0, out, cli.CLIColorProvider{})
	}
	start := time.Now()
	est, err := a.Service.EstimateFunctional(ctx, m, b, t, a.Config.ToSolverOptions())
	if a.Config.JSONOutput {
		if code := encodeJSON(out, newJSONEstimate("functional", est, time.Since(start), err)); code != apperrors.ExitSuccess {
			return code
		}
		return apperrors.ExitCodeFor(err)
	}
	if err != nil {
		return apperrors.HandleSolveError(err, time.Since(start), out, cli.CLIColorProvider{})
	}
	if a.Config.Quiet {
		fmt.Fprintln(out, cli.FormatQuietEstimate(est))
	} else {
		cli.DisplayEstimate(est, out)
	}
	return apperrors.ExitSuccess
}

// runStream prints one line per iteration, then the final report.
func (a *Application) runStream(ctx context.Context, m *sparse.Matrix, b []float64, method solver.Method, out io.Writer) int {
	start := time.Now()
	stream, err := a.Service.StreamSolve(m, b, method, a.Config.ToSolverOptions())
	if err != nil {
		return apperrors.HandleSolveError(err, 0, out, cli.CLIColorProvider{})
	}
	for {
		snap, ok := stream.Next(ctx)
		if !ok {
			break
		}
		if !a.Config.Quiet && !a.Config.JSONOutput {
			cli.PrintSnapshot(out, snap)
		}
	}
	res := stream.Result()
	if err := stream.Err(); err != nil && res == nil {
		return apperrors.HandleSolveError(err, time.Since(start), out, cli.CLIColorProvider{})
	}
	if a.Config.JSONOutput {
		return printJSONResults([]orchestration.SolveResult{{
			Name: method.String(), Method: method, Result: res, Duration: time.Since(start), Err: stream.Err(),
		}}, out)
	}
	if err := cli.DisplayResultWithConfig(out, res, a.systemLabel(m), a.outputConfig()); err != nil {
		fmt.Fprintf(a.ErrWriter, "Error saving result: %v\n", err)
		return apperrors.ExitErrorGeneric
	}
	if err := errors.Join(stream.Err(), res.Err()); err != nil {
		return apperrors.ExitCodeFor(err)
	}
	return apperrors.ExitSuccess
}

// IsHelpError checks if the error is a help flag error (--help was used).
// This is useful for determining if the application should exit with success
// after displaying help text.
//
// Parameters:
//   - err: The error to check.
//
// Returns:
//   - bool: True if the error indicates help was requested.
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}

// findBestResult returns the fastest converged result, or nil.
func findBestResult(results []orchestration.SolveResult) *orchestration.SolveResult {
	var best *orchestration.SolveResult
	for i := range results {
		if results[i].Outcome() != nil {
			continue
		}
		if best == nil || results[i].Duration < best.Duration {
			best = &results[i]
		}
	}
	return best
}

func (a *Application) saveResultIfNeeded(res *orchestration.SolveResult, m *sparse.Matrix, out io.Writer) error {
	if a.Config.OutputFile == "" {
		return nil
	}
	if err := cli.WriteResultToFile(res.Result, a.systemLabel(m), a.outputConfig()); err != nil {
		fmt.Fprintf(a.ErrWriter, "Error saving result: %v\n", err)
		return err
	}
	if !a.Config.Quiet {
		fmt.Fprintf(out, "\n%s✓ Solution of %s saved to: %s%s%s\n",
			cli.ColorGreen(), res.Name, cli.ColorCyan(), a.Config.OutputFile, cli.ColorReset())
	}
	return nil
}

// dumpMetrics writes the ddsolve metric families in the Prometheus text
// exposition format.
func dumpMetrics(out io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n--- Metrics ---\n")
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "ddsolve_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}
