package calibration

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/agbru/ddsolve/internal/cli"
	"github.com/agbru/ddsolve/internal/config"
	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/solver"
)

// CalibrationOptions configures the calibration process.
type CalibrationOptions struct {
	// ProfilePath is the path to save/load the calibration profile.
	// If empty, uses the default path.
	ProfilePath string
	// SaveProfile indicates whether to save the calibration results.
	SaveProfile bool
	// LoadProfile indicates whether to try loading an existing profile.
	LoadProfile bool
	// Timeout bounds the whole run (0 for one minute).
	Timeout time.Duration
	// Sizes overrides GenerateCalibrationSizes.
	Sizes []int
}

// defaultCalibrationTimeout bounds a calibration run without a configured
// timeout.
const defaultCalibrationTimeout = time.Minute

// RunCalibration executes a benchmark to determine the nonzero count from
// which the row-block parallel kernels beat the sequential ones.
//
// For every candidate dimension it builds a banded matrix and times a fixed
// number of Jacobi sweeps, first with the sequential kernels and then with
// the parallel ones. The threshold is the smallest nonzero count from which
// the parallel sweeps win at every larger size.
//
// Parameters:
//   - ctx: The context for managing cancellation and deadlines.
//   - out: The io.Writer to which progress and results will be written.
//   - factory: The solver factory, which must provide the Jacobi method.
//
// Returns:
//   - int: The exit code (0 for success, non-zero for errors).
func RunCalibration(ctx context.Context, out io.Writer, factory solver.Factory) int {
	return RunCalibrationWithOptions(ctx, out, factory, CalibrationOptions{
		SaveProfile: true,
		LoadProfile: false, // Full calibration should run fresh
	})
}

// RunCalibrationWithOptions executes calibration with the specified options.
func RunCalibrationWithOptions(ctx context.Context, out io.Writer, factory solver.Factory, opts CalibrationOptions) int {
	fmt.Fprintf(out, "--- Calibration Mode: Finding the Optimal Parallel Threshold ---\n")

	if opts.LoadProfile {
		profile, loaded := LoadOrCreateProfile(opts.ProfilePath)
		if loaded {
			fmt.Fprintf(out, "%sLoaded existing calibration profile from %s%s\n",
				cli.ColorGreen(), resolveProfilePath(opts.ProfilePath), cli.ColorReset())
			fmt.Fprintf(out, "Profile: %s\n", profile.String())
			fmt.Fprintf(out, "\n%s✅ Using cached calibration: %s-parallel-threshold %d%s\n",
				cli.ColorGreen(), cli.ColorYellow(), profile.OptimalParallelThreshold, cli.ColorReset())
			return apperrors.ExitSuccess
		}
	}

	jacobi, err := factory.Get(solver.Jacobi)
	if err != nil {
		fmt.Fprintf(out, "%sCritical error: the Jacobi method is required for calibration: %v%s\n", cli.ColorRed(), err, cli.ColorReset())
		return apperrors.ExitErrorGeneric
	}

	sizes := opts.Sizes
	if sizes == nil {
		sizes = GenerateCalibrationSizes()
	}
	if len(sizes) == 0 {
		fmt.Fprintf(out, "%sSingle CPU detected: the kernels stay sequential.%s\n", cli.ColorYellow(), cli.ColorReset())
		return saveAndRecommend(out, opts, ThresholdResults{ParallelThreshold: SequentialThreshold, Confidence: 1})
	}
	fmt.Fprintf(out, "%sTiming %d matrix sizes on %d CPU cores with %d workers%s\n",
		cli.ColorCyan(), len(sizes), runtime.NumCPU(), EstimateOptimalWorkers(), cli.ColorReset())

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultCalibrationTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	runner := newCalibrationRunner(runCtx, timeout)

	var wg sync.WaitGroup
	progressChan := make(chan solver.ProgressUpdate, len(sizes))
	wg.Add(1)
	go cli.DisplayProgress(&wg, progressChan, 1, out)
	results := runner.findBestParallelThreshold(jacobi, sizes, progressChan)
	close(progressChan)
	wg.Wait()

	if ctx.Err() != nil {
		fmt.Fprintf(out, "\n%sCalibration interrupted.%s\n", cli.ColorYellow(), cli.ColorReset())
		return apperrors.ExitErrorCanceled
	}

	printCalibrationResults(out, results)
	if results.Confidence == 0 {
		fmt.Fprintf(out, "\n%sCalibration failed: no valid results obtained.%s\n", cli.ColorRed(), cli.ColorReset())
		if first := firstTimingError(results.Timings); first != nil {
			return apperrors.HandleSolveError(first, results.Duration, out, cli.CLIColorProvider{})
		}
		return apperrors.ExitErrorGeneric
	}
	return saveAndRecommend(out, opts, results)
}

func saveAndRecommend(out io.Writer, opts CalibrationOptions, results ThresholdResults) int {
	fmt.Fprintf(out, "\n%s✅ Recommendation for this machine: %s-parallel-threshold %d -workers %d%s\n",
		cli.ColorGreen(), cli.ColorYellow(), results.ParallelThreshold, EstimateOptimalWorkers(), cli.ColorReset())

	if opts.SaveProfile {
		if err := newProfileFrom(results).SaveProfile(opts.ProfilePath); err != nil {
			fmt.Fprintf(out, "%sWarning: failed to save profile: %v%s\n",
				cli.ColorYellow(), err, cli.ColorReset())
		} else {
			fmt.Fprintf(out, "%sCalibration profile saved to %s%s\n",
				cli.ColorGreen(), resolveProfilePath(opts.ProfilePath), cli.ColorReset())
		}
	}
	return apperrors.ExitSuccess
}

func firstTimingError(timings []SizeTiming) error {
	for _, t := range timings {
		if t.Err != nil {
			return t.Err
		}
	}
	return nil
}

func newProfileFrom(results ThresholdResults) *CalibrationProfile {
	profile := NewProfile()
	profile.OptimalParallelThreshold = results.ParallelThreshold
	profile.OptimalWorkers = EstimateOptimalWorkers()
	profile.Confidence = results.Confidence
	profile.CalibrationTime = results.Duration.String()
	profile.SetTimings(results.Timings)
	return profile
}

// AutoCalibrate runs a quick startup calibration of the parallel threshold.
//
// It first checks for an existing valid calibration profile and uses the
// cached values when one matches the hardware. Otherwise it runs the
// mat-vec micro-benchmark and, when that is not conclusive, the Jacobi
// trials on the quick sizes.
//
// Parameters:
//   - parentCtx: The context used to manage the calibration timeout.
//   - cfg: The initial application configuration, providing starting values.
//   - out: The io.Writer for logging calibration results.
//   - factory: The solver factory.
//
// Returns:
//   - config.AppConfig: The updated configuration with the tuned kernels.
//   - bool: True if calibration was successful, false otherwise.
func AutoCalibrate(parentCtx context.Context, cfg config.AppConfig, out io.Writer, factory solver.Factory) (updated config.AppConfig, ok bool) {
	if cached, ok := LoadCachedCalibration(cfg, cfg.CalibrationProfile); ok {
		fmt.Fprintf(out, "%sUsing cached calibration%s: parallel threshold=%s%s%s, workers=%s%d%s\n",
			cli.ColorGreen(), cli.ColorReset(),
			cli.ColorYellow(), thresholdLabel(cached.ParallelThreshold), cli.ColorReset(),
			cli.ColorYellow(), cached.Workers, cli.ColorReset())
		return cached, true
	}

	micro, err := QuickCalibrate(parentCtx)
	if err == nil && micro.Confidence >= 0.5 {
		fmt.Fprintf(out, "%sQuick calibration%s (%v): parallel threshold=%s%s%s (confidence: %.0f%%)\n",
			cli.ColorGreen(), cli.ColorReset(),
			micro.Duration.Round(time.Millisecond),
			cli.ColorYellow(), thresholdLabel(micro.ParallelThreshold), cli.ColorReset(),
			micro.Confidence*100)
		saveCalibrationProfile(micro, cfg.CalibrationProfile, out)
		return applyCalibrationResults(cfg, micro)
	}

	jacobi, err := factory.Get(solver.Jacobi)
	if err != nil {
		return cfg, false
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCalibrationTimeout
	}
	runner := newCalibrationRunner(parentCtx, timeout)
	results := runner.findBestParallelThreshold(jacobi, GenerateQuickSizes(), nil)
	if results.Confidence == 0 {
		return cfg, false
	}

	saveCalibrationProfile(results, cfg.CalibrationProfile, out)
	updated, ok = applyCalibrationResults(cfg, results)
	printCalibrationOutput(updated, out)
	return updated, ok
}

// LoadCachedCalibration attempts to load a cached calibration profile and
// apply it to the configuration. Returns the updated config and true if
// a valid cached profile was found. An explicit worker count is kept.
func LoadCachedCalibration(cfg config.AppConfig, profilePath string) (updated config.AppConfig, ok bool) {
	profile, loaded := LoadOrCreateProfile(profilePath)
	if !loaded {
		return cfg, false
	}

	updated = cfg
	updated.ParallelThreshold = profile.OptimalParallelThreshold
	if updated.Workers == 0 && profile.OptimalWorkers > 0 {
		updated.Workers = profile.OptimalWorkers
	}
	return updated, true
}

// applyCalibrationResults updates the configuration with the calibration
// results. It reports false when the results carry no measurement.
func applyCalibrationResults(cfg config.AppConfig, results ThresholdResults) (updated config.AppConfig, ok bool) {
	if results.Confidence == 0 {
		return cfg, false
	}
	updated = cfg
	updated.ParallelThreshold = results.ParallelThreshold
	if updated.Workers == 0 {
		updated.Workers = EstimateOptimalWorkers()
	}
	return updated, true
}

// saveCalibrationProfile saves the calibration results to a profile.
//
// Parameters:
//   - results: The calibration results.
//   - profilePath: The path to save the profile.
//   - out: The writer for warning messages.
func saveCalibrationProfile(results ThresholdResults, profilePath string, out io.Writer) {
	if err := newProfileFrom(results).SaveProfile(profilePath); err != nil {
		fmt.Fprintf(out, "%sWarning: could not save calibration profile: %v%s\n",
			cli.ColorYellow(), err, cli.ColorReset())
	}
}
