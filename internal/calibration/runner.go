package calibration

import (
	"context"
	"math"
	"time"

	"github.com/agbru/ddsolve/internal/problem"
	"github.com/agbru/ddsolve/internal/solver"
	"github.com/agbru/ddsolve/internal/sparse"
)

// calibrationIterations is the fixed number of Jacobi sweeps per trial.
// The banded matrices converge far slower than that at the trial
// tolerance, so every trial does the same amount of work.
const calibrationIterations = 20

// calibrationRunner encapsulates the trial run logic for calibration.
type calibrationRunner struct {
	ctx      context.Context
	perTrial time.Duration
	workers  int
}

// newCalibrationRunner creates a new calibration runner. Each trial gets a
// sixth of the timeout, but never less than two seconds.
func newCalibrationRunner(ctx context.Context, timeout time.Duration) *calibrationRunner {
	perTrial := timeout / 6
	if perTrial < 2*time.Second {
		perTrial = 2 * time.Second
	}
	return &calibrationRunner{ctx: ctx, perTrial: perTrial, workers: EstimateOptimalWorkers()}
}

// runTrial executes one fixed-length solve and returns the time per
// iteration.
//
// Parameters:
//   - s: The solver to time, normally Jacobi.
//   - a, b: The calibration system.
//   - workers: 1 for the sequential kernels, more to force the parallel ones.
//
// Returns:
//   - time.Duration: The mean duration of one iteration.
//   - error: An error if the solve failed or timed out.
func (r *calibrationRunner) runTrial(s solver.Solver, a *sparse.Matrix, b []float64, workers int) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.perTrial)
	defer cancel()
	opts := solver.Options{
		Tolerance:         1e-14,
		MaxIterations:     calibrationIterations,
		Workers:           workers,
		ParallelThreshold: 1,
	}
	start := time.Now()
	res, err := s.Solve(ctx, a, b, opts)
	elapsed := time.Since(start)
	if err != nil {
		return 0, err
	}
	return elapsed / time.Duration(max(res.Iterations, 1)), nil
}

// measureSize times the sequential and the parallel sweeps on the banded
// matrix of dimension n.
func (r *calibrationRunner) measureSize(s solver.Solver, n int) SizeTiming {
	a, err := problem.Banded(n, calibrationBandwidth)
	if err != nil {
		return SizeTiming{N: n, Err: err}
	}
	b, err := problem.Vector(problem.RHSOnes, n, 0)
	if err != nil {
		return SizeTiming{N: n, Err: err}
	}
	timing := SizeTiming{N: n, NNZ: a.NNZ()}
	if timing.Sequential, err = r.runTrial(s, a, b, 1); err != nil {
		timing.Err = err
		return timing
	}
	if timing.Parallel, err = r.runTrial(s, a, b, r.workers); err != nil {
		timing.Err = err
	}
	return timing
}

// findBestParallelThreshold times every size and derives the crossover.
//
// Parameters:
//   - s: The solver to use for testing.
//   - sizes: The dimensions to test.
//   - progress: Receives the fraction of sizes done; may be nil.
//
// Returns:
//   - ThresholdResults: The threshold and the raw timings.
func (r *calibrationRunner) findBestParallelThreshold(s solver.Solver, sizes []int, progress chan<- solver.ProgressUpdate) ThresholdResults {
	start := time.Now()
	sorted := sortedCopy(sizes)
	timings := make([]SizeTiming, 0, len(sorted))
	for i, n := range sorted {
		if r.ctx.Err() != nil {
			break
		}
		timings = append(timings, r.measureSize(s, n))
		if progress != nil {
			progress <- solver.ProgressUpdate{
				Value:     float64(i+1) / float64(len(sorted)),
				Iteration: i + 1,
				Residual:  math.NaN(),
			}
		}
	}
	res := analyzeTimings(timings)
	res.Duration = time.Since(start)
	return res
}
