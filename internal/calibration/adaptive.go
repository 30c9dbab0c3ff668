// Package calibration measures where the row-block parallel kernels start to
// pay off on the current machine and persists the result as a profile.
// This file implements the heuristic thresholds and candidate sizes derived
// from the hardware characteristics.
package calibration

import (
	"runtime"
	"sort"
)

// Threshold bounds, in stored nonzeros.
const (
	MinParallelThreshold = 1_000
	MaxParallelThreshold = 1 << 30
	// SequentialThreshold disables the parallel kernels on any realistic
	// matrix.
	SequentialThreshold = MaxParallelThreshold
)

// calibrationBandwidth is the half bandwidth of the banded calibration
// matrices: nine nonzeros per row, close to the generators' default degree.
const calibrationBandwidth = 4

// ─────────────────────────────────────────────────────────────────────────────
// Candidate Sizes
// ─────────────────────────────────────────────────────────────────────────────

// GenerateCalibrationSizes returns the matrix dimensions timed by the full
// calibration, smallest first.
//
// The rationale:
//   - Single core: nothing to compare, no size is generated.
//   - 2-4 cores: block dispatch is relatively expensive, so the crossover
//     lies at larger sizes and the small end is skipped.
//   - 8+ cores: more blocks amortise sooner, so smaller sizes are included.
func GenerateCalibrationSizes() []int {
	numCPU := runtime.NumCPU()
	switch {
	case numCPU == 1:
		return nil
	case numCPU <= 4:
		return []int{5_000, 10_000, 25_000, 50_000, 100_000, 200_000}
	case numCPU <= 8:
		return []int{2_000, 5_000, 10_000, 25_000, 50_000, 100_000, 200_000}
	default:
		return []int{1_000, 2_000, 5_000, 10_000, 25_000, 50_000, 100_000, 200_000}
	}
}

// GenerateQuickSizes returns the smaller set of dimensions timed by the
// micro-benchmark.
func GenerateQuickSizes() []int {
	if runtime.NumCPU() == 1 {
		return nil
	}
	return []int{2_000, 10_000, 50_000}
}

// nnzFor is the nonzero count of the banded calibration matrix of
// dimension n.
func nnzFor(n int) int {
	k := calibrationBandwidth
	if n <= k {
		return n * n
	}
	return n*(2*k+1) - k*(k+1)
}

// ─────────────────────────────────────────────────────────────────────────────
// Heuristic Estimates
// ─────────────────────────────────────────────────────────────────────────────

// EstimateOptimalParallelThreshold provides a heuristic estimate of the
// parallel threshold without running benchmarks. It is the fallback when
// no valid profile is cached.
func EstimateOptimalParallelThreshold() int {
	numCPU := runtime.NumCPU()

	switch {
	case numCPU == 1:
		return SequentialThreshold
	case numCPU <= 2:
		return 200_000
	case numCPU <= 4:
		return 100_000
	case numCPU <= 8:
		return 50_000
	case numCPU <= 16:
		return 25_000
	default:
		return 10_000
	}
}

// EstimateOptimalWorkers caps the worker count: past 16 blocks the
// per-block sweeps are too short for the typical calibration sizes.
func EstimateOptimalWorkers() int {
	return min(runtime.NumCPU(), 16)
}

// ValidateThreshold clamps a threshold into [MinParallelThreshold,
// MaxParallelThreshold].
func ValidateThreshold(threshold int) int {
	if threshold < MinParallelThreshold {
		return MinParallelThreshold
	}
	if threshold > MaxParallelThreshold {
		return MaxParallelThreshold
	}
	return threshold
}

// sortedCopy returns the sizes in ascending order without touching the
// input.
func sortedCopy(sizes []int) []int {
	out := append([]int(nil), sizes...)
	sort.Ints(out)
	return out
}
