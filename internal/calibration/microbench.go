// This file implements fast micro-benchmarks of the raw mat-vec kernel
// for quick threshold estimation (~150ms).
package calibration

import (
	"context"
	"runtime"
	"time"

	"github.com/agbru/ddsolve/internal/problem"
)

// ─────────────────────────────────────────────────────────────────────────────
// Micro-benchmark Configuration
// ─────────────────────────────────────────────────────────────────────────────

const (
	// MicroBenchIterations is the number of products timed per kernel and size.
	MicroBenchIterations = 5

	// MicroBenchTimeout is the maximum time for the entire micro-benchmark suite.
	MicroBenchTimeout = 150 * time.Millisecond

	// parallelGain is the speedup the parallel kernel must show before a
	// size counts as past the crossover.
	parallelGain = 0.9
)

// ─────────────────────────────────────────────────────────────────────────────
// Micro-benchmark Types
// ─────────────────────────────────────────────────────────────────────────────

// MicroBenchmark times sequential against parallel products.
type MicroBenchmark struct {
	// Sizes are the matrix dimensions to test (default: GenerateQuickSizes).
	Sizes []int
	// Iterations is the number of products per measurement.
	Iterations int
	// Timeout is the maximum duration for the entire benchmark.
	Timeout time.Duration
	// Workers is the number of row blocks of the parallel kernel.
	Workers int
}

// SizeTiming is the per-product time of both kernels at one size.
type SizeTiming struct {
	N          int
	NNZ        int
	Sequential time.Duration
	Parallel   time.Duration
	Err        error
}

// Speedup is Sequential/Parallel, 0 when either is missing.
func (t SizeTiming) Speedup() float64 {
	if t.Err != nil || t.Sequential <= 0 || t.Parallel <= 0 {
		return 0
	}
	return float64(t.Sequential) / float64(t.Parallel)
}

// ThresholdResults contains the estimated threshold from a benchmark.
type ThresholdResults struct {
	// ParallelThreshold is the estimated crossover in nonzeros.
	ParallelThreshold int
	// Confidence is a score from 0-1 indicating result reliability.
	Confidence float64
	// Duration is how long the benchmark took.
	Duration time.Duration
	// Timings holds the raw measurements, smallest size first.
	Timings []SizeTiming
}

// ─────────────────────────────────────────────────────────────────────────────
// Micro-benchmark Implementation
// ─────────────────────────────────────────────────────────────────────────────

// NewMicroBenchmark creates a new MicroBenchmark with default settings.
func NewMicroBenchmark() *MicroBenchmark {
	return &MicroBenchmark{
		Sizes:      GenerateQuickSizes(),
		Iterations: MicroBenchIterations,
		Timeout:    MicroBenchTimeout,
		Workers:    EstimateOptimalWorkers(),
	}
}

// RunQuick measures both kernels at every size until the timeout and
// derives the crossover. Sizes run one after the other: concurrent
// measurements would compete for the cores being measured.
func (mb *MicroBenchmark) RunQuick(ctx context.Context) (ThresholdResults, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, mb.Timeout)
	defer cancel()

	timings := make([]SizeTiming, 0, len(mb.Sizes))
	for _, n := range sortedCopy(mb.Sizes) {
		if ctx.Err() != nil {
			break
		}
		timings = append(timings, mb.runSingleSize(ctx, n))
	}

	results := analyzeTimings(timings)
	results.Duration = time.Since(start)
	return results, nil
}

func (mb *MicroBenchmark) runSingleSize(ctx context.Context, n int) SizeTiming {
	a, err := problem.Banded(n, calibrationBandwidth)
	if err != nil {
		return SizeTiming{N: n, Err: err}
	}
	timing := SizeTiming{N: n, NNZ: a.NNZ()}
	x := make([]float64, n)
	for i := range x {
		x[i] = 1
	}
	dst := make([]float64, n)
	iterations := max(mb.Iterations, 1)

	// Warm up the CSR cache.
	a.MulVecTo(dst, x)

	start := time.Now()
	for i := 0; i < iterations; i++ {
		a.MulVecTo(dst, x)
	}
	timing.Sequential = time.Since(start) / time.Duration(iterations)

	start = time.Now()
	for i := 0; i < iterations; i++ {
		if err := a.ParallelMulVecTo(ctx, dst, x, mb.Workers); err != nil {
			timing.Err = err
			return timing
		}
	}
	timing.Parallel = time.Since(start) / time.Duration(iterations)
	return timing
}

// analyzeTimings places the threshold at the smallest size from which the
// parallel kernel wins at every larger size. Without any win the kernels
// stay sequential.
func analyzeTimings(timings []SizeTiming) ThresholdResults {
	tr := ThresholdResults{
		ParallelThreshold: EstimateOptimalParallelThreshold(),
		Timings:           timings,
	}
	if runtime.NumCPU() <= 1 {
		tr.ParallelThreshold = SequentialThreshold
		tr.Confidence = 1
		return tr
	}

	valid := 0
	crossover := 0
	for i := len(timings) - 1; i >= 0; i-- {
		t := timings[i]
		if t.Err != nil {
			continue
		}
		valid++
		if float64(t.Parallel) >= parallelGain*float64(t.Sequential) {
			break
		}
		crossover = t.NNZ
	}

	switch {
	case valid == 0:
		tr.Confidence = 0
	case crossover > 0:
		tr.ParallelThreshold = ValidateThreshold(crossover)
		tr.Confidence = 0.5 + 0.5*float64(valid)/float64(len(timings))
	default:
		tr.ParallelThreshold = SequentialThreshold
		tr.Confidence = 0.5
	}
	return tr
}

// ─────────────────────────────────────────────────────────────────────────────
// Quick Calibration Function
// ─────────────────────────────────────────────────────────────────────────────

// QuickCalibrate performs a fast calibration using micro-benchmarks.
func QuickCalibrate(ctx context.Context) (ThresholdResults, error) {
	return NewMicroBenchmark().RunQuick(ctx)
}
