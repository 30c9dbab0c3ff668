package convergence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agbru/ddsolve/internal/sparse"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	c := Config{}.WithDefaults()
	assert.Equal(t, 1e-6, c.Tolerance)
	assert.Equal(t, 1000, c.MaxIterations)
	assert.Equal(t, 10, c.Window)
	assert.Equal(t, 1e-4, c.StagnationThreshold)
	assert.Equal(t, 1000.0, c.DivergenceFactor)
	assert.Equal(t, 10.0, c.GrowthFactor)

	custom := Config{Tolerance: 1e-3, Window: 4}.WithDefaults()
	assert.Equal(t, 1e-3, custom.Tolerance)
	assert.Equal(t, 4, custom.Window)
}

func TestComputeRateAndReduction(t *testing.T) {
	t.Parallel()
	history := []float64{1, 0.5, 0.25, 0.125}
	m := Compute(Config{Window: 2}, history, 0.125)
	assert.Equal(t, 3, m.Iteration)
	assert.InDelta(t, 0.5, m.ReductionFactor, 1e-15)
	assert.InDelta(t, 0.5, m.ConvergenceRate, 1e-15)
	assert.False(t, m.IsConverged)
	assert.False(t, m.StagnationDetected)
	assert.False(t, m.DivergenceDetected)

	// Shorter history than the window uses what exists.
	m = Compute(Config{Window: 10}, []float64{1, 0.01}, 0.01)
	assert.InDelta(t, 0.01, m.ConvergenceRate, 1e-15)
}

func TestComputeInitialIterate(t *testing.T) {
	t.Parallel()
	m := Compute(Config{}, []float64{1}, 3)
	assert.Equal(t, 0, m.Iteration)
	assert.Equal(t, 3.0, m.ResidualNorm)
	assert.Equal(t, 1.0, m.ConvergenceRate)
	assert.False(t, m.ShouldStop(1000))
	assert.Equal(t, Metrics{}, Compute(Config{}, nil, 0))
}

func TestComputeStagnation(t *testing.T) {
	t.Parallel()
	history := []float64{1, 0.5}
	for i := 0; i < 10; i++ {
		history = append(history, 0.1+1e-7*float64(i%2))
	}
	m := Compute(Config{Window: 5}, history, 0)
	assert.True(t, m.StagnationDetected)
	assert.True(t, m.ShouldStop(1000))

	// Needs a full window.
	m = Compute(Config{Window: 5}, []float64{0.1, 0.1, 0.1}, 0)
	assert.False(t, m.StagnationDetected)

	// A converged sequence is not reported as stagnant.
	m = Compute(Config{Window: 3, Tolerance: 1e-3}, []float64{1e-9, 1e-9, 1e-9}, 0)
	assert.True(t, m.IsConverged)
	assert.False(t, m.StagnationDetected)
}

func TestComputeDivergence(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		history []float64
		want    bool
	}{
		{"jump", []float64{1, 0.5, 6}, true},
		{"slow growth past initial factor", []float64{1, 9, 81, 729, 6561}, true},
		{"moderate growth", []float64{1, 2, 4}, false},
		{"decreasing", []float64{1, 0.1, 0.01}, false},
		{"nan", []float64{1, math.NaN()}, true},
		{"from zero previous", []float64{1, 0, 0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := Compute(Config{}, tt.history, 0)
			assert.Equal(t, tt.want, m.DivergenceDetected)
		})
	}
}

func TestTrackerRelativeAndAbsolute(t *testing.T) {
	t.Parallel()
	tr := NewTracker(Config{Tolerance: 1e-2, MaxIterations: 3}, 10)
	m := tr.Observe(10)
	assert.Equal(t, 1.0, m.RelativeResidualNorm)
	m = tr.Observe(0.05)
	assert.True(t, m.IsConverged)
	assert.True(t, tr.ShouldStop())
	assert.InDeltaSlice(t, []float64{1, 0.005}, tr.History(), 1e-15)

	abs := NewTracker(Config{}, 0)
	m = abs.Observe(0.5)
	assert.Equal(t, 0.5, m.RelativeResidualNorm)

	tr.Reset()
	assert.Empty(t, tr.History())
	assert.False(t, tr.ShouldStop())
}

func TestTrackerIterationBudget(t *testing.T) {
	t.Parallel()
	tr := NewTracker(Config{MaxIterations: 2}, 1)
	tr.Observe(1)
	tr.Observe(0.9)
	assert.False(t, tr.ShouldStop())
	tr.Observe(0.8)
	assert.True(t, tr.ShouldStop())
	assert.Equal(t, 2, tr.Last().Iteration)
}

func TestResidualAndUpdate(t *testing.T) {
	t.Parallel()
	a, err := sparse.FromRows([][]float64{{4, 1}, {1, 3}})
	require.NoError(t, err)
	b := []float64{1, 2}
	dst := make([]float64, 2)

	exact := []float64{1.0 / 11, 7.0 / 11}
	assert.InDelta(t, 0, Residual(a, exact, b, dst), 1e-14)

	norm := Residual(a, []float64{0, 0}, b, dst)
	assert.InDelta(t, math.Sqrt(5), norm, 1e-15)
	assert.Equal(t, b, dst)

	tr := NewTracker(Config{}, math.Sqrt(5))
	m := tr.Update(a, []float64{0, 0}, b, dst)
	assert.InDelta(t, 1.0, m.RelativeResidualNorm, 1e-15)
}
