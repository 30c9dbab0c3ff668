// Package convergence computes the residual-based metrics shared by every
// iterative method: relative residual, geometric convergence rate over a
// sliding window, stagnation and divergence detection, and the stop
// decision derived from them.
package convergence

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/agbru/ddsolve/internal/sparse"
)

// Default values used when a Config field is zero.
const (
	DefaultTolerance           = 1e-6
	DefaultMaxIterations       = 1000
	DefaultWindow              = 10
	DefaultStagnationThreshold = 1e-4
	DefaultDivergenceFactor    = 1000
	DefaultGrowthFactor        = 10
)

// Config parameterizes the tracker. Zero fields take the defaults above.
type Config struct {
	Tolerance           float64
	MaxIterations       int
	Window              int
	StagnationThreshold float64
	// DivergenceFactor flags divergence when the residual exceeds this
	// multiple of the initial residual.
	DivergenceFactor float64
	// GrowthFactor flags divergence when a single iteration multiplies the
	// residual by more than this.
	GrowthFactor float64
}

// WithDefaults returns c with every zero field replaced by its default.
func (c Config) WithDefaults() Config {
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.StagnationThreshold <= 0 {
		c.StagnationThreshold = DefaultStagnationThreshold
	}
	if c.DivergenceFactor <= 0 {
		c.DivergenceFactor = DefaultDivergenceFactor
	}
	if c.GrowthFactor <= 0 {
		c.GrowthFactor = DefaultGrowthFactor
	}
	return c
}

// Metrics is the per-iteration convergence snapshot.
type Metrics struct {
	Iteration            int     `json:"iteration"`
	ResidualNorm         float64 `json:"residual_norm"`
	RelativeResidualNorm float64 `json:"relative_residual_norm"`
	ConvergenceRate      float64 `json:"convergence_rate"`
	ReductionFactor      float64 `json:"reduction_factor"`
	IsConverged          bool    `json:"converged"`
	StagnationDetected   bool    `json:"stagnation"`
	DivergenceDetected   bool    `json:"divergence"`
}

// ShouldStop reports whether iteration must end: converged, budget
// exhausted, stagnated or diverged.
func (m Metrics) ShouldStop(maxIterations int) bool {
	return m.IsConverged || m.Iteration >= maxIterations || m.StagnationDetected || m.DivergenceDetected
}

// Compute derives the metrics for the last entry of history, a sequence of
// relative residual norms where history[0] belongs to the initial iterate.
// residualNorm is the absolute norm of that last entry. Compute has no side
// effects.
func Compute(cfg Config, history []float64, residualNorm float64) Metrics {
	cfg = cfg.WithDefaults()
	t := len(history) - 1
	if t < 0 {
		return Metrics{}
	}
	cur := history[t]
	m := Metrics{
		Iteration:            t,
		ResidualNorm:         residualNorm,
		RelativeResidualNorm: cur,
		ConvergenceRate:      1,
		ReductionFactor:      1,
		IsConverged:          cur < cfg.Tolerance,
	}
	if t == 0 {
		return m
	}

	prev := history[t-1]
	if prev > 0 {
		m.ReductionFactor = cur / prev
	}

	w := min(cfg.Window, t)
	if base := history[t-w]; base > 0 {
		m.ConvergenceRate = math.Pow(cur/base, 1/float64(w))
	} else {
		m.ConvergenceRate = 0
	}

	if t+1 >= cfg.Window {
		recent := history[t+1-cfg.Window:]
		hi, lo := floats.Max(recent), floats.Min(recent)
		if hi > 0 && (hi-lo)/hi < cfg.StagnationThreshold {
			m.StagnationDetected = !m.IsConverged
		}
	}

	if initial := history[0]; initial > 0 && cur > cfg.DivergenceFactor*initial {
		m.DivergenceDetected = true
	}
	if prev > 0 && cur/prev > cfg.GrowthFactor {
		m.DivergenceDetected = true
	}
	if math.IsNaN(cur) || math.IsInf(cur, 0) {
		m.DivergenceDetected = true
		m.IsConverged = false
	}
	return m
}

// Tracker accumulates the residual history of one solve.
type Tracker struct {
	cfg     Config
	bNorm   float64
	history []float64
	last    Metrics
}

// NewTracker creates a tracker for a right-hand side of norm bNorm. When
// bNorm is zero the tracker falls back to absolute residuals.
func NewTracker(cfg Config, bNorm float64) *Tracker {
	return &Tracker{cfg: cfg.WithDefaults(), bNorm: bNorm}
}

// Config returns the effective configuration.
func (t *Tracker) Config() Config { return t.cfg }

// Relative converts an absolute residual norm into the tracked quantity.
func (t *Tracker) Relative(residualNorm float64) float64 {
	if t.bNorm == 0 {
		return residualNorm
	}
	return residualNorm / t.bNorm
}

// Observe records the residual norm of the next iterate (the first call
// is iteration 0) and returns its metrics.
func (t *Tracker) Observe(residualNorm float64) Metrics {
	t.history = append(t.history, t.Relative(residualNorm))
	t.last = Compute(t.cfg, t.history, residualNorm)
	return t.last
}

// Update computes the residual of x against (a, b) into scratch and
// records it. scratch must have length a.Rows().
func (t *Tracker) Update(a *sparse.Matrix, x, b, scratch []float64) Metrics {
	return t.Observe(Residual(a, x, b, scratch))
}

// Last returns the most recent metrics.
func (t *Tracker) Last() Metrics { return t.last }

// History returns the relative residuals recorded so far. The slice is
// shared with the tracker.
func (t *Tracker) History() []float64 { return t.history }

// ShouldStop applies the stop rule to the most recent metrics.
func (t *Tracker) ShouldStop() bool {
	return len(t.history) > 0 && t.last.ShouldStop(t.cfg.MaxIterations)
}

// Reset clears the history, keeping the configuration.
func (t *Tracker) Reset() {
	t.history = t.history[:0]
	t.last = Metrics{}
}

// Residual computes dst = b - A*x and returns ‖dst‖₂.
func Residual(a *sparse.Matrix, x, b, dst []float64) float64 {
	a.MulVecTo(dst, x)
	floats.SubTo(dst, b, dst)
	return floats.Norm(dst, 2)
}
