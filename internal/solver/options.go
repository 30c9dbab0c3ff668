package solver

import (
	"math"
	"time"

	"github.com/agbru/ddsolve/internal/convergence"
	apperrors "github.com/agbru/ddsolve/internal/errors"
)

// Default configuration values.
const (
	DefaultTolerance         = convergence.DefaultTolerance
	DefaultMaxIterations     = convergence.DefaultMaxIterations
	DefaultPushBudget        = 1_000_000
	DefaultParallelThreshold = 50_000
	DefaultPhaseImprovement  = 0.10
)

// Options is the explicit per-call solver context. Every field is optional;
// the zero value selects the defaults. Options carries no hidden state and
// may be reused across concurrent solves.
type Options struct {
	// Tolerance is the target relative residual ‖b − Ax‖₂/‖b‖₂.
	Tolerance float64
	// MaxIterations bounds the number of iterations (sweeps, series terms
	// or push passes).
	MaxIterations int
	// AutoFixDiagonal strengthens non-dominant rows (a_ii := s + |s| + 1)
	// instead of failing on a zero diagonal. The fix is reported on the
	// result.
	AutoFixDiagonal bool

	// Window is the sliding window for rate, stagnation and phase switching.
	Window int
	// StagnationThreshold is the relative spread below which the residual is
	// considered stagnant over the window.
	StagnationThreshold float64

	// Timeout is a wall-clock limit checked once per iteration.
	Timeout time.Duration
	// X0 is the initial iterate; nil means the zero vector.
	X0 []float64

	// Workers enables row-block parallelism when > 1.
	Workers int
	// ParallelThreshold is the minimum nnz for parallel kernels.
	ParallelThreshold int

	// PushBudget caps the total number of push operations.
	PushBudget int
	// PushThreshold is the residual magnitude below which a node is not
	// pushed. Zero derives it from Tolerance.
	PushThreshold float64

	// Seed drives the randomized refinement phase of the hybrid method.
	Seed int64
	// PhaseImprovement is the minimum relative residual reduction over a
	// window that keeps the hybrid method in its current phase.
	PhaseImprovement float64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Window <= 0 {
		o.Window = convergence.DefaultWindow
	}
	if o.StagnationThreshold <= 0 {
		o.StagnationThreshold = convergence.DefaultStagnationThreshold
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.ParallelThreshold <= 0 {
		o.ParallelThreshold = DefaultParallelThreshold
	}
	if o.PushBudget <= 0 {
		o.PushBudget = DefaultPushBudget
	}
	if o.PhaseImprovement <= 0 {
		o.PhaseImprovement = DefaultPhaseImprovement
	}
	return o
}

// Validate rejects values that cannot be defaulted: NaN or infinite
// tolerances and improvement ratios outside (0, 1).
func (o Options) Validate() error {
	if math.IsNaN(o.Tolerance) || math.IsInf(o.Tolerance, 0) {
		return apperrors.NewValidationError("tolerance", "must be finite", o.Tolerance)
	}
	if math.IsNaN(o.PushThreshold) || o.PushThreshold < 0 {
		return apperrors.NewValidationError("push-threshold", "must be a non-negative number", o.PushThreshold)
	}
	if o.PhaseImprovement >= 1 {
		return apperrors.NewValidationError("phase-improvement", "must be below 1", o.PhaseImprovement)
	}
	if o.Timeout < 0 {
		return apperrors.NewValidationError("timeout", "must not be negative", o.Timeout)
	}
	return nil
}

func (o Options) trackerConfig() convergence.Config {
	return convergence.Config{
		Tolerance:           o.Tolerance,
		MaxIterations:       o.MaxIterations,
		Window:              o.Window,
		StagnationThreshold: o.StagnationThreshold,
	}
}
