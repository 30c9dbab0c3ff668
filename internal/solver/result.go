package solver

import (
	"context"
	"time"

	"github.com/agbru/ddsolve/internal/convergence"
	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/sparse"
)

// Status is the terminal state of a solve.
type Status int

// Terminal states. A solve starts Initialized, moves to Iterating and ends
// in exactly one of the remaining states.
const (
	StatusInitialized Status = iota
	StatusIterating
	StatusConverged
	StatusMaxIterations
	StatusStagnated
	StatusDiverged
	StatusFailed
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "initialized"
	case StatusIterating:
		return "iterating"
	case StatusConverged:
		return "converged"
	case StatusMaxIterations:
		return "max-iterations"
	case StatusStagnated:
		return "stagnated"
	case StatusDiverged:
		return "diverged"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Stats counts the work done by one solve. MatrixTouches is the number of
// stored matrix entries read by the algorithm, the unit in which sublinear
// query complexity is measured.
type Stats struct {
	MatVecs       int           `json:"matvecs"`
	MatrixTouches int64         `json:"matrix_touches"`
	Pushes        int64         `json:"pushes"`
	StagnantSteps int           `json:"stagnant_steps"`
	FallbackSteps int           `json:"fallback_steps"`
	Runtime       time.Duration `json:"runtime"`
}

// Certificate is an analytic bound on the error of an estimate, derived
// from the push residual, the series truncation or the final residual.
// Confidence is 1 when the bound is backed by strict row dominance and 0
// when no finite bound is available.
type Certificate struct {
	EstimatedValue float64 `json:"estimated_value"`
	ErrorBound     float64 `json:"error_bound"`
	Confidence     float64 `json:"confidence"`
	Source         string  `json:"source"`
}

// PhaseReport summarizes one phase of the hybrid method.
type PhaseReport struct {
	Phase      string              `json:"phase"`
	Iterations int                 `json:"iterations"`
	Duration   time.Duration       `json:"duration"`
	Metrics    convergence.Metrics `json:"metrics"`
	Skipped    bool                `json:"skipped,omitempty"`
}

// Result is the outcome of a full solve. X is the best iterate found
// (lowest residual), which is the last iterate unless the solve diverged.
type Result struct {
	X                []float64           `json:"x"`
	Method           Method              `json:"method"`
	Status           Status              `json:"status"`
	Converged        bool                `json:"converged"`
	Iterations       int                 `json:"iterations"`
	Residual         float64             `json:"residual"`
	RelativeResidual float64             `json:"relative_residual"`
	Metrics          convergence.Metrics `json:"metrics"`
	// Certificate bounds ‖x − x*‖_∞ when a bound is available.
	Certificate Certificate        `json:"certificate"`
	Stats       Stats              `json:"stats"`
	Warnings    []error            `json:"-"`
	Fix         sparse.DiagonalFix `json:"fix"`
	Phases      []PhaseReport      `json:"phases,omitempty"`

	failure error
	ctxErr  error
}

// Err returns the typed error describing a partial or failed outcome, or
// nil when the solve converged.
func (r *Result) Err() error {
	switch r.Status {
	case StatusConverged:
		return nil
	case StatusDiverged:
		return apperrors.DivergenceError{Iteration: r.Iterations, Residual: r.RelativeResidual}
	case StatusStagnated:
		return apperrors.NotConvergedError{Iterations: r.Iterations, Residual: r.RelativeResidual, Reason: "residual stagnated"}
	case StatusMaxIterations:
		return apperrors.NotConvergedError{Iterations: r.Iterations, Residual: r.RelativeResidual}
	case StatusCanceled:
		if r.ctxErr != nil {
			return r.ctxErr
		}
		return context.Canceled
	case StatusFailed:
		if r.failure != nil {
			return r.failure
		}
	}
	return apperrors.NotConvergedError{Iterations: r.Iterations, Residual: r.RelativeResidual, Reason: r.Status.String()}
}

// Estimate is the outcome of a single-entry or functional query.
type Estimate struct {
	Value       float64     `json:"value"`
	Certificate Certificate `json:"certificate"`
	Method      Method      `json:"method"`
	Status      Status      `json:"status"`
	Stats       Stats       `json:"stats"`
	// Row is the queried coordinate, or -1 for a functional.
	Row      int     `json:"row"`
	Warnings []error `json:"-"`
}

// ErrorBound is a shorthand for Certificate.ErrorBound.
func (e *Estimate) ErrorBound() float64 { return e.Certificate.ErrorBound }

// Snapshot is one element of a solve stream. X aliases the solver's
// iterate and is valid only until the next call to Next; copy it to keep it.
type Snapshot struct {
	Iteration int
	Metrics   convergence.Metrics
	X         []float64
	Phase     string
	Elapsed   time.Duration
}
