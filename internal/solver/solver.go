// Package solver provides iterative solvers for sparse, diagonally dominant
// linear systems Ax = b. It exposes a `Solver` interface that abstracts the
// method (Jacobi, Gauss-Seidel, Conjugate Gradient, Neumann series, forward
// and backward push, hybrid) so that methods can be used interchangeably,
// and a restartable `Stream` cursor over the iterations of one solve.
package solver

//go:generate mockgen -destination=mocks/mock_solver.go -package=mocks github.com/agbru/ddsolve/internal/solver Solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/floats"

	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/sparse"
)

var (
	solvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ddsolve_solves_total",
			Help: "The total number of solves processed, by method and terminal status",
		},
		[]string{"method", "status"},
	)
	solveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "ddsolve_solve_duration_seconds",
			Help: "The duration of solves in seconds",
		},
		[]string{"method"},
	)
	solveIterations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ddsolve_solve_iterations",
			Help:    "The number of iterations per solve",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"method"},
	)
	matrixTouches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ddsolve_matrix_touches_total",
			Help: "The number of stored matrix entries read by solves and estimates",
		},
		[]string{"method"},
	)
	pushOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ddsolve_push_operations_total",
			Help: "The number of push operations performed",
		},
		[]string{"method"},
	)
	estimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ddsolve_estimates_total",
			Help: "The total number of entry and functional estimates, by method and status",
		},
		[]string{"method", "status"},
	)
)

// Solver is the public interface of one solution method. Implementations
// hold no per-solve state and are safe for concurrent use; every call owns
// its iterate and scratch space.
type Solver interface {
	// Solve computes x with Ax = b.
	//
	// Input problems (malformed input, zero diagonal without auto-fix,
	// insufficient dominance for push methods, asymmetric input to CG)
	// return a nil result and a SolveError. Numerical outcomes
	// (non-convergence, stagnation, divergence) return a result whose
	// Status describes them and a nil error; Result.Err yields the typed
	// error. Cancellation, the Timeout deadline and CG breakdown return
	// both the partial result and the error.
	Solve(ctx context.Context, a *sparse.Matrix, b []float64, opts Options) (*Result, error)

	// SolveWithObservers is Solve with per-iteration notifications.
	//
	// Parameters:
	//   - ctx: The context for managing cancellation and deadlines.
	//   - subject: The progress subject with registered observers. If nil, progress is ignored.
	//   - solverIndex: A unique index for the solver instance.
	//   - a, b: The system to solve.
	//   - opts: Configuration options for the solve.
	SolveWithObservers(ctx context.Context, subject *ProgressSubject, solverIndex int, a *sparse.Matrix, b []float64, opts Options) (*Result, error)

	// EstimateEntry estimates x[row]. Backward push does this locally, in a
	// number of matrix touches independent of n; other methods solve for
	// the whole vector and read one coordinate.
	EstimateEntry(ctx context.Context, a *sparse.Matrix, b []float64, row int, opts Options) (*Estimate, error)

	// EstimateFunctional estimates tᵀx.
	EstimateFunctional(ctx context.Context, a *sparse.Matrix, b, t []float64, opts Options) (*Estimate, error)

	// Stream prepares a solve and returns its iteration cursor.
	Stream(a *sparse.Matrix, b []float64, opts Options) (*Stream, error)

	// Method returns the method identifier.
	Method() Method

	// Name returns the display name of the method (e.g. "Gauss-Seidel").
	Name() string
}

// coreSolver is the internal interface of a method: it builds the stepper
// that performs one solve.
type coreSolver interface {
	Method() Method
	Name() string
	newStepper(ctx context.Context, ws *workspace) (stepper, error)
}

// DecoratedSolver implements Solver around a coreSolver, adding option
// validation, metrics, tracing, logging and progress notification.
type DecoratedSolver struct {
	core coreSolver
}

// NewSolver wraps a core method. It panics if core is nil.
func NewSolver(core coreSolver) Solver {
	if core == nil {
		panic("solver: the `coreSolver` implementation cannot be nil")
	}
	return &DecoratedSolver{core: core}
}

// New returns the Solver for a method.
func New(m Method) (Solver, error) {
	core, err := coreFor(m)
	if err != nil {
		return nil, err
	}
	return NewSolver(core), nil
}

func coreFor(m Method) (coreSolver, error) {
	switch m {
	case Jacobi:
		return jacobiSolver{}, nil
	case GaussSeidel:
		return gaussSeidelSolver{}, nil
	case ConjugateGradient:
		return cgSolver{}, nil
	case Neumann:
		return neumannSolver{}, nil
	case ForwardPush:
		return forwardPushSolver{}, nil
	case BackwardPush:
		return backwardPushSolver{}, nil
	case Hybrid:
		return hybridSolver{}, nil
	}
	return nil, fmt.Errorf("unknown method: %v", m)
}

// Method returns the wrapped method.
func (s *DecoratedSolver) Method() Method { return s.core.Method() }

// Name returns the display name of the wrapped method.
func (s *DecoratedSolver) Name() string { return s.core.Name() }

func (s *DecoratedSolver) wrap(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.SolveError{Method: s.core.Method().String(), Cause: err}
}

// Stream prepares a solve and returns its cursor.
func (s *DecoratedSolver) Stream(a *sparse.Matrix, b []float64, opts Options) (*Stream, error) {
	st, err := newStream(s.core, a, b, opts)
	if err != nil {
		return nil, s.wrap(err)
	}
	return st, nil
}

// Solve computes x with Ax = b.
func (s *DecoratedSolver) Solve(ctx context.Context, a *sparse.Matrix, b []float64, opts Options) (*Result, error) {
	return s.SolveWithObservers(ctx, nil, 0, a, b, opts)
}

// SolveWithObservers drains a stream, notifying the subject after every
// iteration with the log-scale progress from the initial residual to the
// tolerance.
func (s *DecoratedSolver) SolveWithObservers(ctx context.Context, subject *ProgressSubject, solverIndex int, a *sparse.Matrix, b []float64, opts Options) (res *Result, err error) {
	ctx, span := otel.Tracer("solver").Start(ctx, "Solve")
	defer span.End()
	method := s.core.Method().String()
	span.SetAttributes(attribute.String("method", method))

	start := time.Now()
	defer func() {
		duration := time.Since(start).Seconds()
		status := "error"
		if res != nil {
			status = res.Status.String()
			solveIterations.WithLabelValues(method).Observe(float64(res.Iterations))
			matrixTouches.WithLabelValues(method).Add(float64(res.Stats.MatrixTouches))
			pushOperations.WithLabelValues(method).Add(float64(res.Stats.Pushes))
			span.SetAttributes(attribute.Int("iterations", res.Iterations))
		}
		span.SetAttributes(attribute.String("status", status))
		solvesTotal.WithLabelValues(method, status).Inc()
		solveDuration.WithLabelValues(method).Observe(duration)

		event := log.Debug().
			Str("method", method).
			Float64("duration", duration).
			Str("status", status)
		if res != nil {
			event = event.Int("iterations", res.Iterations).Float64("residual", res.RelativeResidual)
		}
		event.Msg("solve completed")
	}()

	stream, err := s.Stream(a, b, opts)
	if err != nil {
		return nil, err
	}
	tol := stream.opts.Tolerance
	initial := math.NaN()
	for {
		snap, ok := stream.Next(ctx)
		if !ok {
			break
		}
		if subject == nil {
			continue
		}
		rel := snap.Metrics.RelativeResidualNorm
		if math.IsNaN(initial) {
			initial = rel
		}
		subject.Notify(solverIndex, Progress(initial, rel, tol), snap.Metrics)
	}
	res = stream.Result()
	if subject != nil && res.Converged {
		subject.Notify(solverIndex, 1.0, res.Metrics)
	}
	if err := stream.Err(); err != nil {
		return res, s.wrap(err)
	}
	return res, nil
}

// EstimateEntry estimates x[row].
func (s *DecoratedSolver) EstimateEntry(ctx context.Context, a *sparse.Matrix, b []float64, row int, opts Options) (*Estimate, error) {
	if a != nil && (row < 0 || row >= a.Rows()) {
		return nil, s.wrap(apperrors.NewMalformedInputError("row", "index %d out of range [0,%d)", row, a.Rows()))
	}
	est, err := s.estimate(ctx, "EstimateEntry", a, b, []targetEntry{{node: row, value: 1}}, opts,
		func(res *Result) (float64, float64) {
			return res.X[row], res.Certificate.ErrorBound
		})
	if est != nil {
		est.Row = row
	}
	return est, err
}

// EstimateFunctional estimates tᵀx.
func (s *DecoratedSolver) EstimateFunctional(ctx context.Context, a *sparse.Matrix, b, t []float64, opts Options) (*Estimate, error) {
	if a != nil && len(t) != a.Cols() {
		return nil, s.wrap(apperrors.DimensionError{Name: "t", Expected: a.Cols(), Got: len(t)})
	}
	var target []targetEntry
	for i, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, s.wrap(apperrors.NewMalformedInputError(fmt.Sprintf("t[%d]", i), "non-finite value %v", v))
		}
		if v != 0 {
			target = append(target, targetEntry{node: i, value: v})
		}
	}
	tNorm := floats.Norm(t, 1)
	est, err := s.estimate(ctx, "EstimateFunctional", a, b, target, opts,
		func(res *Result) (float64, float64) {
			return floats.Dot(t, res.X), res.Certificate.ErrorBound * tNorm
		})
	if est != nil {
		est.Row = -1
	}
	return est, err
}

// estimate runs a local estimator when the method has one, and otherwise
// reads the functional off a full solve with read.
func (s *DecoratedSolver) estimate(ctx context.Context, op string, a *sparse.Matrix, b []float64, target []targetEntry, opts Options, read func(*Result) (float64, float64)) (*Estimate, error) {
	return s.instrument(ctx, op, func(ctx context.Context) (*Estimate, error) {
		local, ok := s.core.(entryEstimator)
		if !ok {
			res, err := s.Solve(ctx, a, b, opts)
			return estimateFromResult(res, err, read)
		}
		if err := opts.Validate(); err != nil {
			return nil, s.wrap(err)
		}
		opts = opts.withDefaults()
		sys, err := prepareMatrix(s.core.Method(), a, b, opts)
		if err != nil {
			return nil, s.wrap(err)
		}
		return s.localEstimate(ctx, local, sys, target, opts)
	})
}

// instrument wraps one estimate in a span, the estimate metrics and a
// debug log line.
func (s *DecoratedSolver) instrument(ctx context.Context, op string, run func(context.Context) (*Estimate, error)) (est *Estimate, err error) {
	ctx, span := otel.Tracer("solver").Start(ctx, op)
	defer span.End()
	method := s.core.Method().String()
	span.SetAttributes(attribute.String("method", method))

	start := time.Now()
	defer func() {
		status := "error"
		if est != nil {
			status = est.Status.String()
			matrixTouches.WithLabelValues(method).Add(float64(est.Stats.MatrixTouches))
			pushOperations.WithLabelValues(method).Add(float64(est.Stats.Pushes))
		}
		estimatesTotal.WithLabelValues(method, status).Inc()
		log.Debug().
			Str("method", method).
			Str("op", op).
			Dur("duration", time.Since(start)).
			Str("status", status).
			Msg("estimate completed")
	}()

	return run(ctx)
}

// localEstimate runs the local estimator on a prepared system.
func (s *DecoratedSolver) localEstimate(ctx context.Context, local entryEstimator, sys *system, target []targetEntry, opts Options) (*Estimate, error) {
	if sys.trivial() {
		return &Estimate{
			Method:      s.core.Method(),
			Status:      StatusConverged,
			Certificate: Certificate{Confidence: 1, Source: "exact"},
			Warnings:    sys.warnings,
		}, nil
	}
	start := time.Now()
	est := local.estimate(ctx, sys, target, opts)
	est.Stats.Runtime = time.Since(start)
	est.Warnings = sys.warnings
	if est.Status == StatusCanceled {
		return est, s.wrap(ctx.Err())
	}
	return est, nil
}

// estimateFromResult turns a full solve into an estimate of the
// functional that read extracts.
func estimateFromResult(res *Result, err error, read func(*Result) (float64, float64)) (*Estimate, error) {
	if res == nil {
		return nil, err
	}
	value, bound := read(res)
	cert := res.Certificate
	cert.EstimatedValue, cert.ErrorBound = value, bound
	return &Estimate{
		Value:       value,
		Certificate: cert,
		Method:      res.Method,
		Status:      res.Status,
		Stats:       res.Stats,
		Warnings:    res.Warnings,
	}, err
}
