package service

//go:generate mockgen -source=solver_service.go -destination=mocks/mock_service.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agbru/ddsolve/internal/logging"
	"github.com/agbru/ddsolve/internal/solver"
	"github.com/agbru/ddsolve/internal/sparse"
)

var (
	// ErrDimensionExceeded is returned when a system is larger than the
	// configured maximum dimension.
	ErrDimensionExceeded = errors.New("maximum system dimension exceeded")
)

// Service defines the narrow entry points of the solver stack. This
// abstraction enables dependency injection and easier testing/mocking.
type Service interface {
	// Solve computes x with Ax = b using the given method.
	Solve(ctx context.Context, a *sparse.Matrix, b []float64, method solver.Method, opts solver.Options) (*solver.Result, error)

	// EstimateEntry estimates x[row] using the given method.
	EstimateEntry(ctx context.Context, a *sparse.Matrix, b []float64, row int, method solver.Method, opts solver.Options) (*solver.Estimate, error)

	// EstimateFunctional estimates tᵀx by backward push.
	EstimateFunctional(ctx context.Context, a *sparse.Matrix, b, t []float64, opts solver.Options) (*solver.Estimate, error)

	// StreamSolve prepares a solve and returns its iteration cursor.
	StreamSolve(a *sparse.Matrix, b []float64, method solver.Method, opts solver.Options) (*solver.Stream, error)

	// EstimateEntries estimates several coordinates concurrently. The
	// estimates are returned in the order of rows.
	EstimateEntries(ctx context.Context, a *sparse.Matrix, b []float64, rows []int, method solver.Method, opts solver.Options) ([]*solver.Estimate, error)
}

// SolverService resolves methods through a factory, enforces the size limit
// and logs every call. Implements the Service interface.
type SolverService struct {
	factory solver.Factory
	logger  logging.Logger
	maxN    int
	workers int
}

// Ensure SolverService implements Service interface.
var _ Service = (*SolverService)(nil)

// NewSolverService creates a new instance of SolverService.
//
// Parameters:
//   - factory: The factory to retrieve solvers from.
//   - logger: The logger for call summaries. If nil, nothing is logged.
//   - maxN: The maximum allowed dimension (0 for no limit).
func NewSolverService(factory solver.Factory, logger logging.Logger, maxN int) *SolverService {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &SolverService{
		factory: factory,
		logger:  logger,
		maxN:    maxN,
		workers: runtime.GOMAXPROCS(0),
	}
}

func (s *SolverService) resolve(a *sparse.Matrix, method solver.Method) (solver.Solver, error) {
	if s.maxN > 0 && a != nil && a.Rows() > s.maxN {
		return nil, fmt.Errorf("%w: %d > %d", ErrDimensionExceeded, a.Rows(), s.maxN)
	}
	return s.factory.Get(method)
}

// Solve retrieves the requested solver and runs a full solve.
func (s *SolverService) Solve(ctx context.Context, a *sparse.Matrix, b []float64, method solver.Method, opts solver.Options) (*solver.Result, error) {
	slv, err := s.resolve(a, method)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := slv.Solve(ctx, a, b, opts)
	if err != nil {
		s.logger.Error("solve failed", err, logging.String("method", method.String()))
		return res, err
	}
	s.logger.Debug("solve finished",
		logging.String("method", method.String()),
		logging.String("status", res.Status.String()),
		logging.Int("iterations", res.Iterations),
		logging.Float64("residual", res.RelativeResidual),
		logging.Duration("duration", time.Since(start)))
	for _, w := range res.Warnings {
		s.logger.Warn("solve warning", logging.String("method", method.String()), logging.Err(w))
	}
	return res, nil
}

// EstimateEntry retrieves the requested solver and estimates one
// coordinate.
func (s *SolverService) EstimateEntry(ctx context.Context, a *sparse.Matrix, b []float64, row int, method solver.Method, opts solver.Options) (*solver.Estimate, error) {
	slv, err := s.resolve(a, method)
	if err != nil {
		return nil, err
	}
	est, err := slv.EstimateEntry(ctx, a, b, row, opts)
	if err != nil {
		s.logger.Error("entry estimate failed", err, logging.String("method", method.String()), logging.Int("row", row))
		return est, err
	}
	s.logger.Debug("entry estimated",
		logging.String("method", method.String()),
		logging.Int("row", row),
		logging.Float64("value", est.Value),
		logging.Float64("bound", est.ErrorBound()),
		logging.Field{Key: "touches", Value: est.Stats.MatrixTouches})
	return est, nil
}

// EstimateFunctional estimates tᵀx with backward push.
func (s *SolverService) EstimateFunctional(ctx context.Context, a *sparse.Matrix, b, t []float64, opts solver.Options) (*solver.Estimate, error) {
	slv, err := s.resolve(a, solver.BackwardPush)
	if err != nil {
		return nil, err
	}
	est, err := slv.EstimateFunctional(ctx, a, b, t, opts)
	if err != nil {
		s.logger.Error("functional estimate failed", err)
		return est, err
	}
	s.logger.Debug("functional estimated",
		logging.Float64("value", est.Value),
		logging.Float64("bound", est.ErrorBound()))
	return est, nil
}

// StreamSolve returns the iteration cursor of a solve.
func (s *SolverService) StreamSolve(a *sparse.Matrix, b []float64, method solver.Method, opts solver.Options) (*solver.Stream, error) {
	slv, err := s.resolve(a, method)
	if err != nil {
		return nil, err
	}
	return slv.Stream(a, b, opts)
}

// EstimateEntries runs one estimate per row on a bounded pool of
// goroutines sharing the read-only matrix. When the solver supports it the
// system is validated once for the whole batch. The first error cancels
// the remaining queries.
func (s *SolverService) EstimateEntries(ctx context.Context, a *sparse.Matrix, b []float64, rows []int, method solver.Method, opts solver.Options) ([]*solver.Estimate, error) {
	slv, err := s.resolve(a, method)
	if err != nil {
		return nil, err
	}

	estimate := func(ctx context.Context, row int) (*solver.Estimate, error) {
		return slv.EstimateEntry(ctx, a, b, row, opts)
	}
	if be, ok := slv.(solver.BatchEstimator); ok {
		batch, err := be.PrepareEntries(a, b, opts)
		if err != nil {
			s.logger.Error("batch estimate failed", err, logging.Int("rows", len(rows)))
			return nil, err
		}
		estimate = batch.Entry
	} else if a != nil {
		// Build the shared views once instead of racing on first use.
		a.Graph()
		a.CheckDiagonalDominance()
	}

	out := make([]*solver.Estimate, len(rows))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, row := range rows {
		g.Go(func() error {
			est, err := estimate(ctx, row)
			if err != nil {
				return fmt.Errorf("row %d: %w", row, err)
			}
			out[i] = est
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("batch estimate failed", err, logging.Int("rows", len(rows)))
		return nil, err
	}
	s.logger.Debug("batch estimated", logging.String("method", method.String()), logging.Int("rows", len(rows)))
	return out, nil
}
