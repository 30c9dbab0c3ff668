package solver

import (
	"context"
	"sync"

	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/sparse"
)

// BatchEstimator is implemented by solvers that can answer many entry
// queries against one system after validating it once.
type BatchEstimator interface {
	PrepareEntries(a *sparse.Matrix, b []float64, opts Options) (*EntryBatch, error)
}

var _ BatchEstimator = (*DecoratedSolver)(nil)

// EntryBatch answers entry queries against one prepared system. It is safe
// for concurrent use. Local methods share the validated system, its norms
// and its graph view; other methods share a single full solve, run by the
// first query.
type EntryBatch struct {
	solver *DecoratedSolver
	a      *sparse.Matrix
	b      []float64
	opts   Options

	local entryEstimator
	sys   *system

	once sync.Once
	res  *Result
	err  error
}

// PrepareEntries validates a, b and opts once for a run of Entry calls.
func (s *DecoratedSolver) PrepareEntries(a *sparse.Matrix, b []float64, opts Options) (*EntryBatch, error) {
	if err := opts.Validate(); err != nil {
		return nil, s.wrap(err)
	}
	batch := &EntryBatch{solver: s, a: a, b: b, opts: opts}

	local, ok := s.core.(entryEstimator)
	if !ok {
		if _, err := validateSystem(a, b); err != nil {
			return nil, s.wrap(err)
		}
		return batch, nil
	}
	batch.opts = opts.withDefaults()
	sys, err := prepareMatrix(s.core.Method(), a, b, batch.opts)
	if err != nil {
		return nil, s.wrap(err)
	}
	if !sys.trivial() {
		sys.a.Graph()
	}
	batch.local, batch.sys = local, sys
	return batch, nil
}

// Entry estimates x[row]. For full-solve methods the first call runs the
// solve with its context; later calls reuse that outcome, error included.
func (e *EntryBatch) Entry(ctx context.Context, row int) (*Estimate, error) {
	if row < 0 || row >= e.a.Rows() {
		return nil, e.solver.wrap(apperrors.NewMalformedInputError("row", "index %d out of range [0,%d)", row, e.a.Rows()))
	}
	est, err := e.solver.instrument(ctx, "EstimateEntry", func(ctx context.Context) (*Estimate, error) {
		if e.local != nil {
			return e.solver.localEstimate(ctx, e.local, e.sys, []targetEntry{{node: row, value: 1}}, e.opts)
		}
		e.once.Do(func() {
			e.res, e.err = e.solver.Solve(ctx, e.a, e.b, e.opts)
		})
		return estimateFromResult(e.res, e.err, func(res *Result) (float64, float64) {
			return res.X[row], res.Certificate.ErrorBound
		})
	})
	if est != nil {
		est.Row = row
	}
	return est, err
}
