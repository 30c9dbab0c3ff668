package orchestration

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/agbru/ddsolve/internal/config"
	"github.com/agbru/ddsolve/internal/convergence"
	"github.com/agbru/ddsolve/internal/solver"
	"github.com/agbru/ddsolve/internal/sparse"
)

// TestExecuteSolvesPassesOptions verifies that the configuration reaches the
// solver as Options and that extra observers receive its notifications.
func TestExecuteSolvesPassesOptions(t *testing.T) {
	t.Parallel()
	spy := &SpySolver{}
	rec := &recordingObserver{}

	cfg := config.AppConfig{
		Tolerance:         1e-9,
		MaxIterations:     77,
		PushBudget:        12345,
		ParallelThreshold: 999,
		Workers:           3,
		AutoFix:           true,
	}
	ExecuteSolves(context.Background(), []solver.Solver{spy}, nil, []float64{1}, cfg, io.Discard, rec)

	got := spy.capturedOpts
	if got.Tolerance != 1e-9 || got.MaxIterations != 77 || got.PushBudget != 12345 ||
		got.ParallelThreshold != 999 || got.Workers != 3 || !got.AutoFixDiagonal {
		t.Errorf("options not propagated: %+v", got)
	}
	if rec.count() != 1 {
		t.Errorf("extra observer got %d updates, want 1", rec.count())
	}
}

type SpySolver struct {
	capturedOpts solver.Options
}

func (s *SpySolver) Solve(ctx context.Context, a *sparse.Matrix, b []float64, opts solver.Options) (*solver.Result, error) {
	return s.SolveWithObservers(ctx, nil, 0, a, b, opts)
}

func (s *SpySolver) SolveWithObservers(_ context.Context, subject *solver.ProgressSubject, idx int, _ *sparse.Matrix, b []float64, opts solver.Options) (*solver.Result, error) {
	s.capturedOpts = opts
	if subject != nil {
		subject.Notify(idx, 1, convergence.Metrics{Iteration: 1, IsConverged: true})
	}
	return &solver.Result{X: append([]float64(nil), b...), Status: solver.StatusConverged, Converged: true}, nil
}

func (s *SpySolver) EstimateEntry(context.Context, *sparse.Matrix, []float64, int, solver.Options) (*solver.Estimate, error) {
	return &solver.Estimate{}, nil
}

func (s *SpySolver) EstimateFunctional(context.Context, *sparse.Matrix, []float64, []float64, solver.Options) (*solver.Estimate, error) {
	return &solver.Estimate{Row: -1}, nil
}

func (s *SpySolver) Stream(*sparse.Matrix, []float64, solver.Options) (*solver.Stream, error) {
	return nil, nil
}

func (s *SpySolver) Method() solver.Method { return solver.Jacobi }

func (s *SpySolver) Name() string { return "Spy" }

type recordingObserver struct {
	mu      sync.Mutex
	updates int
}

func (r *recordingObserver) Update(int, float64, convergence.Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
}

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}
