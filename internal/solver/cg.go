package solver

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	apperrors "github.com/agbru/ddsolve/internal/errors"
)

const (
	// cgCurvatureEps is the relative curvature pᵀAp/pᵀp at or below which
	// the search direction is rejected.
	cgCurvatureEps = 1e-14
	// cgStagnationRatio flags a step whose squared residual did not drop
	// below this fraction of the previous one.
	cgStagnationRatio = 0.999
	// cgRefreshInterval is the number of steps between recomputations of the
	// true residual, bounding drift of the recurrence.
	cgRefreshInterval = 50
)

// cgSolver is conjugate gradient for symmetric matrices.
type cgSolver struct{}

func (cgSolver) Method() Method { return ConjugateGradient }
func (cgSolver) Name() string   { return "Conjugate Gradient" }

func (cgSolver) newStepper(_ context.Context, ws *workspace) (stepper, error) {
	if ok, row, col := ws.sys.a.FirstAsymmetry(); !ok {
		return nil, apperrors.NotSymmetricError{Row: row, Col: col}
	}
	return newCGStepper(ws), nil
}

type cgStepper struct {
	*workspace
	r, p, ap     []float64
	rsOld        float64
	sinceRefresh int
}

func newCGStepper(ws *workspace) *cgStepper {
	n := ws.sys.n
	return &cgStepper{
		workspace: ws,
		r:         make([]float64, n),
		p:         make([]float64, n),
		ap:        make([]float64, n),
	}
}

func (s *cgStepper) start(ctx context.Context) (float64, error) {
	norm, err := s.residualInto(ctx, s.r, s.x)
	if err != nil {
		return 0, err
	}
	copy(s.p, s.r)
	s.rsOld = norm * norm
	s.sinceRefresh = 0
	return norm, nil
}

func (s *cgStepper) step(ctx context.Context) (float64, error) {
	if s.rsOld == 0 {
		return 0, nil
	}
	if err := s.mulVec(ctx, s.ap, s.p); err != nil {
		return 0, err
	}
	pAp := floats.Dot(s.p, s.ap)
	if pAp <= cgCurvatureEps*floats.Dot(s.p, s.p) {
		// Non-positive curvature: restart along the residual.
		s.stats.FallbackSteps++
		copy(s.p, s.r)
		if err := s.mulVec(ctx, s.ap, s.p); err != nil {
			return 0, err
		}
		pAp = floats.Dot(s.p, s.ap)
		if pAp <= cgCurvatureEps*floats.Dot(s.p, s.p) {
			return 0, ErrBreakdown
		}
	}

	alpha := s.rsOld / pAp
	floats.AddScaled(s.x, alpha, s.p)
	floats.AddScaled(s.r, -alpha, s.ap)

	s.sinceRefresh++
	if s.sinceRefresh >= cgRefreshInterval {
		if _, err := s.residualInto(ctx, s.r, s.x); err != nil {
			return 0, err
		}
		s.sinceRefresh = 0
	}

	rsNew := floats.Dot(s.r, s.r)
	if rsNew > cgStagnationRatio*s.rsOld {
		s.stats.StagnantSteps++
	}
	beta := rsNew / s.rsOld
	floats.AddScaledTo(s.p, s.r, beta, s.p)
	s.rsOld = rsNew
	return math.Sqrt(rsNew), nil
}
