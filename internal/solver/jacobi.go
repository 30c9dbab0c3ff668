package solver

import (
	"context"

	"github.com/agbru/ddsolve/internal/parallel"
)

// jacobiSolver implements x⁽ᵏ⁺¹⁾ = x⁽ᵏ⁾ + D⁻¹(b − Ax⁽ᵏ⁾). Every coordinate
// of a sweep is computed from the previous iterate only.
type jacobiSolver struct{}

func (jacobiSolver) Method() Method { return Jacobi }
func (jacobiSolver) Name() string   { return "Jacobi" }

func (jacobiSolver) newStepper(_ context.Context, ws *workspace) (stepper, error) {
	return &jacobiStepper{workspace: ws, r: make([]float64, ws.sys.n)}, nil
}

type jacobiStepper struct {
	*workspace
	r []float64
}

func (s *jacobiStepper) start(ctx context.Context) (float64, error) {
	return s.residualInto(ctx, s.r, s.x)
}

// step applies the correction from the residual of the previous sweep and
// recomputes the residual, one mat-vec per iteration.
func (s *jacobiStepper) step(ctx context.Context) (float64, error) {
	diag := s.sys.diag
	if s.parallel {
		err := parallel.ForEachBlock(ctx, s.sys.n, s.opts.Workers, func(lo, hi int) error {
			for i := lo; i < hi; i++ {
				s.x[i] += s.r[i] / diag[i]
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	} else {
		for i, ri := range s.r {
			s.x[i] += ri / diag[i]
		}
	}
	return s.residualInto(ctx, s.r, s.x)
}
