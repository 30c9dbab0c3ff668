package solver

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/parallel"
	"github.com/agbru/ddsolve/internal/sparse"
)

// NeumannOperator holds the splitting A = D(I − M), M = I − D⁻¹A, of a
// matrix with a nonzero diagonal. Building it costs one pass over the
// matrix; afterwards any number of right-hand sides can be solved against
// it without re-deriving M.
type NeumannOperator struct {
	a       *sparse.Matrix
	m       *sparse.CSR
	diag    []float64
	invDiag []float64
	norm    float64
	dom     sparse.DominanceReport
}

// NewNeumannOperator builds the operator for a square matrix. It fails with
// ZeroDiagonalError when a diagonal entry is missing or zero.
func NewNeumannOperator(a *sparse.Matrix) (*NeumannOperator, error) {
	if a == nil || !a.IsSquare() {
		return nil, apperrors.NewMalformedInputError("matrix", "Neumann operator needs a square matrix")
	}
	dom := a.CheckDiagonalDominance()
	if len(dom.ZeroDiagonalRows) > 0 {
		row := dom.ZeroDiagonalRows[0]
		return nil, apperrors.ZeroDiagonalError{Row: row, Value: a.At(row, row)}
	}
	return newNeumannOperator(a, a.Diagonal(), dom), nil
}

func newNeumannOperator(a *sparse.Matrix, diag []float64, dom sparse.DominanceReport) *NeumannOperator {
	csr := a.CSR()
	n := a.Rows()
	op := &NeumannOperator{
		a:       a,
		diag:    diag,
		invDiag: make([]float64, n),
		norm:    dom.IterationNorm,
		dom:     dom,
		m: &sparse.CSR{
			Rows:        n,
			Cols:        n,
			RowPointers: make([]int, n+1),
			ColIndices:  make([]int, 0, len(csr.Values)),
			Values:      make([]float64, 0, len(csr.Values)),
		},
	}
	for i := 0; i < n; i++ {
		op.invDiag[i] = 1 / diag[i]
		for k := csr.RowPointers[i]; k < csr.RowPointers[i+1]; k++ {
			if j := csr.ColIndices[k]; j != i {
				op.m.ColIndices = append(op.m.ColIndices, j)
				op.m.Values = append(op.m.Values, -csr.Values[k]*op.invDiag[i])
			}
		}
		op.m.RowPointers[i+1] = len(op.m.Values)
	}
	return op
}

// Norm returns ‖M‖_∞. The series converges geometrically when it is < 1.
func (op *NeumannOperator) Norm() float64 { return op.norm }

// Matrix returns the matrix the operator was built from.
func (op *NeumannOperator) Matrix() *sparse.Matrix { return op.a }

// Solve sums the series for b. When opts.X0 is set the series is summed
// for the correction D⁻¹(b − A x0) and added to x0.
func (op *NeumannOperator) Solve(ctx context.Context, b []float64, opts Options) (*Result, error) {
	stream, err := newOperatorStream(op, b, opts)
	if err != nil {
		return nil, err
	}
	return drain(ctx, stream)
}

// Update solves A x' = b + delta from a previous solution x of A x = b.
// Only the correction is expanded, so a small or sparse change costs
// proportionally fewer series terms than a fresh solve.
func (op *NeumannOperator) Update(ctx context.Context, x, b, delta []float64, opts Options) (*Result, error) {
	if len(delta) != len(b) {
		return nil, apperrors.DimensionError{Name: "delta", Expected: len(b), Got: len(delta)}
	}
	nb := make([]float64, len(b))
	floats.AddTo(nb, b, delta)
	opts.X0 = x
	return op.Solve(ctx, nb, opts)
}

// apply computes dst = M v.
func (op *NeumannOperator) apply(ctx context.Context, ws *workspace, dst, v []float64) error {
	ws.stats.MatVecs++
	ws.stats.MatrixTouches += int64(len(op.m.Values))
	if ws.parallel {
		return parallel.ForEachBlock(ctx, op.m.Rows, ws.opts.Workers, func(lo, hi int) error {
			op.m.MulVecRange(dst, v, lo, hi)
			return nil
		})
	}
	op.m.MulVecTo(dst, v)
	return nil
}

// neumannSolver sums x = Σ M^k D⁻¹b term by term.
type neumannSolver struct{}

func (neumannSolver) Method() Method { return Neumann }
func (neumannSolver) Name() string   { return "Neumann Series" }

func (neumannSolver) newStepper(_ context.Context, ws *workspace) (stepper, error) {
	return newNeumannStepper(ws, newNeumannOperator(ws.sys.a, ws.sys.diag, ws.sys.dom)), nil
}

// operatorCore iterates against a prebuilt operator.
type operatorCore struct{ op *NeumannOperator }

func (operatorCore) Method() Method { return Neumann }
func (operatorCore) Name() string   { return "Neumann Series" }

func (c operatorCore) newStepper(_ context.Context, ws *workspace) (stepper, error) {
	return newNeumannStepper(ws, c.op), nil
}

func newOperatorStream(op *NeumannOperator, b []float64, opts Options) (*Stream, error) {
	return newStream(operatorCore{op: op}, op.a, b, opts)
}

func newNeumannStepper(ws *workspace, op *NeumannOperator) *neumannStepper {
	return &neumannStepper{workspace: ws, op: op, t: make([]float64, ws.sys.n), next: make([]float64, ws.sys.n)}
}

// neumannStepper keeps the partial sum in x and the next term in t. The
// residual of the partial sum x_K = Σ_{k≤K} t_k is exactly D t_{K+1}, so
// each term costs one product with M and no product with A.
type neumannStepper struct {
	*workspace
	op      *NeumannOperator
	t, next []float64
	y0Inf   float64
	terms   int
}

func (s *neumannStepper) start(ctx context.Context) (float64, error) {
	rhs := s.sys.b
	if s.opts.X0 != nil {
		if _, err := s.residualInto(ctx, s.next, s.x); err != nil {
			return 0, err
		}
		rhs = s.next
	}
	for i := range s.t {
		s.t[i] = rhs[i] * s.op.invDiag[i]
	}
	s.y0Inf = floats.Norm(s.t, math.Inf(1))
	floats.Add(s.x, s.t)
	return s.advance(ctx)
}

func (s *neumannStepper) step(ctx context.Context) (float64, error) {
	floats.Add(s.x, s.t)
	s.terms++
	return s.advance(ctx)
}

// advance computes the next term and returns ‖D t‖₂.
func (s *neumannStepper) advance(ctx context.Context) (float64, error) {
	if err := s.op.apply(ctx, s.workspace, s.next, s.t); err != nil {
		return 0, err
	}
	s.t, s.next = s.next, s.t
	var sum float64
	for i, ti := range s.t {
		v := s.op.diag[i] * ti
		sum += v * v
	}
	return math.Sqrt(sum), nil
}

// certificate bounds the truncation error after K+1 terms. The a priori
// bound is ‖M‖^{K+1}/(1−‖M‖)·‖D⁻¹b‖_∞; the a posteriori bound
// ‖t_{K+1}‖_∞/(1−‖M‖) is never larger and is reported when tighter.
func (s *neumannStepper) certificate() (Certificate, bool) {
	q := s.op.norm
	if q >= 1 {
		return Certificate{}, false
	}
	prior := math.Pow(q, float64(s.terms+1)) / (1 - q) * s.y0Inf
	post := floats.Norm(s.t, math.Inf(1)) / (1 - q)
	return Certificate{ErrorBound: math.Min(prior, post), Confidence: 1, Source: "series-truncation"}, true
}
