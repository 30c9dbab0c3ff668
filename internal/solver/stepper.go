package solver

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/agbru/ddsolve/internal/convergence"
	"github.com/agbru/ddsolve/internal/sparse"
)

// ErrBreakdown is reported when conjugate gradient meets non-positive
// curvature and the steepest-descent fallback has non-positive curvature too.
var ErrBreakdown = errors.New("non-positive curvature: matrix is not positive definite")

// errBudgetExhausted ends a push-based iteration whose push budget ran out.
var errBudgetExhausted = errors.New("push budget exhausted")

// stepper is the per-solve state machine of one method. The driver calls
// start once, then step until its stop rule fires. Residual norms are
// absolute 2-norms of b − Ax.
type stepper interface {
	start(ctx context.Context) (float64, error)
	step(ctx context.Context) (float64, error)
	iterate() []float64
}

// phased is implemented by multi-phase steppers.
type phased interface {
	phase() string
	finalPhase() bool
	phases() []PhaseReport
}

// certifier is implemented by steppers that can bound ‖x − x*‖_∞ from their
// own state more tightly than the residual bound.
type certifier interface {
	certificate() (Certificate, bool)
}

// workspace is the state shared by every stepper of one solve: the system,
// the iterate and the work counters.
type workspace struct {
	sys      *system
	opts     Options
	x        []float64
	stats    *Stats
	parallel bool
}

func newWorkspace(sys *system, opts Options, stats *Stats) *workspace {
	x := make([]float64, sys.n)
	if opts.X0 != nil {
		copy(x, opts.X0)
	}
	return &workspace{
		sys:      sys,
		opts:     opts,
		x:        x,
		stats:    stats,
		parallel: opts.Workers > 1 && sys.a.NNZ() >= opts.ParallelThreshold,
	}
}

func (w *workspace) iterate() []float64 { return w.x }

// mulVec computes dst = A*v and accounts for it.
func (w *workspace) mulVec(ctx context.Context, dst, v []float64) error {
	w.stats.MatVecs++
	w.stats.MatrixTouches += int64(w.sys.a.NNZ())
	if w.parallel {
		return w.sys.a.ParallelMulVecTo(ctx, dst, v, w.opts.Workers)
	}
	w.sys.a.MulVecTo(dst, v)
	return nil
}

// residualInto computes dst = b − A*v and returns ‖dst‖₂.
func (w *workspace) residualInto(ctx context.Context, dst, v []float64) (float64, error) {
	if err := w.mulVec(ctx, dst, v); err != nil {
		return 0, err
	}
	floats.SubTo(dst, w.sys.b, dst)
	return floats.Norm(dst, 2), nil
}

// trackerFor builds the convergence tracker of a solve. The CG residual is
// not monotone (on a 1D Laplacian the first step can grow it sevenfold), so
// for CG and the hybrid polish only the growth relative to the initial
// residual flags divergence.
func trackerFor(method Method, sys *system, opts Options) *convergence.Tracker {
	cfg := opts.trackerConfig().WithDefaults()
	if method == ConjugateGradient || method == Hybrid {
		cfg.GrowthFactor = cfg.DivergenceFactor
	}
	return convergence.NewTracker(cfg, sys.bNorm)
}

// relaxer performs coordinate relaxations on (x, res) with res = b − Ax
// kept exact: relaxing i sets res_i to zero and updates the residual along
// column i, read from the graph's in-edges. This is the push operation of
// forward push expressed on unscaled residuals.
type relaxer struct {
	g     *sparse.Graph
	diag  []float64
	x     []float64
	res   []float64
	stats *Stats
}

func (r *relaxer) relax(i int) {
	delta := r.res[i] / r.diag[i]
	r.x[i] += delta
	r.res[i] -= r.diag[i] * delta
	in := r.g.In(i)
	for _, e := range in {
		r.res[e.To] -= e.Weight * delta
	}
	r.stats.Pushes++
	r.stats.MatrixTouches += int64(len(in)) + 1
}

// scaled returns |res_i/a_ii|, the forward-push residual of node i.
func (r *relaxer) scaled(i int) float64 { return math.Abs(r.res[i] / r.diag[i]) }

// fifo is a growable queue of node indices.
type fifo struct {
	items []int
	head  int
}

func (q *fifo) push(i int) { q.items = append(q.items, i) }

func (q *fifo) pop() int {
	i := q.items[q.head]
	q.head++
	if q.head > 1024 && q.head*2 > len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return i
}

func (q *fifo) len() int { return len(q.items) - q.head }

func (q *fifo) reset() {
	q.items = q.items[:0]
	q.head = 0
}
