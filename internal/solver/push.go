package solver

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
)

// pushCheckInterval is the number of pushes between context checks on the
// estimate path, which has no iteration boundary of its own.
const pushCheckInterval = 1024

// minPushThreshold stops the threshold halving once it reaches the
// resolution of float64 residuals.
const minPushThreshold = 1e-300

// forwardPushSolver relaxes the nodes with the largest scaled residual
// |r_i/a_ii| first, keeping r = b − Ax exact. One iteration is one pass over
// the nodes queued at its start.
type forwardPushSolver struct{}

func (forwardPushSolver) Method() Method { return ForwardPush }
func (forwardPushSolver) Name() string   { return "Forward Push" }

func (forwardPushSolver) newStepper(_ context.Context, ws *workspace) (stepper, error) {
	return newForwardPushStepper(ws), nil
}

type forwardPushStepper struct {
	*workspace
	rel    relaxer
	queue  fifo
	queued []bool
	thr    float64
}

func newForwardPushStepper(ws *workspace) *forwardPushStepper {
	n := ws.sys.n
	return &forwardPushStepper{
		workspace: ws,
		rel: relaxer{
			g:     ws.sys.a.Graph(),
			diag:  ws.sys.diag,
			x:     ws.x,
			res:   make([]float64, n),
			stats: ws.stats,
		},
		queued: make([]bool, n),
	}
}

// defaultPushThreshold is the scaled residual below which a node is left
// alone. When every |r_i/a_ii| is below it, ‖r‖₂ ≤ thr·‖d‖₂, which is half
// the tolerance target.
func defaultPushThreshold(sys *system, opts Options) float64 {
	if opts.PushThreshold > 0 {
		return opts.PushThreshold
	}
	dNorm := floats.Norm(sys.diag, 2)
	if dNorm == 0 {
		return opts.Tolerance
	}
	return 0.5 * opts.Tolerance * sys.bNorm / dNorm
}

func (s *forwardPushStepper) start(ctx context.Context) (float64, error) {
	if s.opts.X0 != nil {
		if _, err := s.residualInto(ctx, s.rel.res, s.x); err != nil {
			return 0, err
		}
	} else {
		copy(s.rel.res, s.sys.b)
	}
	s.thr = defaultPushThreshold(s.sys, s.opts)
	s.enqueueAll()
	return floats.Norm(s.rel.res, 2), nil
}

func (s *forwardPushStepper) enqueueAll() {
	s.queue.reset()
	for i := range s.rel.res {
		s.queued[i] = s.rel.scaled(i) > s.thr
		if s.queued[i] {
			s.queue.push(i)
		}
	}
}

func (s *forwardPushStepper) step(ctx context.Context) (float64, error) {
	if s.queue.len() == 0 {
		// Every node is below threshold but the tolerance is not met yet.
		if s.thr/2 < minPushThreshold {
			return floats.Norm(s.rel.res, 2), nil
		}
		s.thr /= 2
		s.enqueueAll()
	}
	budget := int64(s.opts.PushBudget)
	for epoch := s.queue.len(); epoch > 0; epoch-- {
		i := s.queue.pop()
		s.queued[i] = false
		if s.rel.scaled(i) <= s.thr {
			continue
		}
		if s.stats.Pushes >= budget {
			return floats.Norm(s.rel.res, 2), errBudgetExhausted
		}
		s.rel.relax(i)
		for _, e := range s.rel.g.In(i) {
			if j := e.To; !s.queued[j] && s.rel.scaled(j) > s.thr {
				s.queued[j] = true
				s.queue.push(j)
			}
		}
	}
	return floats.Norm(s.rel.res, 2), nil
}

// certificate uses x* − x = (I − M)⁻¹D⁻¹r, so
// ‖x* − x‖_∞ ≤ max|r_i/a_ii| / (1 − ‖M‖_∞).
func (s *forwardPushStepper) certificate() (Certificate, bool) {
	q := s.sys.dom.IterationNorm
	if q >= 1 {
		return Certificate{}, false
	}
	var worst float64
	for i := range s.rel.res {
		worst = math.Max(worst, s.rel.scaled(i))
	}
	return Certificate{ErrorBound: worst / (1 - q), Confidence: 1, Source: "push-residual"}, true
}

// backwardPushSolver estimates single coordinates and functionals tᵀx by
// pushing residual mass from the target along out-edges. A full solve with
// this method runs forward push, since backward push yields one functional
// per run.
type backwardPushSolver struct{}

func (backwardPushSolver) Method() Method { return BackwardPush }
func (backwardPushSolver) Name() string   { return "Backward Push" }

func (backwardPushSolver) newStepper(_ context.Context, ws *workspace) (stepper, error) {
	return newForwardPushStepper(ws), nil
}

// entryEstimator is implemented by methods that estimate a functional
// locally instead of solving for the whole vector.
type entryEstimator interface {
	estimate(ctx context.Context, sys *system, target []targetEntry, opts Options) *Estimate
}

// targetEntry is one nonzero of the target vector t.
type targetEntry struct {
	node  int
	value float64
}

// localState is the sparse state of one backward push: per-node residual,
// accumulated estimate and cached diagonal, indexed through pos. nodes
// records the order in which nodes were reached, which fixes the
// iteration order and makes the estimate deterministic.
type localState struct {
	pos    map[int]int
	nodes  []int
	s      []float64
	q      []float64
	diag   []float64
	queued []bool
}

func newLocalState() *localState {
	return &localState{pos: make(map[int]int)}
}

func (l *localState) slot(node int) int {
	if k, ok := l.pos[node]; ok {
		return k
	}
	k := len(l.nodes)
	l.pos[node] = k
	l.nodes = append(l.nodes, node)
	l.s = append(l.s, 0)
	l.q = append(l.q, 0)
	l.diag = append(l.diag, 0)
	l.queued = append(l.queued, false)
	return k
}

func (l *localState) residualMass() float64 {
	var sum float64
	for _, v := range l.s {
		sum += math.Abs(v)
	}
	return sum
}

// estimate runs backward push from target until every residual entry is
// at most the threshold (Tolerance·‖t‖₁ unless PushThreshold is set). The
// number of pushes is then bounded by ‖t‖₁/(thr·(1 − ‖M‖_∞)) whatever n is.
// With y = D⁻¹b and x = (I − M)⁻¹y, the invariant
// tᵀ(I − M)⁻¹ = qᵀ + sᵀ(I − M)⁻¹ gives tᵀx = qᵀy + sᵀx, and the remainder
// is bounded by |sᵀx| ≤ ‖s‖₁·‖x‖_∞ ≤ ‖s‖₁·‖b‖_∞/δ.
func (backwardPushSolver) estimate(ctx context.Context, sys *system, target []targetEntry, opts Options) *Estimate {
	est := &Estimate{Method: BackwardPush, Status: StatusConverged}
	g := sys.a.Graph()
	l := newLocalState()
	var tNorm float64
	for _, te := range target {
		k := l.slot(te.node)
		l.s[k] += te.value
		tNorm += math.Abs(te.value)
	}
	thr := opts.PushThreshold
	if thr <= 0 {
		thr = opts.Tolerance * tNorm
	}
	budget := int64(opts.PushBudget)

	var queue fifo
	for k, v := range l.s {
		if math.Abs(v) > thr {
			l.queued[k] = true
			queue.push(k)
		}
	}

	for queue.len() > 0 {
		k := queue.pop()
		l.queued[k] = false
		si := l.s[k]
		if math.Abs(si) <= thr {
			continue
		}
		if est.Stats.Pushes >= budget {
			est.Status = StatusMaxIterations
			break
		}
		if est.Stats.Pushes%pushCheckInterval == 0 && ctx.Err() != nil {
			est.Status = StatusCanceled
			break
		}
		i := l.nodes[k]
		if l.diag[k] == 0 {
			l.diag[k] = g.Diag(i)
		}
		d := l.diag[k]
		out := g.Out(i)
		l.q[k] += si
		l.s[k] = 0
		for _, e := range out {
			j := l.slot(e.To)
			l.s[j] -= si * e.Weight / d
			if !l.queued[j] && math.Abs(l.s[j]) > thr {
				l.queued[j] = true
				queue.push(j)
			}
		}
		est.Stats.Pushes++
		est.Stats.MatrixTouches += int64(len(out)) + 1
	}

	for k, qk := range l.q {
		if qk != 0 {
			est.Value += qk * sys.b[l.nodes[k]] / l.diag[k]
		}
	}
	est.Certificate = Certificate{
		EstimatedValue: est.Value,
		ErrorBound:     l.residualMass() * sys.bInf / sys.dom.Margin,
		Confidence:     1,
		Source:         "push-residual",
	}
	return est
}
