package solver

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"

	"github.com/agbru/ddsolve/internal/convergence"
)

// Hybrid phase names, in execution order.
const (
	PhaseForwardPush       = "forward-push"
	PhaseRefinement        = "randomized-refinement"
	PhaseCGPolish          = "conjugate-gradient-polish"
	PhaseGaussSeidelPolish = "gauss-seidel-polish"
)

const (
	hybridPush = iota
	hybridRefine
	hybridPolish
)

// hybridSolver chains forward push, randomized coordinate refinement and a
// polish phase on one shared iterate. A phase ends when its residual fell
// by less than PhaseImprovement over the last Window phase iterations.
type hybridSolver struct{}

func (hybridSolver) Method() Method { return Hybrid }
func (hybridSolver) Name() string   { return "Hybrid" }

func (hybridSolver) newStepper(_ context.Context, ws *workspace) (stepper, error) {
	return &hybridStepper{
		workspace: ws,
		fp:        newForwardPushStepper(ws),
		rng:       rand.New(rand.NewSource(ws.opts.Seed)),
		cfg:       ws.opts.trackerConfig(),
	}, nil
}

type hybridStepper struct {
	*workspace
	fp     *forwardPushStepper
	polish stepper
	rng    *rand.Rand
	cfg    convergence.Config

	cur        int
	name       string
	history    []float64
	phaseStart time.Time
	reports    []PhaseReport
}

func (h *hybridStepper) start(ctx context.Context) (float64, error) {
	if h.sys.dom.IsStrict {
		h.open(hybridPush, PhaseForwardPush)
		norm, err := h.fp.start(ctx)
		if err != nil {
			return 0, err
		}
		h.history = append(h.history, norm)
		return norm, nil
	}
	h.reports = append(h.reports, PhaseReport{Phase: PhaseForwardPush, Skipped: true})
	h.open(hybridRefine, PhaseRefinement)
	norm, err := h.residualInto(ctx, h.fp.rel.res, h.x)
	if err != nil {
		return 0, err
	}
	h.history = append(h.history, norm)
	return norm, nil
}

func (h *hybridStepper) step(ctx context.Context) (float64, error) {
	var norm float64
	var err error
	switch h.cur {
	case hybridPush:
		norm, err = h.fp.step(ctx)
		if errors.Is(err, errBudgetExhausted) {
			h.history = append(h.history, norm)
			return norm, h.next(ctx)
		}
	case hybridRefine:
		norm = h.refine()
	default:
		norm, err = h.polish.step(ctx)
	}
	if err != nil {
		return 0, err
	}
	h.history = append(h.history, norm)
	if h.cur != hybridPolish && h.stalled() {
		if err := h.next(ctx); err != nil {
			return 0, err
		}
	}
	return norm, nil
}

// refine performs n relaxations at uniformly drawn coordinates.
func (h *hybridStepper) refine() float64 {
	for k := 0; k < h.sys.n; k++ {
		h.fp.rel.relax(h.rng.Intn(h.sys.n))
	}
	return floats.Norm(h.fp.rel.res, 2)
}

// stalled reports whether the phase has run a full window without reducing
// the residual by PhaseImprovement.
func (h *hybridStepper) stalled() bool {
	w := h.opts.Window
	t := len(h.history) - 1
	if t < w {
		return false
	}
	return h.history[t] > (1-h.opts.PhaseImprovement)*h.history[t-w]
}

func (h *hybridStepper) open(phase int, name string) {
	h.cur, h.name = phase, name
	h.phaseStart = time.Now()
	h.history = h.history[:0]
}

func (h *hybridStepper) closeReport() PhaseReport {
	rep := PhaseReport{Phase: h.name, Iterations: max(len(h.history)-1, 0), Duration: time.Since(h.phaseStart)}
	if n := len(h.history); n > 0 {
		rel := make([]float64, n)
		floats.ScaleTo(rel, 1/h.sys.bNorm, h.history)
		rep.Metrics = convergence.Compute(h.cfg, rel, h.history[n-1])
	}
	return rep
}

// next closes the current phase and starts the following one from the
// shared iterate.
func (h *hybridStepper) next(ctx context.Context) error {
	h.reports = append(h.reports, h.closeReport())
	last := h.history[len(h.history)-1]
	log.Debug().
		Str("phase", h.name).
		Int("iterations", h.reports[len(h.reports)-1].Iterations).
		Float64("residual", last).
		Msg("hybrid phase finished")

	if h.cur == hybridPush {
		h.open(hybridRefine, PhaseRefinement)
		h.history = append(h.history, last)
		return nil
	}

	if h.positiveSymmetric() {
		h.open(hybridPolish, PhaseCGPolish)
		h.polish = newCGStepper(h.workspace)
	} else {
		h.open(hybridPolish, PhaseGaussSeidelPolish)
		h.polish = newGaussSeidelStepper(h.workspace)
	}
	norm, err := h.polish.start(ctx)
	if err != nil {
		return err
	}
	h.history = append(h.history, norm)
	return nil
}

// positiveSymmetric reports whether CG applies: a symmetric matrix with a
// positive diagonal that is row dominant is positive definite.
func (h *hybridStepper) positiveSymmetric() bool {
	if !h.sys.dom.IsWeak || !h.sys.a.IsSymmetric() {
		return false
	}
	for _, d := range h.sys.diag {
		if d <= 0 {
			return false
		}
	}
	return true
}

func (h *hybridStepper) phase() string    { return h.name }
func (h *hybridStepper) finalPhase() bool { return h.cur == hybridPolish }
func (h *hybridStepper) phases() []PhaseReport {
	out := make([]PhaseReport, len(h.reports), len(h.reports)+1)
	copy(out, h.reports)
	return append(out, h.closeReport())
}

// certificate is available while the shared residual is exact, which holds
// until the polish phase starts keeping its own.
func (h *hybridStepper) certificate() (Certificate, bool) {
	if h.cur == hybridPolish {
		return Certificate{}, false
	}
	return h.fp.certificate()
}
