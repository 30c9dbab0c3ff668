package solver

import (
	"context"
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/agbru/ddsolve/internal/convergence"
	"github.com/agbru/ddsolve/internal/sparse"
)

// Stream is a restartable cursor over the iterations of one solve. Each
// call to Next performs at most one iteration and yields a Snapshot; the
// first call yields the initial state. After Next returns false, Result
// holds the outcome. A Stream is not safe for concurrent use.
//
// Solve drains a Stream, so a streamed solve and a direct solve of the same
// inputs produce bit-identical results.
type Stream struct {
	core coreSolver
	sys  *system
	opts Options

	ws      *workspace
	st      stepper
	tracker *convergence.Tracker
	stats   Stats

	started  time.Time
	deadline time.Time
	begun    bool
	done     bool
	metrics  convergence.Metrics

	best     []float64
	bestNorm float64
	bestIter int

	result *Result
	err    error
}

func newStream(core coreSolver, a *sparse.Matrix, b []float64, opts Options) (*Stream, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	sys, err := prepare(core.Method(), a, b, opts)
	if err != nil {
		return nil, err
	}
	s := &Stream{core: core, sys: sys, opts: opts}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

// init allocates the per-solve state. Stepper construction performs the
// method's structural checks (symmetry for CG) so they fail here.
func (s *Stream) init() error {
	s.stats = Stats{}
	s.tracker = trackerFor(s.core.Method(), s.sys, s.opts)
	s.begun, s.done = false, false
	s.result, s.err = nil, nil
	s.metrics = convergence.Metrics{}
	s.best, s.bestNorm, s.bestIter = nil, math.Inf(1), 0
	if s.sys.trivial() {
		s.ws, s.st = nil, nil
		return nil
	}
	s.ws = newWorkspace(s.sys, s.opts, &s.stats)
	st, err := s.core.newStepper(context.Background(), s.ws)
	if err != nil {
		return err
	}
	s.st = st
	return nil
}

// Method returns the method being iterated.
func (s *Stream) Method() Method { return s.core.Method() }

// Done reports whether the stream is exhausted.
func (s *Stream) Done() bool { return s.done }

// Result returns the outcome once Next has returned false, nil before.
func (s *Stream) Result() *Result { return s.result }

// Err returns the error that ended the stream: a context error, a numerical
// failure, or nil for every status that carries a usable iterate.
func (s *Stream) Err() error { return s.err }

// Reset discards all progress so the next call to Next starts over from
// the initial iterate.
func (s *Stream) Reset() error { return s.init() }

// Next advances the solve by one iteration. It returns false once the
// solve has stopped; the snapshot's X aliases the live iterate.
func (s *Stream) Next(ctx context.Context) (Snapshot, bool) {
	if s.done {
		return Snapshot{}, false
	}
	if !s.begun {
		return s.begin(ctx)
	}
	if s.stop() {
		s.finish(s.terminalStatus(), nil)
		return Snapshot{}, false
	}
	if err := s.interrupted(ctx); err != nil {
		s.finish(StatusCanceled, err)
		return Snapshot{}, false
	}

	norm, err := s.st.step(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errBudgetExhausted):
		s.observe(norm)
		s.finish(StatusMaxIterations, nil)
		return Snapshot{}, false
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.finish(StatusCanceled, err)
		return Snapshot{}, false
	default:
		s.finish(StatusFailed, err)
		return Snapshot{}, false
	}
	s.observe(norm)
	return s.snapshot(), true
}

func (s *Stream) begin(ctx context.Context) (Snapshot, bool) {
	s.begun = true
	s.started = time.Now()
	if s.opts.Timeout > 0 {
		s.deadline = s.started.Add(s.opts.Timeout)
	}
	if s.sys.trivial() {
		s.metrics = s.tracker.Observe(0)
		s.finish(StatusConverged, nil)
		return Snapshot{Metrics: s.metrics, X: s.result.X}, true
	}
	if err := s.interrupted(ctx); err != nil {
		s.finish(StatusCanceled, err)
		return Snapshot{}, false
	}
	norm, err := s.st.start(ctx)
	if err != nil {
		status := StatusFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = StatusCanceled
		}
		s.finish(status, err)
		return Snapshot{}, false
	}
	s.observe(norm)
	return s.snapshot(), true
}

func (s *Stream) interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		return context.DeadlineExceeded
	}
	return nil
}

// observe records the residual of the current iterate and keeps a copy of
// the best one seen.
func (s *Stream) observe(norm float64) {
	s.metrics = s.tracker.Observe(norm)
	if p, ok := s.st.(phased); ok && !p.finalPhase() {
		// A stalled phase hands over to the next one instead of stopping.
		s.metrics.StagnationDetected = false
	}
	if norm <= s.bestNorm && !math.IsNaN(norm) {
		if s.best == nil {
			s.best = make([]float64, s.sys.n)
		}
		copy(s.best, s.st.iterate())
		s.bestNorm = norm
		s.bestIter = s.metrics.Iteration
	}
}

func (s *Stream) stop() bool {
	return s.metrics.ShouldStop(s.opts.MaxIterations)
}

func (s *Stream) terminalStatus() Status {
	switch m := s.metrics; {
	case m.IsConverged:
		return StatusConverged
	case m.DivergenceDetected:
		return StatusDiverged
	case m.StagnationDetected:
		return StatusStagnated
	default:
		return StatusMaxIterations
	}
}

func (s *Stream) snapshot() Snapshot {
	snap := Snapshot{
		Iteration: s.metrics.Iteration,
		Metrics:   s.metrics,
		X:         s.st.iterate(),
		Elapsed:   time.Since(s.started),
	}
	if p, ok := s.st.(phased); ok {
		snap.Phase = p.phase()
	}
	return snap
}

// finish builds the result from the best iterate. The residual is
// recomputed from scratch so the reported status never rests on a
// recurrence that drifted.
func (s *Stream) finish(status Status, cause error) {
	s.done = true
	res := &Result{
		Method:     s.core.Method(),
		Status:     status,
		Iterations: s.metrics.Iteration,
		Metrics:    s.metrics,
		Warnings:   s.sys.warnings,
		Fix:        s.sys.fix,
	}
	defer func() {
		res.Converged = res.Status == StatusConverged
		res.Stats = s.stats
		res.Stats.Runtime = time.Since(s.started)
		s.result = res
		switch res.Status {
		case StatusCanceled:
			res.ctxErr = cause
			s.err = cause
		case StatusFailed:
			res.failure = cause
			s.err = cause
		}
	}()

	if s.sys.trivial() {
		res.X = make([]float64, s.sys.n)
		res.Certificate = Certificate{Confidence: 1, Source: "exact"}
		return
	}
	if s.best == nil {
		res.X = make([]float64, s.sys.n)
		copy(res.X, s.st.iterate())
	} else {
		res.X = s.best
	}

	r := make([]float64, s.sys.n)
	// The context may already be done; the final product must still run.
	norm, err := s.ws.residualInto(context.Background(), r, res.X)
	if err != nil {
		return
	}
	res.Residual = norm
	res.RelativeResidual = s.tracker.Relative(norm)
	converged := res.RelativeResidual < s.opts.Tolerance
	switch {
	case status == StatusConverged && !converged:
		res.Status = StatusStagnated
	case (status == StatusMaxIterations || status == StatusStagnated) && converged:
		res.Status = StatusConverged
	}

	res.Certificate = varahBound(s.sys.dom, floats.Norm(r, math.Inf(1)))
	if c, ok := s.st.(certifier); ok && s.bestIter == s.metrics.Iteration {
		if cert, ok := c.certificate(); ok && cert.ErrorBound < res.Certificate.ErrorBound {
			res.Certificate = cert
		}
	}
	if p, ok := s.st.(phased); ok {
		res.Phases = p.phases()
	}
}

// drain runs a stream to completion and returns its result together with
// the error that interrupted it, if any.
func drain(ctx context.Context, s *Stream) (*Result, error) {
	for {
		if _, ok := s.Next(ctx); !ok {
			break
		}
	}
	return s.result, s.err
}
