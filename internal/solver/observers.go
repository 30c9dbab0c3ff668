// This file contains concrete observer implementations for the Observer pattern.

package solver

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/agbru/ddsolve/internal/convergence"
)

// ─────────────────────────────────────────────────────────────────────────────
// Channel Observer
// ─────────────────────────────────────────────────────────────────────────────

// ChannelObserver forwards updates to a channel for UI consumers.
type ChannelObserver struct {
	channel chan<- ProgressUpdate
}

// NewChannelObserver creates an observer that sends updates to ch. The
// channel should be buffered; a nil channel discards updates.
func NewChannelObserver(ch chan<- ProgressUpdate) *ChannelObserver {
	return &ChannelObserver{channel: ch}
}

// Update implements ProgressObserver with a non-blocking send: when the
// channel is full the update is dropped and the UI catches up on the next.
func (o *ChannelObserver) Update(solverIndex int, progress float64, m convergence.Metrics) {
	if o.channel == nil {
		return
	}
	if progress > 1.0 {
		progress = 1.0
	}

	update := ProgressUpdate{
		SolverIndex: solverIndex,
		Value:       progress,
		Iteration:   m.Iteration,
		Residual:    m.RelativeResidualNorm,
	}
	select {
	case o.channel <- update:
	default:
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Logging Observer
// ─────────────────────────────────────────────────────────────────────────────

// LoggingObserver logs progress at debug level, only when progress moved by
// at least the threshold since the last line for that solver.
type LoggingObserver struct {
	logger    zerolog.Logger
	threshold float64
	lastLog   map[int]float64
	mu        sync.Mutex
}

// NewLoggingObserver creates a throttled logging observer. A non-positive
// threshold defaults to 0.1.
func NewLoggingObserver(logger zerolog.Logger, threshold float64) *LoggingObserver {
	if threshold <= 0 {
		threshold = 0.1
	}
	return &LoggingObserver{
		logger:    logger,
		threshold: threshold,
		lastLog:   make(map[int]float64),
	}
}

// Update implements ProgressObserver.
func (o *LoggingObserver) Update(solverIndex int, progress float64, m convergence.Metrics) {
	o.mu.Lock()
	defer o.mu.Unlock()

	lastProgress, seen := o.lastLog[solverIndex]
	shouldLog := progress >= 1.0 ||
		!seen ||
		progress-lastProgress >= o.threshold ||
		m.DivergenceDetected

	if shouldLog {
		o.logger.Debug().
			Int("solver", solverIndex).
			Int("iteration", m.Iteration).
			Float64("residual", m.RelativeResidualNorm).
			Float64("rate", m.ConvergenceRate).
			Str("percent", fmt.Sprintf("%.1f%%", progress*100)).
			Msg("solve progress")
		o.lastLog[solverIndex] = progress
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics Observer (Prometheus)
// ─────────────────────────────────────────────────────────────────────────────

var residualGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "ddsolve_solve_residual",
		Help: "Relative residual of the most recent iteration of each running solve",
	},
	[]string{"solver_index"},
)

// MetricsObserver exports the current relative residual to Prometheus.
type MetricsObserver struct {
	gauge *prometheus.GaugeVec
}

// NewMetricsObserver creates an observer backed by the shared gauge.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{gauge: residualGauge}
}

// Update implements ProgressObserver.
func (o *MetricsObserver) Update(solverIndex int, _ float64, m convergence.Metrics) {
	o.gauge.WithLabelValues(strconv.Itoa(solverIndex)).Set(m.RelativeResidualNorm)
}

// ResetMetrics clears the gauge before a new batch of solves.
func (o *MetricsObserver) ResetMetrics() {
	o.gauge.Reset()
}

// ─────────────────────────────────────────────────────────────────────────────
// No-Op Observer (Null Object Pattern)
// ─────────────────────────────────────────────────────────────────────────────

// NoOpObserver discards all updates.
type NoOpObserver struct{}

// NewNoOpObserver creates a no-op observer.
func NewNoOpObserver() *NoOpObserver {
	return &NoOpObserver{}
}

// Update implements ProgressObserver by doing nothing.
func (o *NoOpObserver) Update(int, float64, convergence.Metrics) {}
