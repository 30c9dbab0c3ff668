package cli

import (
	"fmt"
	"time"
)

const (
	// etaWarmup is the time before the first estimate is attempted.
	etaWarmup = 100 * time.Millisecond
	// etaMinInterval is the minimum spacing between two rate samples.
	etaMinInterval = 50 * time.Millisecond
	// etaSmoothing weights a new rate sample in the moving average.
	etaSmoothing = 0.3
	// etaCap bounds estimates from runs that have nearly stalled.
	etaCap = 24 * time.Hour
)

// ProgressWithETA adds a remaining-time estimate to ProgressState. Solver
// progress is reported on a logarithmic residual scale, so a method with a
// steady contraction factor advances at a constant rate and an
// exponentially smoothed rate is a fair predictor.
type ProgressWithETA struct {
	*ProgressState
	startTime    time.Time
	lastSample   time.Time
	lastProgress float64
	progressRate float64 // progress per second
}

// NewProgressWithETA creates a tracker for numSolvers concurrent solves.
func NewProgressWithETA(numSolvers int) *ProgressWithETA {
	now := time.Now()
	return &ProgressWithETA{
		ProgressState: NewProgressState(numSolvers),
		startTime:     now,
		lastSample:    now,
	}
}

// UpdateWithETA records the progress of solve index and returns the average
// progress with the current estimate. The estimate is 0 until the run has
// been going for a short while.
func (p *ProgressWithETA) UpdateWithETA(index int, value float64) (float64, time.Duration) {
	p.Update(index, value)
	progress := p.CalculateAverage()
	now := time.Now()

	if now.Sub(p.startTime) < etaWarmup || progress <= 0.001 {
		p.lastSample, p.lastProgress = now, progress
		return progress, 0
	}

	if dt := now.Sub(p.lastSample); dt > etaMinInterval {
		if delta := progress - p.lastProgress; delta > 0 {
			if p.progressRate == 0 {
				// Seed with the mean rate since the start.
				p.progressRate = progress / now.Sub(p.startTime).Seconds()
			} else {
				sample := delta / dt.Seconds()
				p.progressRate += etaSmoothing * (sample - p.progressRate)
			}
		}
		p.lastSample, p.lastProgress = now, progress
	}
	return progress, p.remaining(progress)
}

// GetETA returns the estimate at the current progress without sampling.
func (p *ProgressWithETA) GetETA() time.Duration {
	return p.remaining(p.CalculateAverage())
}

func (p *ProgressWithETA) remaining(progress float64) time.Duration {
	if p.progressRate <= 0 || progress >= 1 {
		return 0
	}
	secs := (1 - progress) / p.progressRate
	if secs >= etaCap.Seconds() {
		return etaCap
	}
	return time.Duration(secs * float64(time.Second))
}

// FormatETA renders an estimate with at most two units: "45s", "2m30s",
// "1h15m".
func FormatETA(eta time.Duration) string {
	switch {
	case eta <= 0:
		return "estimating..."
	case eta < time.Second:
		return "< 1s"
	case eta < time.Minute:
		return fmt.Sprintf("%ds", int(eta/time.Second))
	case eta < time.Hour:
		return twoUnits(int(eta/time.Minute), "m", int(eta%time.Minute/time.Second), "s")
	default:
		return twoUnits(int(eta/time.Hour), "h", int(eta%time.Hour/time.Minute), "m")
	}
}

func twoUnits(major int, majorUnit string, minor int, minorUnit string) string {
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, majorUnit)
	}
	return fmt.Sprintf("%d%s%d%s", major, majorUnit, minor, minorUnit)
}

// FormatProgressBarWithETA renders "45.00% [████░░░░] ETA: 2m30s".
func FormatProgressBarWithETA(progress float64, eta time.Duration, width int) string {
	return fmt.Sprintf("%6.2f%% [%s] ETA: %s", progress*100, progressBar(progress, width), FormatETA(eta))
}

// progressSuffix is the spinner text for a running solve: label, bar, the
// worst residual among the solves and the estimate.
func progressSuffix(label string, progress, residual float64, eta time.Duration) string {
	return fmt.Sprintf(" %s: %6.2f%% [%s] %s ETA: %s",
		label, progress*100, progressBar(progress, ProgressBarWidth), formatResidual(residual), FormatETA(eta))
}
