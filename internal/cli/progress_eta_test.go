package cli

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestNewProgressWithETA(t *testing.T) {
	t.Parallel()
	p := NewProgressWithETA(3)

	if p.ProgressState == nil {
		t.Fatal("ProgressState should not be nil")
	}
	if p.numSolvers != 3 {
		t.Errorf("numSolvers = %d, want 3", p.numSolvers)
	}
	if p.progressRate != 0 {
		t.Errorf("initial progressRate = %f, want 0", p.progressRate)
	}
	if !math.IsNaN(p.WorstResidual()) {
		t.Errorf("WorstResidual() = %v before any update, want NaN", p.WorstResidual())
	}
}

func TestUpdateWithETAAverages(t *testing.T) {
	t.Parallel()
	p := NewProgressWithETA(2)

	progress, eta := p.UpdateWithETA(0, 0.25)
	if progress != 0.125 {
		t.Errorf("progress = %f, want 0.125", progress)
	}
	if eta != 0 {
		t.Errorf("ETA right after start = %v, want 0", eta)
	}

	progress, _ = p.UpdateWithETA(1, 0.5)
	if progress != 0.375 {
		t.Errorf("progress = %f, want 0.375", progress)
	}

	// Out of range indices leave the state untouched.
	p.UpdateWithETA(5, 1)
	p.UpdateWithETA(-1, 1)
	if got := p.CalculateAverage(); got != 0.375 {
		t.Errorf("average after invalid updates = %f, want 0.375", got)
	}
}

func TestWorstResidual(t *testing.T) {
	t.Parallel()
	ps := NewProgressState(3)
	ps.UpdateResidual(0, 1e-3)
	ps.UpdateResidual(2, 5e-2)
	ps.UpdateResidual(7, 1)
	if got := ps.WorstResidual(); got != 5e-2 {
		t.Errorf("WorstResidual() = %v, want 5e-2", got)
	}
	ps.UpdateResidual(2, 1e-8)
	if got := ps.WorstResidual(); got != 1e-3 {
		t.Errorf("WorstResidual() = %v, want 1e-3", got)
	}
}

func TestGetETA(t *testing.T) {
	t.Parallel()
	p := NewProgressWithETA(1)
	if eta := p.GetETA(); eta != 0 {
		t.Errorf("initial ETA = %v, want 0", eta)
	}

	p.Update(0, 0.5)
	p.progressRate = 0.1
	if eta := p.GetETA(); eta < 4*time.Second || eta > 6*time.Second {
		t.Errorf("ETA = %v, want about 5s", eta)
	}

	p.progressRate = 1e-9
	if eta := p.GetETA(); eta != 24*time.Hour {
		t.Errorf("ETA = %v, want the 24h cap", eta)
	}

	p.Update(0, 1)
	if eta := p.GetETA(); eta != 0 {
		t.Errorf("ETA after completion = %v, want 0", eta)
	}
}

func TestFormatETA(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		eta      time.Duration
		expected string
	}{
		{0, "estimating..."},
		{-time.Second, "estimating..."},
		{500 * time.Millisecond, "< 1s"},
		{45 * time.Second, "45s"},
		{time.Minute, "1m"},
		{2*time.Minute + 30*time.Second, "2m30s"},
		{time.Hour + 15*time.Minute, "1h15m"},
		{2 * time.Hour, "2h"},
	}

	for _, tc := range testCases {
		if got := FormatETA(tc.eta); got != tc.expected {
			t.Errorf("FormatETA(%v) = %q, want %q", tc.eta, got, tc.expected)
		}
	}
}

func TestFormatProgressBarWithETA(t *testing.T) {
	t.Parallel()
	got := FormatProgressBarWithETA(0.5, 30*time.Second, 10)
	want := " 50.00% [█████░░░░░] ETA: 30s"
	if got != want {
		t.Errorf("FormatProgressBarWithETA() = %q, want %q", got, want)
	}
	if got := FormatProgressBarWithETA(1, 0, 4); !strings.Contains(got, "[████]") {
		t.Errorf("complete bar = %q", got)
	}
}

func TestProgressSuffix(t *testing.T) {
	t.Parallel()
	got := progressSuffix("Avg progress", 0.25, 3.5e-4, 90*time.Second)
	for _, want := range []string{" Avg progress:  25.00% [", "residual: 3.50e-04", "ETA: 1m30s"} {
		if !strings.Contains(got, want) {
			t.Errorf("progressSuffix() = %q, missing %q", got, want)
		}
	}
	if got := progressSuffix("Progress", 0, math.NaN(), 0); !strings.Contains(got, "residual: -") || !strings.Contains(got, "estimating...") {
		t.Errorf("progressSuffix() before any sample = %q", got)
	}
}
