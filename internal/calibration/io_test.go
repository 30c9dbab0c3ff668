package calibration

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agbru/ddsolve/internal/config"
	"github.com/agbru/ddsolve/internal/ui"
)

func TestPrintCalibrationResults(t *testing.T) {
	ui.InitTheme(true)
	var buf bytes.Buffer
	printCalibrationResults(&buf, ThresholdResults{
		ParallelThreshold: 44_980,
		Confidence:        0.75,
		Timings: []SizeTiming{
			{N: 1000, NNZ: 8_980, Sequential: 2 * time.Millisecond, Parallel: 4 * time.Millisecond},
			{N: 5000, NNZ: 44_980, Sequential: 8 * time.Millisecond, Parallel: 2 * time.Millisecond},
			{N: 9000, NNZ: 80_980, Err: errors.New("timeout")},
		},
	})

	out := buf.String()
	for _, want := range []string{
		"Calibration Summary", "Nonzeros", "Speedup",
		"0.50x", "4.00x", "N/A", "(Optimal)",
		"Parallel threshold: 44980 nnz (confidence 75%)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "(Optimal)") != 1 {
		t.Errorf("exactly one row should be optimal:\n%s", out)
	}
}

func TestTimingLabel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "< 1µs"},
		{500 * time.Nanosecond, "< 1µs"},
		{250 * time.Microsecond, "250µs"},
		{12 * time.Millisecond, "12ms"},
	}
	for _, tt := range tests {
		if got := timingLabel(tt.d); got != tt.want {
			t.Errorf("timingLabel(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestPrintCalibrationOutput(t *testing.T) {
	ui.InitTheme(true)
	tests := []struct {
		name string
		cfg  config.AppConfig
		want []string
	}{
		{"Parallel", config.AppConfig{ParallelThreshold: 20_000, Workers: 4}, []string{"Auto-calibration", "20000 nnz", "workers=4"}},
		{"Sequential", config.AppConfig{ParallelThreshold: SequentialThreshold, Workers: 1}, []string{"parallel threshold=Sequential"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printCalibrationOutput(tt.cfg, &buf)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q should contain %q", buf.String(), w)
				}
			}
		})
	}
}
