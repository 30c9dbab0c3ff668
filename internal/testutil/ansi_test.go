package testutil

import "testing"

func TestStripAnsiCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain report line", "Status: converged after 12 iterations", "Status: converged after 12 iterations"},
		{"Colored status", "\x1b[32mconverged\x1b[0m", "converged"},
		{"Bold residual", "\x1b[1;33m1.000e-08\x1b[0m", "1.000e-08"},
		{"Spinner cursor hide", "\x1b[?25lSolving\x1b[?25h", "Solving"},
		{"Mixed", "x[\x1b[36m7\x1b[0m] = \x1b[1m0.25\x1b[0m", "x[7] = 0.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := StripAnsiCodes(tt.input); got != tt.expected {
				t.Errorf("StripAnsiCodes(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}
