package apperrors

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

type MockColorProvider struct{}

func (m MockColorProvider) Yellow() string { return "[YELLOW]" }
func (m MockColorProvider) Red() string    { return "[RED]" }
func (m MockColorProvider) Reset() string  { return "[RESET]" }

func TestHandleSolveError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		err          error
		duration     time.Duration
		colors       ColorProvider
		expectedCode int
		expectedMsg  string
	}{
		{
			name:         "No Error",
			err:          nil,
			expectedCode: ExitSuccess,
			expectedMsg:  "",
		},
		{
			name:         "Timeout Error",
			err:          context.DeadlineExceeded,
			duration:     1 * time.Second,
			colors:       MockColorProvider{},
			expectedCode: ExitErrorTimeout,
			expectedMsg:  "Status: Failure (Timeout). The execution limit was reached after [YELLOW]1s[RESET].",
		},
		{
			name:         "Canceled Error",
			err:          context.Canceled,
			duration:     500 * time.Millisecond,
			colors:       MockColorProvider{},
			expectedCode: ExitErrorCanceled,
			expectedMsg:  "[YELLOW]Status: Canceled after [YELLOW]500ms[RESET].[RESET]",
		},
		{
			name:         "Zero Diagonal",
			err:          SolveError{Method: "jacobi", Cause: ZeroDiagonalError{Row: 3}},
			colors:       MockColorProvider{},
			expectedCode: ExitErrorNumeric,
			expectedMsg:  "[RED]Status: Numerical failure.[RESET] jacobi: zero diagonal entry at row 3",
		},
		{
			name:         "Not Converged",
			err:          NotConvergedError{Iterations: 1000, Residual: 1e-3},
			expectedCode: ExitErrorNotConverged,
			expectedMsg:  "Status: Not converged.",
		},
		{
			name:         "Divergence",
			err:          fmt.Errorf("solve: %w", DivergenceError{Iteration: 4, Residual: 1e6}),
			expectedCode: ExitErrorNotConverged,
			expectedMsg:  "divergence detected at iteration 4",
		},
		{
			name:         "Config Error",
			err:          NewConfigError("bad tolerance"),
			expectedCode: ExitErrorConfig,
			expectedMsg:  "Status: Configuration error: bad tolerance",
		},
		{
			name:         "Generic Error",
			err:          fmt.Errorf("random error"),
			expectedCode: ExitErrorGeneric,
			expectedMsg:  "Status: Failure. An unexpected error occurred: random error",
		},
		{
			name:         "Default Colors",
			err:          context.DeadlineExceeded,
			duration:     1 * time.Second,
			colors:       nil,
			expectedCode: ExitErrorTimeout,
			expectedMsg:  "Status: Failure (Timeout). The execution limit was reached after 1s.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := new(bytes.Buffer)
			code := HandleSolveError(tt.err, tt.duration, out, tt.colors)

			if code != tt.expectedCode {
				t.Errorf("HandleSolveError() code = %v, want %v", code, tt.expectedCode)
			}

			if tt.expectedMsg != "" && !strings.Contains(out.String(), tt.expectedMsg) {
				t.Errorf("HandleSolveError() output = %q, want %q", out.String(), tt.expectedMsg)
			}
		})
	}
}

func TestExitCodeForMalformedInput(t *testing.T) {
	t.Parallel()
	if got := ExitCodeFor(NewMalformedInputError("values", "NaN")); got != ExitErrorNumeric {
		t.Errorf("ExitCodeFor(malformed) = %d, want %d", got, ExitErrorNumeric)
	}
	if got := ExitCodeFor(DimensionError{Name: "b", Expected: 2, Got: 3}); got != ExitErrorNumeric {
		t.Errorf("ExitCodeFor(dimension) = %d, want %d", got, ExitErrorNumeric)
	}
}
