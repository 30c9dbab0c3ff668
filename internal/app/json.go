package app

import (
	"encoding/json"
	"io"
	"math"
	"time"

	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/orchestration"
	"github.com/agbru/ddsolve/internal/solver"
)

// jsonResult represents a single solve in JSON format. Non-finite numbers
// are omitted because JSON cannot carry them.
type jsonResult struct {
	Method           string        `json:"method"`
	Duration         string        `json:"duration"`
	Status           string        `json:"status,omitempty"`
	Iterations       int           `json:"iterations,omitempty"`
	RelativeResidual *float64      `json:"relative_residual,omitempty"`
	ErrorBound       *float64      `json:"error_bound,omitempty"`
	Stats            *solver.Stats `json:"stats,omitempty"`
	Phases           []jsonPhase   `json:"phases,omitempty"`
	X                []float64     `json:"x,omitempty"`
	Error            string        `json:"error,omitempty"`
}

type jsonPhase struct {
	Phase      string `json:"phase"`
	Iterations int    `json:"iterations"`
	Duration   string `json:"duration"`
	Skipped    bool   `json:"skipped,omitempty"`
}

// jsonEstimate represents a single-coordinate or functional estimate.
type jsonEstimate struct {
	Method     string        `json:"method"`
	Duration   string        `json:"duration"`
	Row        *int          `json:"row,omitempty"`
	Value      *float64      `json:"value,omitempty"`
	ErrorBound *float64      `json:"error_bound,omitempty"`
	Status     string        `json:"status,omitempty"`
	Stats      *solver.Stats `json:"stats,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// finite returns a pointer to v, or nil when v is NaN or infinite.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func newJSONResult(r orchestration.SolveResult) jsonResult {
	jr := jsonResult{
		Method:   r.Name,
		Duration: r.Duration.String(),
	}
	if r.Err != nil {
		jr.Error = r.Err.Error()
	}
	res := r.Result
	if res == nil {
		return jr
	}
	if err := res.Err(); err != nil && jr.Error == "" {
		jr.Error = err.Error()
	}
	jr.Status = res.Status.String()
	jr.Iterations = res.Iterations
	jr.RelativeResidual = finite(res.RelativeResidual)
	jr.ErrorBound = finite(res.Certificate.ErrorBound)
	stats := res.Stats
	jr.Stats = &stats
	for _, p := range res.Phases {
		jr.Phases = append(jr.Phases, jsonPhase{Phase: p.Phase, Iterations: p.Iterations, Duration: p.Duration.String(), Skipped: p.Skipped})
	}
	for _, v := range res.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return jr
		}
	}
	jr.X = res.X
	return jr
}

func newJSONEstimate(name string, est *solver.Estimate, d time.Duration, err error) jsonEstimate {
	je := jsonEstimate{Method: name, Duration: d.String()}
	if err != nil {
		je.Error = err.Error()
	}
	if est == nil {
		return je
	}
	if est.Row >= 0 {
		row := est.Row
		je.Row = &row
	}
	je.Value = finite(est.Value)
	je.ErrorBound = finite(est.ErrorBound())
	je.Status = est.Status.String()
	stats := est.Stats
	je.Stats = &stats
	return je
}

// printJSONResults formats the solve results as a JSON array and writes
// them to the output. The exit code reflects the first failure when no
// method converged.
func printJSONResults(results []orchestration.SolveResult, out io.Writer) int {
	output := make([]jsonResult, len(results))
	var firstErr error
	converged := 0
	for i, r := range results {
		output[i] = newJSONResult(r)
		if err := r.Outcome(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		converged++
	}
	if code := encodeJSON(out, output); code != apperrors.ExitSuccess {
		return code
	}
	if converged == 0 {
		return apperrors.ExitCodeFor(firstErr)
	}
	return apperrors.ExitSuccess
}

func encodeJSON(out io.Writer, v any) int {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return apperrors.ExitErrorGeneric
	}
	return apperrors.ExitSuccess
}
