package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/agbru/ddsolve/internal/config"
	"github.com/agbru/ddsolve/internal/problem"
	"github.com/agbru/ddsolve/internal/solver"
	"github.com/agbru/ddsolve/internal/ui"
)

func TestGetSolversToRun(t *testing.T) {
	t.Parallel()
	factory := solver.NewDefaultFactory()

	tests := []struct {
		method string
		want   []solver.Method
	}{
		{"gauss-seidel", []solver.Method{solver.GaussSeidel}},
		{"cg", []solver.Method{solver.ConjugateGradient}},
		{"Backward-Push", []solver.Method{solver.BackwardPush}},
		{"all", solver.Methods()},
		{"nope", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			t.Parallel()
			got := GetSolversToRun(config.AppConfig{Method: tt.method}, factory)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d solvers, want %d", len(got), len(tt.want))
			}
			for i, s := range got {
				if s.Method() != tt.want[i] {
					t.Errorf("solver %d = %v, want %v", i, s.Method(), tt.want[i])
				}
			}
		})
	}
}

func TestPrintExecutionConfig(t *testing.T) {
	ui.InitTheme(true)
	cfg := config.AppConfig{
		Problem:           "tridiagonal",
		N:                 50,
		Seed:              7,
		Tolerance:         1e-8,
		Timeout:           time.Minute,
		ParallelThreshold: 50000,
		Workers:           2,
	}
	a, err := problem.Build(problem.Spec{Kind: problem.KindTridiagonal, N: 50})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var buf bytes.Buffer
	PrintExecutionConfig(cfg, a, &buf)
	output := buf.String()
	for _, want := range []string{
		"System: tridiagonal, n=50, nnz=148, seed 7.",
		"Dominance: weak",
		"symmetric: yes",
		"tolerance 1.0e-08, at most 1000 iterations, timeout 1m0s",
		"Parallel kernels: 2 workers from 50000 nonzeros.",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q, got:\n%s", want, output)
		}
	}
}

func TestPrintExecutionMode(t *testing.T) {
	ui.InitTheme(true)
	factory := solver.NewDefaultFactory()

	t.Run("Single solver", func(t *testing.T) {
		var buf bytes.Buffer
		PrintExecutionMode(GetSolversToRun(config.AppConfig{Method: "jacobi"}, factory), &buf)
		if !strings.Contains(buf.String(), "Single solve with the Jacobi method") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})

	t.Run("Comparison", func(t *testing.T) {
		var buf bytes.Buffer
		PrintExecutionMode(GetSolversToRun(config.AppConfig{Method: "all"}, factory), &buf)
		if !strings.Contains(buf.String(), "Parallel comparison of 7 methods") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})

	t.Run("Empty", func(t *testing.T) {
		var buf bytes.Buffer
		PrintExecutionMode(nil, &buf)
		if !strings.Contains(buf.String(), "Nothing to run") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})
}
