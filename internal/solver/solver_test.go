package solver

import (
	"context"
	"errors"
	"math"
	"testing"

	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/problem"
	"github.com/agbru/ddsolve/internal/sparse"
)

func mustSolver(t *testing.T, m Method) Solver {
	t.Helper()
	s, err := New(m)
	if err != nil {
		t.Fatalf("New(%v): %v", m, err)
	}
	return s
}

func mustMatrix(t *testing.T, rows [][]float64) *sparse.Matrix {
	t.Helper()
	a, err := sparse.FromRows(rows)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	return a
}

func ones(n int) []float64 {
	b := make([]float64, n)
	for i := range b {
		b[i] = 1
	}
	return b
}

func relResidual(a *sparse.Matrix, x, b []float64) float64 {
	ax := make([]float64, len(b))
	a.MulVecTo(ax, x)
	var num, den float64
	for i := range b {
		d := b[i] - ax[i]
		num += d * d
		den += b[i] * b[i]
	}
	return math.Sqrt(num / den)
}

// TestSmallSystemAllMethods solves A = [[4,1],[1,3]], b = [1,2], whose
// solution is [1/11, 7/11], with every method.
func TestSmallSystemAllMethods(t *testing.T) {
	t.Parallel()
	a := mustMatrix(t, [][]float64{{4, 1}, {1, 3}})
	b := []float64{1, 2}
	want := []float64{1.0 / 11, 7.0 / 11}

	for _, m := range Methods() {
		m := m
		t.Run(m.String(), func(t *testing.T) {
			t.Parallel()
			res, err := mustSolver(t, m).Solve(context.Background(), a, b, Options{Tolerance: 1e-10})
			if err != nil {
				t.Fatalf("Solve: %v", err)
			}
			if !res.Converged || res.Status != StatusConverged {
				t.Fatalf("status = %v after %d iterations (residual %g)", res.Status, res.Iterations, res.RelativeResidual)
			}
			for i := range want {
				if d := math.Abs(res.X[i] - want[i]); d > 1e-6 {
					t.Errorf("x[%d] = %.12f, want %.12f", i, res.X[i], want[i])
				}
			}
			if res.RelativeResidual >= 1e-10 {
				t.Errorf("relative residual %g not below tolerance", res.RelativeResidual)
			}
			if res.Certificate.ErrorBound > 1e-8 {
				t.Errorf("certificate bound %g unexpectedly loose", res.Certificate.ErrorBound)
			}
		})
	}
}

func TestConjugateGradientTridiagonal(t *testing.T) {
	t.Parallel()
	const n = 100
	a, err := problem.Tridiagonal(n, 2, -1)
	if err != nil {
		t.Fatal(err)
	}
	b := ones(n)
	res, err := mustSolver(t, ConjugateGradient).Solve(context.Background(), a, b, Options{Tolerance: 1e-8})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Converged {
		t.Fatalf("status = %v, residual %g", res.Status, res.RelativeResidual)
	}
	if res.Iterations > n {
		t.Errorf("iterations = %d, want <= %d", res.Iterations, n)
	}
	if r := relResidual(a, res.X, b); r >= 1e-8 {
		t.Errorf("true residual %g, want < 1e-8", r)
	}
	if res.Stats.MatVecs == 0 || res.Stats.MatrixTouches == 0 {
		t.Errorf("work counters not recorded: %+v", res.Stats)
	}
}

func TestZeroDiagonalDetected(t *testing.T) {
	t.Parallel()
	a, err := sparse.FromCOO([]int{0, 1}, []int{1, 0}, []float64{1, 1}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	rep := a.CheckDiagonalDominance()
	if rep.IsStrict || rep.RowStrict(0) || rep.RowStrict(1) {
		t.Fatalf("dominance report claims strictness: %+v", rep)
	}

	for _, m := range Methods() {
		_, err := mustSolver(t, m).Solve(context.Background(), a, []float64{1, 1}, Options{})
		var zd apperrors.ZeroDiagonalError
		if !errors.As(err, &zd) {
			t.Fatalf("%v: err = %v, want ZeroDiagonalError", m, err)
		}
		if zd.Row != 0 {
			t.Errorf("%v: ZeroDiagonalError row = %d, want 0", m, zd.Row)
		}
		var se apperrors.SolveError
		if !errors.As(err, &se) || se.Method != m.String() {
			t.Errorf("%v: error not wrapped in SolveError: %v", m, err)
		}
	}
}

func TestMissingDiagonalRowReported(t *testing.T) {
	t.Parallel()
	a := mustMatrix(t, [][]float64{{4, 1, 0}, {1, 5, 1}, {0, 1, 0}})
	_, err := mustSolver(t, Jacobi).Solve(context.Background(), a, ones(3), Options{})
	var zd apperrors.ZeroDiagonalError
	if !errors.As(err, &zd) || zd.Row != 2 {
		t.Fatalf("err = %v, want ZeroDiagonalError at row 2", err)
	}
}

func TestAutoFixDiagonal(t *testing.T) {
	t.Parallel()
	a, err := sparse.FromCOO([]int{0, 1}, []int{1, 0}, []float64{1, 1}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	res, err := mustSolver(t, GaussSeidel).Solve(context.Background(), a, []float64{1, 1}, Options{AutoFixDiagonal: true, Tolerance: 1e-12})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Fix.Applied() || len(res.Fix.Rows) != 2 {
		t.Fatalf("fix not reported: %+v", res.Fix)
	}
	// Fixed matrix is [[3,1],[1,3]]; the solution of the modified system is 1/4.
	for i, v := range res.X {
		if math.Abs(v-0.25) > 1e-9 {
			t.Errorf("x[%d] = %v, want 0.25", i, v)
		}
	}
	if got := a.At(0, 0); got != 0 {
		t.Errorf("caller's matrix modified: a[0][0] = %v", got)
	}
}

func TestPushRequiresStrictDominance(t *testing.T) {
	t.Parallel()
	a, err := problem.Tridiagonal(10, 2, -1)
	if err != nil {
		t.Fatal(err)
	}
	b := ones(10)

	for _, m := range []Method{ForwardPush, BackwardPush} {
		_, err := mustSolver(t, m).Solve(context.Background(), a, b, Options{})
		var de apperrors.InsufficientDominanceError
		if !errors.As(err, &de) {
			t.Errorf("%v: err = %v, want InsufficientDominanceError", m, err)
		}

		res, err := mustSolver(t, m).Solve(context.Background(), a, b, Options{AutoFixDiagonal: true})
		if err != nil {
			t.Fatalf("%v with auto-fix: %v", m, err)
		}
		if !res.Converged || !res.Fix.Applied() {
			t.Errorf("%v with auto-fix: status %v, fix %+v", m, res.Status, res.Fix)
		}
	}
}

func TestWeakDominanceIsAWarning(t *testing.T) {
	t.Parallel()
	a, err := problem.Tridiagonal(20, 2, -1)
	if err != nil {
		t.Fatal(err)
	}
	res, err := mustSolver(t, GaussSeidel).Solve(context.Background(), a, ones(20), Options{MaxIterations: 5000})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one dominance warning", res.Warnings)
	}
	var de apperrors.InsufficientDominanceError
	if !errors.As(res.Warnings[0], &de) {
		t.Errorf("warning = %v, want InsufficientDominanceError", res.Warnings[0])
	}
}

func TestConjugateGradientRejectsAsymmetric(t *testing.T) {
	t.Parallel()
	a := mustMatrix(t, [][]float64{{4, 1}, {0, 3}})
	_, err := mustSolver(t, ConjugateGradient).Solve(context.Background(), a, []float64{1, 1}, Options{})
	var ns apperrors.NotSymmetricError
	if !errors.As(err, &ns) {
		t.Fatalf("err = %v, want NotSymmetricError", err)
	}
	if ns.Row != 0 || ns.Col != 1 {
		t.Errorf("asymmetry at (%d,%d), want (0,1)", ns.Row, ns.Col)
	}
}

func TestConjugateGradientBreakdown(t *testing.T) {
	t.Parallel()
	// Symmetric, dominant, negative definite: every direction has negative
	// curvature.
	a := mustMatrix(t, [][]float64{{-4, 1}, {1, -3}})
	res, err := mustSolver(t, ConjugateGradient).Solve(context.Background(), a, []float64{1, 2}, Options{})
	if !errors.Is(err, ErrBreakdown) {
		t.Fatalf("err = %v, want ErrBreakdown", err)
	}
	if res == nil || res.Status != StatusFailed || res.Stats.FallbackSteps != 1 {
		t.Fatalf("result = %+v, want failed after one fallback", res)
	}
	if !errors.Is(res.Err(), ErrBreakdown) {
		t.Errorf("Result.Err() = %v", res.Err())
	}
}

func TestZeroRightHandSide(t *testing.T) {
	t.Parallel()
	a := mustMatrix(t, [][]float64{{4, 1}, {1, 3}})
	for _, m := range Methods() {
		res, err := mustSolver(t, m).Solve(context.Background(), a, []float64{0, 0}, Options{})
		if err != nil {
			t.Fatalf("%v: %v", m, err)
		}
		if !res.Converged || res.Iterations != 0 || res.X[0] != 0 || res.X[1] != 0 {
			t.Errorf("%v: result = %+v, want trivial solution", m, res)
		}
	}
}

func TestMalformedInputs(t *testing.T) {
	t.Parallel()
	a := mustMatrix(t, [][]float64{{4, 1}, {1, 3}})
	rect, err := sparse.FromDense([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	s := mustSolver(t, Jacobi)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
		as   interface{}
	}{
		{"nil matrix", func() error { _, err := s.Solve(ctx, nil, []float64{1}, Options{}); return err }, &apperrors.MalformedInputError{}},
		{"rectangular", func() error { _, err := s.Solve(ctx, rect, []float64{1, 1}, Options{}); return err }, &apperrors.MalformedInputError{}},
		{"short b", func() error { _, err := s.Solve(ctx, a, []float64{1}, Options{}); return err }, &apperrors.DimensionError{}},
		{"nan b", func() error { _, err := s.Solve(ctx, a, []float64{1, math.NaN()}, Options{}); return err }, &apperrors.MalformedInputError{}},
		{"short x0", func() error { _, err := s.Solve(ctx, a, []float64{1, 1}, Options{X0: []float64{0}}); return err }, &apperrors.DimensionError{}},
		{"nan tolerance", func() error { _, err := s.Solve(ctx, a, []float64{1, 1}, Options{Tolerance: math.NaN()}); return err }, &apperrors.ValidationError{}},
		{"row out of range", func() error { _, err := s.EstimateEntry(ctx, a, []float64{1, 1}, 2, Options{}); return err }, &apperrors.MalformedInputError{}},
		{"short functional", func() error { _, err := s.EstimateFunctional(ctx, a, []float64{1, 1}, []float64{1}, Options{}); return err }, &apperrors.DimensionError{}},
	}
	for _, tt := range tests {
		err := tt.run()
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		switch target := tt.as.(type) {
		case *apperrors.MalformedInputError:
			if !errors.As(err, target) {
				t.Errorf("%s: err = %v, want MalformedInputError", tt.name, err)
			}
		case *apperrors.DimensionError:
			if !errors.As(err, target) {
				t.Errorf("%s: err = %v, want DimensionError", tt.name, err)
			}
		case *apperrors.ValidationError:
			if !errors.As(err, target) {
				t.Errorf("%s: err = %v, want ValidationError", tt.name, err)
			}
		}
	}
}

func TestNonConvergenceIsAResult(t *testing.T) {
	t.Parallel()
	a, err := problem.RandomDD(200, 5, 0.1, 11, false)
	if err != nil {
		t.Fatal(err)
	}
	res, err := mustSolver(t, Jacobi).Solve(context.Background(), a, ones(200), Options{MaxIterations: 3, Tolerance: 1e-12})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Status != StatusMaxIterations || res.Converged || res.Iterations != 3 {
		t.Fatalf("status = %v after %d iterations", res.Status, res.Iterations)
	}
	var nc apperrors.NotConvergedError
	if !errors.As(res.Err(), &nc) || nc.Iterations != 3 {
		t.Errorf("Result.Err() = %v, want NotConvergedError after 3 iterations", res.Err())
	}
	if math.IsInf(res.Certificate.ErrorBound, 0) || res.Certificate.Confidence != 1 {
		t.Errorf("strictly dominant partial result lacks a finite bound: %+v", res.Certificate)
	}
}

func TestDivergenceReturnsBestIterate(t *testing.T) {
	t.Parallel()
	// Not dominant: Jacobi's iteration matrix has spectral radius 3.
	a := mustMatrix(t, [][]float64{{1, 3}, {3, 1}})
	b := []float64{1, 0}
	res, err := mustSolver(t, Jacobi).Solve(context.Background(), a, b, Options{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Status != StatusDiverged {
		t.Fatalf("status = %v, want diverged", res.Status)
	}
	var de apperrors.DivergenceError
	if !errors.As(res.Err(), &de) {
		t.Errorf("Result.Err() = %v, want DivergenceError", res.Err())
	}
	// The initial iterate x = 0 has relative residual 1 and is never beaten.
	if res.RelativeResidual > 1+1e-12 {
		t.Errorf("returned iterate has residual %g, want the best (<= 1)", res.RelativeResidual)
	}
	if len(res.Warnings) == 0 {
		t.Error("missing dominance warning")
	}
}

func TestSolveIsDeterministic(t *testing.T) {
	t.Parallel()
	a, err := problem.RandomDD(300, 6, 0.5, 5, true)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := problem.Vector(problem.RHSRandom, 300, 9)

	for _, m := range Methods() {
		for _, workers := range []int{1, 4} {
			opts := Options{Workers: workers, ParallelThreshold: 1, Seed: 3}
			s := mustSolver(t, m)
			r1, err := s.Solve(context.Background(), a, b, opts)
			if err != nil {
				t.Fatalf("%v: %v", m, err)
			}
			r2, err := s.Solve(context.Background(), a, b, opts)
			if err != nil {
				t.Fatalf("%v: %v", m, err)
			}
			if r1.Iterations != r2.Iterations {
				t.Fatalf("%v/%d workers: iterations %d vs %d", m, workers, r1.Iterations, r2.Iterations)
			}
			for i := range r1.X {
				if r1.X[i] != r2.X[i] {
					t.Fatalf("%v/%d workers: x[%d] differs: %v vs %v", m, workers, i, r1.X[i], r2.X[i])
				}
			}
		}
	}
}

func TestParallelJacobiMatchesSequential(t *testing.T) {
	t.Parallel()
	a, err := problem.RandomDD(500, 4, 1, 8, false)
	if err != nil {
		t.Fatal(err)
	}
	b := ones(500)
	s := mustSolver(t, Jacobi)
	seq, err := s.Solve(context.Background(), a, b, Options{})
	if err != nil {
		t.Fatal(err)
	}
	par, err := s.Solve(context.Background(), a, b, Options{Workers: 4, ParallelThreshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	for i := range seq.X {
		if seq.X[i] != par.X[i] {
			t.Fatalf("x[%d]: sequential %v, parallel %v", i, seq.X[i], par.X[i])
		}
	}
}

func TestInitialGuess(t *testing.T) {
	t.Parallel()
	a := mustMatrix(t, [][]float64{{4, 1}, {1, 3}})
	b := []float64{1, 2}
	exact := []float64{1.0 / 11, 7.0 / 11}
	for _, m := range []Method{Jacobi, GaussSeidel, ConjugateGradient, Neumann, ForwardPush} {
		res, err := mustSolver(t, m).Solve(context.Background(), a, b, Options{X0: exact, Tolerance: 1e-6})
		if err != nil {
			t.Fatalf("%v: %v", m, err)
		}
		if !res.Converged || res.Iterations > 1 {
			t.Errorf("%v: started at the solution but took %d iterations (%v)", m, res.Iterations, res.Status)
		}
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()
	a, err := problem.RandomDD(100, 4, 0.5, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := mustSolver(t, GaussSeidel).Solve(ctx, a, ones(100), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res == nil || res.Status != StatusCanceled {
		t.Fatalf("result = %+v, want canceled status", res)
	}
	if !apperrors.IsContextError(res.Err()) {
		t.Errorf("Result.Err() = %v", res.Err())
	}
}

func TestNeumannReportsSeriesCertificate(t *testing.T) {
	t.Parallel()
	a, err := problem.RandomDD(100, 4, 1, 2, false)
	if err != nil {
		t.Fatal(err)
	}
	res, err := mustSolver(t, Neumann).Solve(context.Background(), a, ones(100), Options{Tolerance: 1e-8})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged {
		t.Fatalf("status = %v", res.Status)
	}
	if src := res.Certificate.Source; src != "series-truncation" && src != "residual" {
		t.Errorf("certificate source = %q", src)
	}
	if res.Certificate.ErrorBound <= 0 || res.Certificate.ErrorBound > 1e-6 {
		t.Errorf("certificate bound = %g", res.Certificate.ErrorBound)
	}
}

// TestCertificateBoundsTrueError checks the reported error bound against
// the distance to a dense LU solution, on runs cut short before the
// tolerance is met as well as on converged ones.
func TestCertificateBoundsTrueError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		margin    float64
		symmetric bool
	}{
		{name: "weakly dominant", margin: 0.05},
		{name: "moderately dominant", margin: 0.3},
		{name: "strongly dominant", margin: 2},
		{name: "weakly dominant symmetric", margin: 0.05, symmetric: true},
		{name: "moderately dominant symmetric", margin: 0.3, symmetric: true},
	}
	for _, m := range []Method{Neumann, Hybrid} {
		for _, tt := range tests {
			t.Run(m.String()+"/"+tt.name, func(t *testing.T) {
				t.Parallel()
				for seed := int64(1); seed <= 6; seed++ {
					const n = 90
					a, err := problem.RandomDD(n, 5, tt.margin, seed, tt.symmetric)
					if err != nil {
						t.Fatal(err)
					}
					b, _ := problem.Vector(problem.RHSRandom, n, seed+100)
					exact := exactSolution(t, a, b)

					res, err := mustSolver(t, m).Solve(context.Background(), a, b, Options{MaxIterations: 30, Tolerance: 1e-4, Seed: seed})
					if err != nil {
						t.Fatalf("seed %d: %v", seed, err)
					}
					bound := res.Certificate.ErrorBound
					if math.IsNaN(bound) || math.IsInf(bound, 0) || bound < 0 {
						t.Fatalf("seed %d: bound %v (%s)", seed, bound, res.Certificate.Source)
					}
					var worst float64
					for i := range exact {
						worst = math.Max(worst, math.Abs(res.X[i]-exact[i]))
					}
					if worst > bound*(1+1e-9)+1e-12 {
						t.Errorf("seed %d: max|x − x*| = %g exceeds bound %g (%s, status %v)",
							seed, worst, bound, res.Certificate.Source, res.Status)
					}
				}
			})
		}
	}
}
