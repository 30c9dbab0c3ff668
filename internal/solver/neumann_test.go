package solver

import (
	"context"
	"errors"
	"math"
	"testing"

	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/problem"
)

func TestNeumannOperatorSolve(t *testing.T) {
	t.Parallel()
	const n = 100
	a, err := problem.RandomDD(n, 4, 1, 8, false)
	if err != nil {
		t.Fatal(err)
	}
	op, err := NewNeumannOperator(a)
	if err != nil {
		t.Fatal(err)
	}
	if q := op.Norm(); q <= 0 || q >= 0.5 {
		t.Errorf("‖M‖∞ = %v, want in (0, 0.5)", q)
	}
	if op.Matrix() != a {
		t.Error("Matrix() does not return the source matrix")
	}

	b, _ := problem.Vector(problem.RHSRandom, n, 2)
	exact := exactSolution(t, a, b)
	res, err := op.Solve(context.Background(), b, Options{Tolerance: 1e-10})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged || res.Method != Neumann {
		t.Fatalf("status %v, method %v", res.Status, res.Method)
	}
	for i := range exact {
		if d := math.Abs(res.X[i] - exact[i]); d > res.Certificate.ErrorBound+1e-12 {
			t.Fatalf("x[%d] off by %g, bound %g", i, d, res.Certificate.ErrorBound)
		}
	}

	// The operator is reusable across right-hand sides and matches the
	// solver built per call.
	direct, err := mustSolver(t, Neumann).Solve(context.Background(), a, b, Options{Tolerance: 1e-10})
	if err != nil {
		t.Fatal(err)
	}
	for i := range direct.X {
		if direct.X[i] != res.X[i] {
			t.Fatalf("x[%d]: operator %v, solver %v", i, res.X[i], direct.X[i])
		}
	}
}

func TestNeumannOperatorUpdate(t *testing.T) {
	t.Parallel()
	const n = 200
	a, err := problem.RandomDD(n, 5, 0.5, 4, false)
	if err != nil {
		t.Fatal(err)
	}
	op, err := NewNeumannOperator(a)
	if err != nil {
		t.Fatal(err)
	}
	b := ones(n)
	opts := Options{Tolerance: 1e-10}
	base, err := op.Solve(context.Background(), b, opts)
	if err != nil {
		t.Fatal(err)
	}

	delta := make([]float64, n)
	delta[17] = 1e-4
	upd, err := op.Update(context.Background(), base.X, b, delta, opts)
	if err != nil {
		t.Fatal(err)
	}
	nb := append([]float64(nil), b...)
	nb[17] += delta[17]
	fresh, err := op.Solve(context.Background(), nb, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !upd.Converged || !fresh.Converged {
		t.Fatalf("update %v, fresh %v", upd.Status, fresh.Status)
	}
	if upd.Iterations >= fresh.Iterations {
		t.Errorf("update took %d terms, fresh solve %d", upd.Iterations, fresh.Iterations)
	}
	exact := exactSolution(t, a, nb)
	for i := range exact {
		if d := math.Abs(upd.X[i] - exact[i]); d > 1e-8 {
			t.Fatalf("x[%d] off by %g after update", i, d)
		}
	}
	if _, err := op.Update(context.Background(), base.X, b, delta[:3], opts); err == nil {
		t.Error("expected a dimension error for a short delta")
	}
}

func TestNeumannOperatorRejectsBadMatrices(t *testing.T) {
	t.Parallel()
	if _, err := NewNeumannOperator(nil); err == nil {
		t.Error("nil matrix accepted")
	}
	z, err := problem.ZeroDiagonal(3)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewNeumannOperator(z)
	var zd apperrors.ZeroDiagonalError
	if !errors.As(err, &zd) || zd.Row != 0 {
		t.Errorf("err = %v, want ZeroDiagonalError at row 0", err)
	}
}

func TestNeumannCertificateShrinks(t *testing.T) {
	t.Parallel()
	a, err := problem.RandomDD(50, 3, 1, 9, false)
	if err != nil {
		t.Fatal(err)
	}
	stream, err := mustSolver(t, Neumann).Stream(a, ones(50), Options{Tolerance: 1e-12})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	var bounds []float64
	for {
		if _, ok := stream.Next(ctx); !ok {
			break
		}
		cert, ok := stream.st.(certifier).certificate()
		if !ok {
			t.Fatal("no certificate for a strictly dominant matrix")
		}
		bounds = append(bounds, cert.ErrorBound)
	}
	if len(bounds) < 3 {
		t.Fatalf("only %d iterations", len(bounds))
	}
	for k := 1; k < len(bounds); k++ {
		if bounds[k] > bounds[k-1] {
			t.Fatalf("bound grew at term %d: %g > %g", k, bounds[k], bounds[k-1])
		}
	}
}
