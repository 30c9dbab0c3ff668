// Package problem builds deterministic test systems: classic stencils and
// random sparse matrices with a controlled diagonal dominance margin.
package problem

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/agbru/ddsolve/internal/sparse"
)

// Kind names a generator.
type Kind string

// Available generators.
const (
	KindTridiagonal  Kind = "tridiagonal"
	KindLaplacian2D  Kind = "laplacian2d"
	KindBanded       Kind = "banded"
	KindRandom       Kind = "random"
	KindRandomSym    Kind = "random-sym"
	KindZeroDiagonal Kind = "zero-diagonal"
)

// Kinds returns the generator names in display order.
func Kinds() []Kind {
	return []Kind{KindTridiagonal, KindLaplacian2D, KindBanded, KindRandom, KindRandomSym, KindZeroDiagonal}
}

// ParseKind validates a generator name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	names := make([]string, 0, len(Kinds()))
	for _, known := range Kinds() {
		names = append(names, string(known))
	}
	return "", fmt.Errorf("unknown problem %q (available: %s)", s, strings.Join(names, ", "))
}

// Spec parameterizes Build.
type Spec struct {
	Kind Kind
	// N is the dimension; for the 2D Laplacian it is rounded down to a
	// perfect square.
	N int
	// Degree is the number of off-diagonal entries per row for the random
	// kinds and the half bandwidth for banded.
	Degree int
	// Margin scales the diagonal of the random kinds:
	// a_ii = (1 + Margin)·Σ|a_ij| + 1.
	Margin float64
	Seed   int64
}

// Build generates the matrix described by s.
func Build(s Spec) (*sparse.Matrix, error) {
	if s.N <= 0 {
		return nil, fmt.Errorf("problem size must be positive, got %d", s.N)
	}
	switch s.Kind {
	case KindTridiagonal:
		return Tridiagonal(s.N, 2, -1)
	case KindLaplacian2D:
		side := 1
		for (side+1)*(side+1) <= s.N {
			side++
		}
		return Laplacian2D(side)
	case KindBanded:
		return Banded(s.N, max(s.Degree, 1))
	case KindRandom:
		return RandomDD(s.N, s.Degree, s.Margin, s.Seed, false)
	case KindRandomSym:
		return RandomDD(s.N, s.Degree, s.Margin, s.Seed, true)
	case KindZeroDiagonal:
		return ZeroDiagonal(s.N)
	}
	return nil, fmt.Errorf("unknown problem kind %q", s.Kind)
}

// Tridiagonal returns the n×n matrix with diag on the diagonal and off on
// both off-diagonals.
func Tridiagonal(n int, diag, off float64) (*sparse.Matrix, error) {
	rows := make([]int, 0, 3*n)
	cols := make([]int, 0, 3*n)
	vals := make([]float64, 0, 3*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			rows, cols, vals = append(rows, i), append(cols, i-1), append(vals, off)
		}
		rows, cols, vals = append(rows, i), append(cols, i), append(vals, diag)
		if i < n-1 {
			rows, cols, vals = append(rows, i), append(cols, i+1), append(vals, off)
		}
	}
	return sparse.FromCOO(rows, cols, vals, n, n)
}

// Laplacian2D returns the 5-point Laplacian on a side×side grid with
// Dirichlet boundary, of dimension side².
func Laplacian2D(side int) (*sparse.Matrix, error) {
	n := side * side
	rows := make([]int, 0, 5*n)
	cols := make([]int, 0, 5*n)
	vals := make([]float64, 0, 5*n)
	add := func(i, j int, v float64) {
		rows, cols, vals = append(rows, i), append(cols, j), append(vals, v)
	}
	for r := 0; r < side; r++ {
		for c := 0; c < side; c++ {
			i := r*side + c
			add(i, i, 4)
			if r > 0 {
				add(i, i-side, -1)
			}
			if r < side-1 {
				add(i, i+side, -1)
			}
			if c > 0 {
				add(i, i-1, -1)
			}
			if c < side-1 {
				add(i, i+1, -1)
			}
		}
	}
	return sparse.FromCOO(rows, cols, vals, n, n)
}

// Banded returns a symmetric strictly dominant matrix with half bandwidth
// k: off-diagonals −1/(distance) and a diagonal one above the row sum.
func Banded(n, k int) (*sparse.Matrix, error) {
	var rows, cols []int
	var vals []float64
	for i := 0; i < n; i++ {
		var sum float64
		for d := 1; d <= k; d++ {
			v := -1 / float64(d)
			if i-d >= 0 {
				rows, cols, vals = append(rows, i), append(cols, i-d), append(vals, v)
				sum -= v
			}
			if i+d < n {
				rows, cols, vals = append(rows, i), append(cols, i+d), append(vals, v)
				sum -= v
			}
		}
		rows, cols, vals = append(rows, i), append(cols, i), append(vals, sum+1)
	}
	return sparse.FromCOO(rows, cols, vals, n, n)
}

// RandomDD returns a random sparse strictly row dominant matrix. Each row
// draws degree distinct off-diagonal columns with values uniform in
// [−1, 1]; when symmetric is set every entry is mirrored, so rows may hold
// more than degree entries. The diagonal is (1 + margin)·s_i + 1 where s_i
// is the off-diagonal absolute row sum, so ‖I − D⁻¹A‖_∞ < 1/(1 + margin).
func RandomDD(n, degree int, margin float64, seed int64, symmetric bool) (*sparse.Matrix, error) {
	if n <= 0 {
		return nil, fmt.Errorf("problem size must be positive, got %d", n)
	}
	degree = min(max(degree, 0), n-1)
	rng := rand.New(rand.NewSource(seed))

	type key struct{ i, j int }
	entries := make(map[key]float64, n*degree*2)
	order := make([]key, 0, n*degree*2)
	set := func(i, j int, v float64) {
		k := key{i, j}
		if _, ok := entries[k]; !ok {
			order = append(order, k)
		}
		entries[k] = v
	}
	for i := 0; i < n; i++ {
		picked := make(map[int]bool, degree)
		cols := make([]int, 0, degree)
		for len(cols) < degree {
			j := rng.Intn(n)
			if j == i || picked[j] {
				continue
			}
			picked[j] = true
			cols = append(cols, j)
		}
		sort.Ints(cols)
		for _, j := range cols {
			v := 2*rng.Float64() - 1
			set(i, j, v)
			if symmetric {
				set(j, i, v)
			}
		}
	}

	sums := make([]float64, n)
	rows := make([]int, 0, len(order)+n)
	colIdx := make([]int, 0, len(order)+n)
	vals := make([]float64, 0, len(order)+n)
	for _, k := range order {
		v := entries[k]
		sums[k.i] += math.Abs(v)
		rows, colIdx, vals = append(rows, k.i), append(colIdx, k.j), append(vals, v)
	}
	for i := 0; i < n; i++ {
		rows, colIdx, vals = append(rows, i), append(colIdx, i), append(vals, (1+margin)*sums[i]+1)
	}
	return sparse.FromCOO(rows, colIdx, vals, n, n)
}

// ZeroDiagonal returns the n×n cyclic shift matrix: ones at (i, i+1 mod n)
// and no diagonal at all. For n = 2 it is [[0,1],[1,0]].
func ZeroDiagonal(n int) (*sparse.Matrix, error) {
	rows := make([]int, n)
	cols := make([]int, n)
	vals := make([]float64, n)
	for i := range rows {
		rows[i], cols[i], vals[i] = i, (i+1)%n, 1
	}
	if n == 1 {
		vals[0] = 0
	}
	return sparse.FromCOO(rows, cols, vals, n, n)
}

// RHS kinds for Vector.
const (
	RHSOnes   = "ones"
	RHSRandom = "random"
	RHSUnit   = "unit"
)

// Vector builds a right-hand side of length n: all ones, uniform random in
// [−1, 1] from seed, or the first unit vector.
func Vector(kind string, n int, seed int64) ([]float64, error) {
	b := make([]float64, n)
	switch kind {
	case RHSOnes, "":
		for i := range b {
			b[i] = 1
		}
	case RHSRandom:
		rng := rand.New(rand.NewSource(seed))
		for i := range b {
			b[i] = 2*rng.Float64() - 1
		}
	case RHSUnit:
		if n > 0 {
			b[0] = 1
		}
	default:
		return nil, fmt.Errorf("unknown right-hand side %q (available: ones, random, unit)", kind)
	}
	return b, nil
}
