package sparse

import (
	"context"
	"fmt"

	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/parallel"
)

// Multiply returns A*x in a freshly allocated vector.
func (m *Matrix) Multiply(x []float64) ([]float64, error) {
	if len(x) != m.cols {
		return nil, apperrors.DimensionError{Name: "x", Expected: m.cols, Got: len(x)}
	}
	dst := make([]float64, m.rows)
	m.CSR().MulVecTo(dst, x)
	return dst, nil
}

// MulVecTo computes dst = A*x using the CSR view. It panics when the
// vector lengths do not match the matrix.
func (m *Matrix) MulVecTo(dst, x []float64) {
	m.checkMulShape(len(dst), len(x), m.rows, m.cols)
	m.CSR().MulVecTo(dst, x)
}

// MulTransVecTo computes dst = Aᵀ*x using the CSC view.
func (m *Matrix) MulTransVecTo(dst, x []float64) {
	m.checkMulShape(len(dst), len(x), m.cols, m.rows)
	m.CSC().MulTransVecTo(dst, x)
}

// ParallelMulVecTo computes dst = A*x with rows split into at most workers
// contiguous blocks, each computed by its own goroutine. The result is
// bit-identical to MulVecTo since every row is summed in the same order.
//
// Parameters:
//   - ctx: Checked once before the blocks are dispatched.
//   - dst: Output vector of length Rows().
//   - x: Input vector of length Cols().
//   - workers: Number of blocks (<= 0 means one per CPU).
//
// Returns:
//   - error: The context error if ctx is already done.
func (m *Matrix) ParallelMulVecTo(ctx context.Context, dst, x []float64, workers int) error {
	m.checkMulShape(len(dst), len(x), m.rows, m.cols)
	csr := m.CSR()
	return parallel.ForEachBlock(ctx, m.rows, workers, func(lo, hi int) error {
		csr.MulVecRange(dst, x, lo, hi)
		return nil
	})
}

func (m *Matrix) checkMulShape(dst, x, wantDst, wantX int) {
	if dst != wantDst || x != wantX {
		panic(fmt.Sprintf("sparse: dimension mismatch: %dx%d matrix with len(dst)=%d len(x)=%d", m.rows, m.cols, dst, x))
	}
}
