package solver

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/sparse"
)

// system is a validated linear system ready to iterate on. When the
// diagonal was fixed, a is the fixed matrix.
type system struct {
	a        *sparse.Matrix
	b        []float64
	n        int
	diag     []float64
	dom      sparse.DominanceReport
	bNorm    float64
	bInf     float64
	fix      sparse.DiagonalFix
	warnings []error
}

// trivial reports whether b is the zero vector, in which case x = 0 is the
// exact solution.
func (s *system) trivial() bool { return s.bNorm == 0 }

// rhsNorms holds ‖b‖₂ and ‖b‖_∞.
type rhsNorms struct {
	two, inf float64
}

// validateSystem checks the shapes and the finiteness of b and returns
// the norms of b, all in a single pass over b.
func validateSystem(a *sparse.Matrix, b []float64) (rhsNorms, error) {
	if a == nil {
		return rhsNorms{}, apperrors.NewMalformedInputError("matrix", "nil matrix")
	}
	if !a.IsSquare() {
		return rhsNorms{}, apperrors.NewMalformedInputError("matrix", "must be square, got %dx%d", a.Rows(), a.Cols())
	}
	if len(b) != a.Rows() {
		return rhsNorms{}, apperrors.DimensionError{Name: "b", Expected: a.Rows(), Got: len(b)}
	}
	// Scaled sum of squares: scale ends as max|b_i|, so the infinity norm
	// comes for free and the 2-norm cannot overflow.
	scale, ssq := 0.0, 1.0
	for i, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return rhsNorms{}, apperrors.NewMalformedInputError(fmt.Sprintf("b[%d]", i), "non-finite value %v", v)
		}
		if v == 0 {
			continue
		}
		av := math.Abs(v)
		if scale < av {
			r := scale / av
			ssq = 1 + ssq*r*r
			scale = av
		} else {
			r := av / scale
			ssq += r * r
		}
	}
	return rhsNorms{two: scale * math.Sqrt(ssq), inf: scale}, nil
}

// prepare validates the inputs and applies the diagonal policy:
//   - a zero diagonal fails with ZeroDiagonalError unless AutoFixDiagonal
//     is set, in which case every non-dominant row is strengthened and the
//     fix is reported;
//   - push methods also take the fix path when the matrix is not strictly
//     row dominant, and fail with InsufficientDominanceError without it;
//   - other methods record missing strict dominance as a warning.
func prepare(method Method, a *sparse.Matrix, b []float64, opts Options) (*system, error) {
	sys, err := prepareMatrix(method, a, b, opts)
	if err != nil || sys.trivial() {
		return sys, err
	}
	sys.diag = sys.a.Diagonal()
	return sys, nil
}

// prepareMatrix applies the same policy without extracting the diagonal,
// so a local estimate allocates nothing proportional to n.
func prepareMatrix(method Method, a *sparse.Matrix, b []float64, opts Options) (*system, error) {
	norms, err := validateSystem(a, b)
	if err != nil {
		return nil, err
	}
	if opts.X0 != nil && len(opts.X0) != a.Cols() {
		return nil, apperrors.DimensionError{Name: "x0", Expected: a.Cols(), Got: len(opts.X0)}
	}

	sys := &system{a: a, b: b, n: a.Rows(), bNorm: norms.two, bInf: norms.inf}
	if sys.trivial() {
		return sys, nil
	}

	dom := a.CheckDiagonalDominance()
	needsFix := len(dom.ZeroDiagonalRows) > 0 || (method.IsPush() && !dom.IsStrict)
	if needsFix && opts.AutoFixDiagonal {
		fixed, fix := a.FixDiagonal()
		sys.a, sys.fix = fixed, fix
		dom = fixed.CheckDiagonalDominance()
		log.Warn().
			Str("method", method.String()).
			Int("rows", len(fix.Rows)).
			Ints("fixed_rows", firstN(fix.Rows, 10)).
			Msg("diagonal strengthened; solving the modified system")
	}

	if len(dom.ZeroDiagonalRows) > 0 {
		row := dom.ZeroDiagonalRows[0]
		return nil, apperrors.ZeroDiagonalError{Row: row, Value: sys.a.At(row, row)}
	}
	if !dom.IsStrict {
		dErr := apperrors.InsufficientDominanceError{Row: dom.WorstRow, Margin: dom.Margin}
		if method.IsPush() {
			return nil, dErr
		}
		sys.warnings = append(sys.warnings, dErr)
	}
	sys.dom = dom
	return sys, nil
}

func firstN(xs []int, n int) []int {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}

// varahBound bounds ‖x − x*‖_∞ by ‖b − Ax‖_∞/δ, valid for strictly row
// dominant matrices with margin δ.
func varahBound(dom sparse.DominanceReport, residualInf float64) Certificate {
	if !dom.IsStrict {
		return Certificate{ErrorBound: math.Inf(1), Source: "none"}
	}
	return Certificate{ErrorBound: residualInf / dom.Margin, Confidence: 1, Source: "residual"}
}
