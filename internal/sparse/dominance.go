package sparse

import "math"

// DominanceReport describes how far a matrix is from (strict) diagonal
// dominance. A row margin is |a_ii| - Σ_{j≠i}|a_ij|; column margins use the
// column sums.
type DominanceReport struct {
	// IsStrict is true when every row margin is > 0.
	IsStrict bool
	// IsWeak is true when every row margin is >= 0.
	IsWeak bool
	// PerRowMargins holds one margin per row.
	PerRowMargins []float64
	// WorstRow is the row with the smallest margin.
	WorstRow int
	// Margin is δ, the smallest row margin.
	Margin float64
	// ColumnStrict is true when every column margin is > 0.
	ColumnStrict bool
	// ColumnMargin is the smallest column margin.
	ColumnMargin float64
	// ZeroDiagonalRows lists rows whose diagonal is missing or below
	// machine epsilon in magnitude.
	ZeroDiagonalRows []int
	// IterationNorm is ‖I − D⁻¹A‖_∞, the max over rows of
	// Σ_{j≠i}|a_ij|/|a_ii|. It is +Inf when a diagonal is zero and < 1
	// exactly when the matrix is strictly row dominant.
	IterationNorm float64
}

// RowStrict reports whether row i is strictly dominant.
func (r DominanceReport) RowStrict(i int) bool { return r.PerRowMargins[i] > 0 }

// OffDiagonalRowSums returns Σ_{j≠i}|a_ij| for every row.
func (m *Matrix) OffDiagonalRowSums() []float64 {
	sums := make([]float64, m.rows)
	for k, r := range m.coo.RowIndices {
		if m.coo.ColIndices[k] != r {
			sums[r] += math.Abs(m.coo.Values[k])
		}
	}
	return sums
}

// CheckDiagonalDominance computes the dominance report in O(nnz) on first
// call and returns the cached report afterwards. The report's slices are
// shared and must not be modified.
func (m *Matrix) CheckDiagonalDominance() DominanceReport {
	m.domOnce.Do(func() {
		m.dom = m.computeDominance()
	})
	return m.dom
}

func (m *Matrix) computeDominance() DominanceReport {
	diag := m.diagonal()
	rowSums := m.OffDiagonalRowSums()
	colSums := make([]float64, m.cols)
	for k, c := range m.coo.ColIndices {
		if m.coo.RowIndices[k] != c {
			colSums[c] += math.Abs(m.coo.Values[k])
		}
	}

	rep := DominanceReport{
		PerRowMargins: make([]float64, m.rows),
		Margin:        math.Inf(1),
		ColumnMargin:  math.Inf(1),
	}
	for i := 0; i < m.rows; i++ {
		d := 0.0
		if i < len(diag) {
			d = math.Abs(diag[i])
		}
		margin := d - rowSums[i]
		rep.PerRowMargins[i] = margin
		if margin < rep.Margin {
			rep.Margin = margin
			rep.WorstRow = i
		}
		if d < epsilon {
			rep.ZeroDiagonalRows = append(rep.ZeroDiagonalRows, i)
			rep.IterationNorm = math.Inf(1)
		} else if ratio := rowSums[i] / d; ratio > rep.IterationNorm {
			rep.IterationNorm = ratio
		}
	}
	for j := 0; j < m.cols; j++ {
		d := 0.0
		if j < len(diag) {
			d = math.Abs(diag[j])
		}
		rep.ColumnMargin = math.Min(rep.ColumnMargin, d-colSums[j])
	}
	rep.IsStrict = rep.Margin > 0
	rep.IsWeak = rep.Margin >= 0
	rep.ColumnStrict = rep.ColumnMargin > 0
	return rep
}

// epsilon is the magnitude below which a diagonal entry counts as zero.
const epsilon = 2.220446049250313e-16

// IsSymmetric reports whether the matrix is square and a_ij == a_ji up to a
// relative tolerance of 1e-12. The result is cached.
func (m *Matrix) IsSymmetric() bool {
	ok, _, _ := m.FirstAsymmetry()
	return ok
}

// FirstAsymmetry returns (true, -1, -1) for a symmetric matrix, otherwise
// false and the first entry (row, col), in row-major order, whose mirror
// differs.
func (m *Matrix) FirstAsymmetry() (bool, int, int) {
	m.symOnce.Do(func() {
		m.sym = symmetry{ok: true, row: -1, col: -1}
		if !m.IsSquare() {
			m.sym = symmetry{ok: false, row: 0, col: 0}
			return
		}
		for k, i := range m.coo.RowIndices {
			j := m.coo.ColIndices[k]
			if j <= i {
				continue
			}
			v, w := m.coo.Values[k], m.At(j, i)
			if math.Abs(v-w) > 1e-12*math.Max(1, math.Max(math.Abs(v), math.Abs(w))) {
				m.sym = symmetry{ok: false, row: i, col: j}
				return
			}
		}
		// Entries present only below the diagonal.
		for k, i := range m.coo.RowIndices {
			j := m.coo.ColIndices[k]
			if j < i && m.coo.Values[k] != 0 && m.At(j, i) == 0 {
				m.sym = symmetry{ok: false, row: i, col: j}
				return
			}
		}
	})
	return m.sym.ok, m.sym.row, m.sym.col
}

// DiagonalFix records the rows changed by FixDiagonal.
type DiagonalFix struct {
	Rows []int
	Old  []float64
	New  []float64
}

// Applied reports whether any row was changed.
func (f DiagonalFix) Applied() bool { return len(f.Rows) > 0 }

// FixDiagonal returns a new matrix in which every row with margin <= 0 has
// its diagonal replaced by s + |s| + 1, where s is the row's off-diagonal
// absolute sum, making that row strictly dominant. The receiver is not
// modified. When no row needs fixing the receiver itself is returned.
func (m *Matrix) FixDiagonal() (*Matrix, DiagonalFix) {
	rep := m.CheckDiagonalDominance()
	n := min(m.rows, m.cols)
	var fix DiagonalFix
	newDiag := make(map[int]float64)
	sums := m.OffDiagonalRowSums()
	diag := m.diagonal()
	for i := 0; i < n; i++ {
		if rep.PerRowMargins[i] > 0 {
			continue
		}
		s := sums[i]
		v := s + math.Abs(s) + 1
		fix.Rows = append(fix.Rows, i)
		fix.Old = append(fix.Old, diag[i])
		fix.New = append(fix.New, v)
		newDiag[i] = v
	}
	if !fix.Applied() {
		return m, fix
	}

	out := COO{
		RowIndices: make([]int, 0, m.NNZ()+len(newDiag)),
		ColIndices: make([]int, 0, m.NNZ()+len(newDiag)),
		Values:     make([]float64, 0, m.NNZ()+len(newDiag)),
	}
	push := func(i, j int, v float64) {
		out.RowIndices = append(out.RowIndices, i)
		out.ColIndices = append(out.ColIndices, j)
		out.Values = append(out.Values, v)
	}
	csr := m.CSR()
	for i := 0; i < m.rows; i++ {
		v, fixRow := newDiag[i]
		placed := !fixRow
		for k := csr.RowPointers[i]; k < csr.RowPointers[i+1]; k++ {
			j := csr.ColIndices[k]
			if !placed && j >= i {
				push(i, i, v)
				placed = true
				if j == i {
					continue
				}
			}
			push(i, j, csr.Values[k])
		}
		if !placed {
			push(i, i, v)
		}
	}
	return &Matrix{rows: m.rows, cols: m.cols, coo: out}, fix
}
