// Package sparse provides the immutable sparse matrix used by every solver.
//
// A Matrix is built once from coordinate triples (FromCOO) or a dense
// row-major array (FromDense) and canonicalized: duplicate (row, col)
// entries are summed and the triples are sorted row-major. The compressed
// row (CSR), compressed column (CSC) and graph adjacency views are derived
// on first use and cached. All views share the matrix's immutability and
// may be read concurrently by any number of solves.
package sparse

import (
	"fmt"
	"math"
	"sort"
	"sync"

	apperrors "github.com/agbru/ddsolve/internal/errors"
)

// Matrix is an immutable rows x cols sparse matrix.
type Matrix struct {
	rows, cols int
	coo        COO

	csrOnce sync.Once
	csr     *CSR

	cscOnce sync.Once
	csc     *CSC

	graphOnce sync.Once
	graph     *Graph

	diagOnce sync.Once
	diag     []float64

	domOnce sync.Once
	dom     DominanceReport

	symOnce sync.Once
	sym     symmetry
}

type symmetry struct {
	ok       bool
	row, col int
}

// FromCOO builds a matrix from coordinate triples. Repeated (row, col)
// pairs are summed. Triples may be given in any order.
//
// Parameters:
//   - rowIdx, colIdx: The row and column index of each entry.
//   - values: The entry values; must be finite.
//   - rows, cols: The matrix dimensions; must be positive.
//
// Returns:
//   - *Matrix: The canonicalized matrix.
//   - error: A MalformedInputError for mismatched lengths, non-positive
//     dimensions, out-of-range indices or non-finite values.
func FromCOO(rowIdx, colIdx []int, values []float64, rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, apperrors.NewMalformedInputError("dimensions", "must be positive, got %dx%d", rows, cols)
	}
	if len(rowIdx) != len(values) || len(colIdx) != len(values) {
		return nil, apperrors.NewMalformedInputError("values",
			"length mismatch: %d row indices, %d column indices, %d values", len(rowIdx), len(colIdx), len(values))
	}
	for k, v := range values {
		if r := rowIdx[k]; r < 0 || r >= rows {
			return nil, apperrors.NewMalformedInputError(fmt.Sprintf("rowIdx[%d]", k), "index %d out of range [0,%d)", r, rows)
		}
		if c := colIdx[k]; c < 0 || c >= cols {
			return nil, apperrors.NewMalformedInputError(fmt.Sprintf("colIdx[%d]", k), "index %d out of range [0,%d)", c, cols)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperrors.NewMalformedInputError(fmt.Sprintf("values[%d]", k), "non-finite value %v", v)
		}
	}

	// Bucket by row, then sort each row by column and merge duplicates.
	ptr := make([]int, rows+1)
	for _, r := range rowIdx {
		ptr[r+1]++
	}
	for i := 0; i < rows; i++ {
		ptr[i+1] += ptr[i]
	}
	next := make([]int, rows)
	copy(next, ptr[:rows])
	cIdx := make([]int, len(values))
	vals := make([]float64, len(values))
	for k, r := range rowIdx {
		p := next[r]
		next[r]++
		cIdx[p] = colIdx[k]
		vals[p] = values[k]
	}

	out := COO{
		RowIndices: make([]int, 0, len(values)),
		ColIndices: make([]int, 0, len(values)),
		Values:     make([]float64, 0, len(values)),
	}
	for i := 0; i < rows; i++ {
		lo, hi := ptr[i], ptr[i+1]
		sort.Stable(rowEntries{cols: cIdx[lo:hi], vals: vals[lo:hi]})
		for k := lo; k < hi; k++ {
			if n := len(out.Values); n > 0 && out.RowIndices[n-1] == i && out.ColIndices[n-1] == cIdx[k] {
				out.Values[n-1] += vals[k]
				continue
			}
			out.RowIndices = append(out.RowIndices, i)
			out.ColIndices = append(out.ColIndices, cIdx[k])
			out.Values = append(out.Values, vals[k])
		}
	}
	return &Matrix{rows: rows, cols: cols, coo: out}, nil
}

// FromDense builds a matrix from a dense row-major array of length
// rows*cols. Zero entries are not stored.
func FromDense(data []float64, rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, apperrors.NewMalformedInputError("dimensions", "must be positive, got %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, apperrors.NewMalformedInputError("data", "length %d does not match %dx%d", len(data), rows, cols)
	}
	var ri, ci []int
	var vs []float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := data[i*cols+j]; v != 0 {
				ri = append(ri, i)
				ci = append(ci, j)
				vs = append(vs, v)
			}
		}
	}
	return FromCOO(ri, ci, vs, rows, cols)
}

// FromRows builds a matrix from a slice of equal-length dense rows.
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, apperrors.NewMalformedInputError("rows", "no rows")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, apperrors.NewMalformedInputError(fmt.Sprintf("rows[%d]", i), "has %d columns, expected %d", len(r), cols)
		}
		data = append(data, r...)
	}
	return FromDense(data, len(rows), cols)
}

type rowEntries struct {
	cols []int
	vals []float64
}

func (r rowEntries) Len() int           { return len(r.cols) }
func (r rowEntries) Less(i, j int) bool { return r.cols[i] < r.cols[j] }
func (r rowEntries) Swap(i, j int) {
	r.cols[i], r.cols[j] = r.cols[j], r.cols[i]
	r.vals[i], r.vals[j] = r.vals[j], r.vals[i]
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// NNZ returns the number of stored entries after canonicalization.
func (m *Matrix) NNZ() int { return len(m.coo.Values) }

// IsSquare reports whether rows == cols.
func (m *Matrix) IsSquare() bool { return m.rows == m.cols }

// COO returns the canonical triples, sorted row-major without duplicates.
// The slices are shared with the matrix and must not be modified.
func (m *Matrix) COO() COO { return m.coo }

// CSR returns the compressed sparse row view, building it on first use.
func (m *Matrix) CSR() *CSR {
	m.csrOnce.Do(func() {
		ptr := make([]int, m.rows+1)
		for _, r := range m.coo.RowIndices {
			ptr[r+1]++
		}
		for i := 0; i < m.rows; i++ {
			ptr[i+1] += ptr[i]
		}
		m.csr = &CSR{
			Rows:        m.rows,
			Cols:        m.cols,
			RowPointers: ptr,
			ColIndices:  m.coo.ColIndices,
			Values:      m.coo.Values,
		}
	})
	return m.csr
}

// CSC returns the compressed sparse column view, building it on first use.
// Row indices within each column come out sorted because the canonical
// triples are row-major.
func (m *Matrix) CSC() *CSC {
	m.cscOnce.Do(func() {
		ptr := make([]int, m.cols+1)
		for _, c := range m.coo.ColIndices {
			ptr[c+1]++
		}
		for j := 0; j < m.cols; j++ {
			ptr[j+1] += ptr[j]
		}
		next := make([]int, m.cols)
		copy(next, ptr[:m.cols])
		rowIdx := make([]int, len(m.coo.Values))
		vals := make([]float64, len(m.coo.Values))
		for k, c := range m.coo.ColIndices {
			p := next[c]
			next[c]++
			rowIdx[p] = m.coo.RowIndices[k]
			vals[p] = m.coo.Values[k]
		}
		m.csc = &CSC{Rows: m.rows, Cols: m.cols, ColPointers: ptr, RowIndices: rowIdx, Values: vals}
	})
	return m.csc
}

// Graph returns the arena-indexed adjacency view used by push methods,
// building it on first use.
func (m *Matrix) Graph() *Graph {
	m.graphOnce.Do(func() {
		m.graph = newGraph(m)
	})
	return m.graph
}

// At returns a_ij, or 0 when the entry is not stored.
func (m *Matrix) At(i, j int) float64 {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("sparse: index (%d,%d) out of range for %dx%d matrix", i, j, m.rows, m.cols))
	}
	csr := m.CSR()
	lo, hi := csr.RowPointers[i], csr.RowPointers[i+1]
	cols := csr.ColIndices[lo:hi]
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return csr.Values[lo+k]
	}
	return 0
}

// Diagonal returns a copy of the main diagonal. Rows without a stored
// diagonal entry yield 0, which callers must treat as a zero-diagonal
// hazard rather than a legitimate value.
func (m *Matrix) Diagonal() []float64 {
	d := m.diagonal()
	out := make([]float64, len(d))
	copy(out, d)
	return out
}

func (m *Matrix) diagonal() []float64 {
	m.diagOnce.Do(func() {
		n := min(m.rows, m.cols)
		m.diag = make([]float64, n)
		for k, r := range m.coo.RowIndices {
			if r < n && m.coo.ColIndices[k] == r {
				m.diag[r] = m.coo.Values[k]
			}
		}
	})
	return m.diag
}

// String returns a short description of the matrix.
func (m *Matrix) String() string {
	return fmt.Sprintf("sparse.Matrix(%dx%d, nnz=%d)", m.rows, m.cols, m.NNZ())
}
