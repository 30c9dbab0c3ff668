package sparse

// COO holds coordinate triples as parallel slices.
type COO struct {
	RowIndices []int
	ColIndices []int
	Values     []float64
}

// MulVecTo computes dst = A*x from the triples. dst must have one entry per
// row and is overwritten.
func (c COO) MulVecTo(dst, x []float64) {
	clear(dst)
	for k, v := range c.Values {
		dst[c.RowIndices[k]] += v * x[c.ColIndices[k]]
	}
}

// CSR is the compressed sparse row form. Entries of row i live at
// [RowPointers[i], RowPointers[i+1]) in ColIndices and Values, sorted by
// column.
type CSR struct {
	Rows, Cols  int
	RowPointers []int
	ColIndices  []int
	Values      []float64
}

// MulVecTo computes dst = A*x. The inner loop is a plain accumulation over
// the row's range.
func (c *CSR) MulVecTo(dst, x []float64) {
	c.MulVecRange(dst, x, 0, c.Rows)
}

// MulVecRange computes dst[i] = (A*x)_i for rows lo <= i < hi only.
// Disjoint ranges may be computed concurrently.
func (c *CSR) MulVecRange(dst, x []float64, lo, hi int) {
	for i := lo; i < hi; i++ {
		dst[i] = c.RowDot(i, x)
	}
}

// RowDot returns (A*x)_i.
func (c *CSR) RowDot(i int, x []float64) float64 {
	var sum float64
	for k := c.RowPointers[i]; k < c.RowPointers[i+1]; k++ {
		sum += c.Values[k] * x[c.ColIndices[k]]
	}
	return sum
}

// CSC is the compressed sparse column form, the column-major dual of CSR.
type CSC struct {
	Rows, Cols  int
	ColPointers []int
	RowIndices  []int
	Values      []float64
}

// MulVecTo computes dst = A*x by scattering columns.
func (c *CSC) MulVecTo(dst, x []float64) {
	clear(dst)
	for j := 0; j < c.Cols; j++ {
		xj := x[j]
		for k := c.ColPointers[j]; k < c.ColPointers[j+1]; k++ {
			dst[c.RowIndices[k]] += c.Values[k] * xj
		}
	}
}

// MulTransVecTo computes dst = Aᵀ*x, one dot product per column.
func (c *CSC) MulTransVecTo(dst, x []float64) {
	for j := 0; j < c.Cols; j++ {
		var sum float64
		for k := c.ColPointers[j]; k < c.ColPointers[j+1]; k++ {
			sum += c.Values[k] * x[c.RowIndices[k]]
		}
		dst[j] = sum
	}
}

// Edge is one off-diagonal adjacency record: the neighbour node and the
// matrix entry connecting them.
type Edge struct {
	To     int
	Weight float64
}

// Graph is the adjacency view of a matrix. Node i's out-edges are the
// off-diagonal entries of row i (To = column) and its in-edges are the
// off-diagonal entries of column i (To = row). Edges are stored in two flat
// arenas indexed by offset arrays; the diagonal is kept separately.
type Graph struct {
	n      int
	diag   []float64
	outPtr []int
	out    []Edge
	inPtr  []int
	in     []Edge
}

func newGraph(m *Matrix) *Graph {
	csr, csc := m.CSR(), m.CSC()
	g := &Graph{
		n:      max(m.rows, m.cols),
		diag:   m.diagonal(),
		outPtr: make([]int, m.rows+1),
		inPtr:  make([]int, m.cols+1),
	}
	g.out = make([]Edge, 0, len(csr.Values))
	for i := 0; i < m.rows; i++ {
		for k := csr.RowPointers[i]; k < csr.RowPointers[i+1]; k++ {
			if j := csr.ColIndices[k]; j != i {
				g.out = append(g.out, Edge{To: j, Weight: csr.Values[k]})
			}
		}
		g.outPtr[i+1] = len(g.out)
	}
	g.in = make([]Edge, 0, len(csc.Values))
	for j := 0; j < m.cols; j++ {
		for k := csc.ColPointers[j]; k < csc.ColPointers[j+1]; k++ {
			if i := csc.RowIndices[k]; i != j {
				g.in = append(g.in, Edge{To: i, Weight: csc.Values[k]})
			}
		}
		g.inPtr[j+1] = len(g.in)
	}
	return g
}

// Nodes returns the number of nodes, max(rows, cols).
func (g *Graph) Nodes() int { return g.n }

// Diag returns a_ii, or 0 when i has no stored diagonal.
func (g *Graph) Diag(i int) float64 {
	if i < len(g.diag) {
		return g.diag[i]
	}
	return 0
}

// Out returns the off-diagonal entries of row i. The slice is shared.
func (g *Graph) Out(i int) []Edge {
	if i >= len(g.outPtr)-1 {
		return nil
	}
	return g.out[g.outPtr[i]:g.outPtr[i+1]]
}

// In returns the off-diagonal entries of column i. The slice is shared.
func (g *Graph) In(i int) []Edge {
	if i >= len(g.inPtr)-1 {
		return nil
	}
	return g.in[g.inPtr[i]:g.inPtr[i+1]]
}

// MulVecTo computes dst = A*x from the adjacency view.
func (g *Graph) MulVecTo(dst, x []float64) {
	for i := 0; i < len(g.outPtr)-1; i++ {
		sum := 0.0
		if i < len(g.diag) && i < len(x) {
			sum = g.diag[i] * x[i]
		}
		for _, e := range g.out[g.outPtr[i]:g.outPtr[i+1]] {
			sum += e.Weight * x[e.To]
		}
		dst[i] = sum
	}
}
