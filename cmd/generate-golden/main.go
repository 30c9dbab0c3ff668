package main

import (
	"encoding/json"
	"flag"
	"fmt"
	stdlog "log"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/agbru/ddsolve/internal/logging"
	"github.com/agbru/ddsolve/internal/sparse"
)

// maxResidual bounds ‖b − Ax‖∞ for an accepted oracle solution.
const maxResidual = 1e-12

// GoldenCase is one reference system with its exact solution.
type GoldenCase struct {
	Name      string      `json:"name"`
	Rows      [][]float64 `json:"rows"`
	B         []float64   `json:"b"`
	X         []float64   `json:"x"`
	Symmetric bool        `json:"symmetric"`
}

// GoldenFile is the layout of golden.json.
type GoldenFile struct {
	Cases []GoldenCase `json:"cases"`
}

func main() {
	outputDir := flag.String("out", "internal/solver/testdata", "Output directory for the golden file")
	flag.Parse()

	logger := logging.NewStdLoggerAdapter(stdlog.New(os.Stderr, "generate-golden: ", 0))
	if err := run(*outputDir, logger); err != nil {
		logger.Error("generation failed", err)
		os.Exit(1)
	}
}

func run(outputDir string, logger logging.Logger) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	// Small strictly dominant systems covering symmetric, nonsymmetric and
	// sparse right-hand sides.
	cases := []GoldenCase{
		{Name: "two-by-two", Rows: [][]float64{{4, 1}, {1, 3}}, B: []float64{1, 2}},
		{Name: "tridiagonal-6", Rows: band(6, []float64{4, -1}), B: []float64{1, 1, 1, 1, 1, 1}},
		{Name: "nonsymmetric-3", Rows: [][]float64{{5, -1, 2}, {1, 6, -3}, {0, 2, 4}}, B: []float64{3, -1, 2}},
		{Name: "banded-5", Rows: band(5, []float64{3.5, -1, -0.5}), B: []float64{1, 0, -1, 2, 0.5}},
		{Name: "unit-rhs-4", Rows: [][]float64{{10, 1, 0, 2}, {1, 8, -2, 0}, {0, -2, 9, 1}, {2, 0, 1, 7}}, B: []float64{1, 0, 0, 0}},
	}

	logger.Info("generating golden data")

	for i := range cases {
		c := &cases[i]
		x, err := solveDense(c.Rows, c.B)
		if err != nil {
			return fmt.Errorf("solving %s: %w", c.Name, err)
		}
		r, err := residual(c.Rows, c.B, x)
		if err != nil {
			return fmt.Errorf("checking %s: %w", c.Name, err)
		}
		if r > maxResidual {
			return fmt.Errorf("%s: residual %g exceeds %g", c.Name, r, maxResidual)
		}
		c.X = x
		c.Symmetric = symmetric(c.Rows)
		logger.Info("generated", logging.String("case", c.Name), logging.Float64("residual", r))
	}

	filename := filepath.Join(outputDir, "golden.json")
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(GoldenFile{Cases: cases}); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}

	logger.Info("wrote golden file", logging.String("path", filename))
	return nil
}

// residual returns ‖b − Ax‖∞ computed row by row on the sparse CSR form,
// independently of the dense LU that produced x.
func residual(rows [][]float64, b, x []float64) (float64, error) {
	m, err := sparse.FromRows(rows)
	if err != nil {
		return 0, err
	}
	csr := m.CSR()
	var worst float64
	for i := range b {
		worst = math.Max(worst, math.Abs(b[i]-csr.RowDot(i, x)))
	}
	return worst, nil
}

// band returns the symmetric n×n band matrix with coeffs[d] on the d-th
// diagonals.
func band(n int, coeffs []float64) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			d := i - j
			if d < 0 {
				d = -d
			}
			if d < len(coeffs) {
				rows[i][j] = coeffs[d]
			}
		}
	}
	return rows
}

// solveDense is the oracle: an LU solve from gonum.
func solveDense(rows [][]float64, b []float64) ([]float64, error) {
	n := len(rows)
	a := mat.NewDense(n, n, nil)
	for i, r := range rows {
		a.SetRow(i, r)
	}
	var x mat.VecDense
	if err := x.SolveVec(a, mat.NewVecDense(n, append([]float64(nil), b...))); err != nil {
		return nil, err
	}
	return x.RawVector().Data, nil
}

func symmetric(rows [][]float64) bool {
	for i := range rows {
		for j := range rows[i] {
			if rows[i][j] != rows[j][i] {
				return false
			}
		}
	}
	return true
}
