package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/agbru/ddsolve/internal/config"
	"github.com/agbru/ddsolve/internal/parallel"
	"github.com/agbru/ddsolve/internal/solver"
	"github.com/agbru/ddsolve/internal/sparse"
)

// GetSolversToRun determines which solvers should be executed based on the
// configuration. "all" returns every registered method in declaration order;
// any other value is parsed with solver.ParseMethod, so the short aliases
// work too.
//
// Parameters:
//   - cfg: The application configuration containing the method selection.
//   - factory: The solver factory to retrieve implementations from.
//
// Returns:
//   - []solver.Solver: The solvers to execute, nil if the method is unknown.
func GetSolversToRun(cfg config.AppConfig, factory solver.Factory) []solver.Solver {
	if cfg.Method == "all" {
		methods := factory.List()
		solvers := make([]solver.Solver, 0, len(methods))
		for _, m := range methods {
			if s, err := factory.Get(m); err == nil {
				solvers = append(solvers, s)
			}
		}
		return solvers
	}
	m, err := solver.ParseMethod(cfg.Method)
	if err != nil {
		return nil
	}
	if s, err := factory.Get(m); err == nil {
		return []solver.Solver{s}
	}
	return nil
}

// PrintExecutionConfig displays the system being solved, the stopping
// criteria and the execution environment.
//
// Parameters:
//   - cfg: The application configuration.
//   - a: The generated matrix.
//   - out: The writer for standard output.
func PrintExecutionConfig(cfg config.AppConfig, a *sparse.Matrix, out io.Writer) {
	report := a.CheckDiagonalDominance()
	dominance := "strict"
	switch {
	case report.IsStrict:
	case report.IsWeak:
		dominance = "weak"
	default:
		dominance = fmt.Sprintf("%sviolated at row %d%s", ColorYellow(), report.WorstRow, ColorReset())
	}
	symmetric := "no"
	if a.IsSymmetric() {
		symmetric = "yes"
	}
	cpuInfo := parallel.DetectCPU()

	writeOut(out, "--- Execution Configuration ---\n")
	writeOut(out, "System: %s%s%s, n=%s%d%s, nnz=%s%d%s, seed %d.\n",
		ColorMagenta(), cfg.Problem, ColorReset(), ColorCyan(), a.Rows(), ColorReset(),
		ColorCyan(), a.NNZ(), ColorReset(), cfg.Seed)
	writeOut(out, "Dominance: %s (margin δ=%.3g, ‖I−D⁻¹A‖∞=%.4f), symmetric: %s.\n",
		dominance, report.Margin, report.IterationNorm, symmetric)
	writeOut(out, "Stopping: tolerance %s%.1e%s, at most %d iterations, timeout %s%s%s.\n",
		ColorCyan(), cfg.Tolerance, ColorReset(), effectiveMaxIter(cfg.MaxIterations),
		ColorYellow(), cfg.Timeout, ColorReset())
	writeOut(out, "Environment: %s%d%s logical processors (%s, SIMD %s), Go %s%s%s.\n",
		ColorCyan(), cpuInfo.NumCPU, ColorReset(), cpuInfo.Arch, cpuInfo.SIMDName,
		ColorCyan(), runtime.Version(), ColorReset())
	writeOut(out, "Parallel kernels: %d workers from %s%d%s nonzeros.\n",
		cfg.ToSolverOptions().Workers, ColorCyan(), cfg.ParallelThreshold, ColorReset())
}

func effectiveMaxIter(n int) int {
	if n <= 0 {
		return solver.DefaultMaxIterations
	}
	return n
}

// PrintExecutionMode displays the execution mode (single method vs
// comparison).
//
// Parameters:
//   - solvers: The solvers that will be executed.
//   - out: The writer for standard output.
func PrintExecutionMode(solvers []solver.Solver, out io.Writer) {
	var modeDesc string
	switch len(solvers) {
	case 0:
		modeDesc = "Nothing to run"
	case 1:
		modeDesc = fmt.Sprintf("Single solve with the %s%s%s method",
			ColorGreen(), solvers[0].Name(), ColorReset())
	default:
		modeDesc = fmt.Sprintf("Parallel comparison of %d methods", len(solvers))
	}
	writeOut(out, "Execution mode: %s.\n", modeDesc)
	writeOut(out, "\n--- Starting Execution ---\n")
}

func writeOut(out io.Writer, format string, a ...any) {
	fmt.Fprintf(out, format, a...)
}
