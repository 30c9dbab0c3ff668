// Package config provides the configuration management for the ddsolve
// application. It defines the data structure for the configuration, handles
// the parsing of command-line arguments, and performs validation on the
// configuration values.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"runtime"
	"strings"
	"time"

	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/problem"
	"github.com/agbru/ddsolve/internal/solver"
)

const (
	// EnvPrefix is the prefix for all environment variables used by ddsolve.
	// Environment variables provide an alternative to CLI flags for
	// configuration, following the 12-Factor App methodology.
	EnvPrefix = "DDSOLVE_"
)

// Default configuration values.
// These can be overridden via command-line flags or environment variables.
const (
	// DefaultProblem is the default generator.
	DefaultProblem = string(problem.KindRandom)
	// DefaultN is the default system dimension.
	DefaultN = 10_000
	// DefaultDegree is the default number of off-diagonal entries per row.
	DefaultDegree = 5
	// DefaultMargin is the default dominance margin of the random generators.
	DefaultMargin = 0.5
	// DefaultSeed is the default generator seed.
	DefaultSeed int64 = 42
	// DefaultRHS is the default right-hand side.
	DefaultRHS = problem.RHSOnes
	// DefaultMethod is the default method selection.
	DefaultMethod = "all"
	// DefaultTimeout is the default solve timeout.
	DefaultTimeout = 5 * time.Minute
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "warn"
)

var logLevels = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}

// AppConfig aggregates the application's configuration parameters, parsed
// from command-line flags. It describes the system to build, the methods to
// run on it and how the results are reported.
type AppConfig struct {
	// Problem names the matrix generator (see problem.Kinds).
	Problem string
	// N is the system dimension.
	N int
	// Degree is the off-diagonal count per row (random kinds) or the half
	// bandwidth (banded).
	Degree int
	// Margin controls the dominance of the random generators.
	Margin float64
	// Seed drives the random generators and the hybrid refinement phase.
	Seed int64
	// RHS selects the right-hand side: ones, random or unit.
	RHS string

	// Method specifies the method to use ("all" or a method name).
	Method string
	// Tolerance is the target relative residual.
	Tolerance float64
	// MaxIterations bounds the iteration count (0 for the default).
	MaxIterations int
	// AutoFix strengthens non-dominant rows instead of failing.
	AutoFix bool
	// Timeout sets the maximum duration for the whole run.
	Timeout time.Duration
	// Workers is the row-block parallelism of the kernels (0 for one per CPU).
	Workers int
	// ParallelThreshold is the minimum nnz for parallel kernels.
	ParallelThreshold int
	// ParallelThresholdSet records that ParallelThreshold came from the
	// command line or the environment, so no profile or heuristic replaces
	// it, even when it equals the default.
	ParallelThresholdSet bool
	// PushBudget caps the push operations of the push methods.
	PushBudget int

	// Rows, when not empty, estimates only the coordinates x[i] for i in
	// Rows, in that order.
	Rows []int
	// Functional, when set, estimates tᵀx with t built like a right-hand
	// side of this kind.
	Functional string
	// Stream prints one line per iteration.
	Stream bool

	// OutputFile, if specified, saves the solution to this file path.
	OutputFile string
	// JSONOutput, if true, outputs the results in JSON format.
	JSONOutput bool
	// Quiet mode - minimal output for scripting purposes.
	Quiet bool
	// Verbose, if true, displays the full solution vector.
	Verbose bool
	// Details, if true, provides a detailed report including the residual
	// history and the certificate.
	Details bool
	// NoColor, if true, disables all color output in the CLI.
	// Also respects the NO_COLOR environment variable.
	NoColor bool
	// Metrics, if true, dumps the Prometheus registry after the run.
	Metrics bool
	// LogLevel is the zerolog level name.
	LogLevel string

	// Calibrate, if true, runs the application in calibration mode to find
	// the optimal parallel threshold.
	Calibrate bool
	// AutoCalibrate, if true, runs a short automatic calibration at startup
	// when no valid profile is cached.
	AutoCalibrate bool
	// CalibrationProfile is the path to a calibration profile file.
	// If empty, uses the default path (~/.ddsolve_calibration.json).
	CalibrationProfile string
	// Completion, if set, generates shell completion script for the
	// specified shell. Valid values are: "bash", "zsh", "fish", "powershell".
	Completion string
	// Interactive, if true, starts a REPL session over the generated system.
	Interactive bool
}

// ToSolverOptions converts the application configuration into
// solver.Options for use by the solvers. Zero workers means one per
// available CPU.
func (c AppConfig) ToSolverOptions() solver.Options {
	workers := c.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return solver.Options{
		Tolerance:         c.Tolerance,
		MaxIterations:     c.MaxIterations,
		AutoFixDiagonal:   c.AutoFix,
		Workers:           workers,
		ParallelThreshold: c.ParallelThreshold,
		PushBudget:        c.PushBudget,
		Seed:              c.Seed,
	}
}

// ProblemSpec returns the generator parameters.
func (c AppConfig) ProblemSpec() problem.Spec {
	return problem.Spec{
		Kind:   problem.Kind(c.Problem),
		N:      c.N,
		Degree: c.Degree,
		Margin: c.Margin,
		Seed:   c.Seed,
	}
}

// Validate checks the semantic consistency of the configuration parameters.
// It ensures that numerical values are within valid ranges and that the
// chosen method, generator and right-hand side are supported.
//
// Parameters:
//   - availableMethods: The valid method names (e.g., ["jacobi", "cg"]).
//
// Returns:
//   - error: An error of type ConfigError if the configuration is invalid,
//     nil otherwise.
func (c AppConfig) Validate(availableMethods []string) error {
	if c.N <= 0 {
		return apperrors.NewConfigError("dimension must be strictly positive: %d", c.N)
	}
	if c.Timeout <= 0 {
		return apperrors.NewConfigError("timeout value must be strictly positive")
	}
	if math.IsNaN(c.Tolerance) || c.Tolerance <= 0 || c.Tolerance >= 1 {
		return apperrors.NewConfigError("tolerance must be in (0, 1): %g", c.Tolerance)
	}
	if c.Degree < 0 {
		return apperrors.NewConfigError("degree cannot be negative: %d", c.Degree)
	}
	if math.IsNaN(c.Margin) || c.Margin < 0 {
		return apperrors.NewConfigError("margin cannot be negative: %g", c.Margin)
	}
	if c.MaxIterations < 0 {
		return apperrors.NewConfigError("iteration limit cannot be negative: %d", c.MaxIterations)
	}
	if c.Workers < 0 {
		return apperrors.NewConfigError("worker count cannot be negative: %d", c.Workers)
	}
	if c.ParallelThreshold < 0 {
		return apperrors.NewConfigError("parallel threshold cannot be negative: %d", c.ParallelThreshold)
	}
	if c.PushBudget < 0 {
		return apperrors.NewConfigError("push budget cannot be negative: %d", c.PushBudget)
	}
	if _, err := problem.ParseKind(c.Problem); err != nil {
		return apperrors.NewConfigError("%v", err)
	}
	if !isRHSKind(c.RHS) {
		return apperrors.NewConfigError("unrecognized right-hand side: '%s'. Valid values are: ones, random, unit", c.RHS)
	}
	if c.Functional != "" && !isRHSKind(c.Functional) {
		return apperrors.NewConfigError("unrecognized functional: '%s'. Valid values are: ones, random, unit", c.Functional)
	}
	for _, row := range c.Rows {
		if row < 0 || row >= c.N {
			return apperrors.NewConfigError("row %d is outside the system of dimension %d", row, c.N)
		}
	}
	if len(c.Rows) > 0 && c.Functional != "" {
		return apperrors.NewConfigError("-row and -functional are mutually exclusive")
	}
	if c.Stream && c.Method == "all" {
		return apperrors.NewConfigError("-stream needs a single method")
	}
	if !contains(logLevels, c.LogLevel) {
		return apperrors.NewConfigError("unrecognized log level: '%s'. Valid levels are: %s", c.LogLevel, strings.Join(logLevels, ", "))
	}
	if c.Method != "all" && !contains(availableMethods, c.Method) {
		if _, err := solver.ParseMethod(c.Method); err != nil {
			return apperrors.NewConfigError("unrecognized method: '%s'. Valid methods are: 'all' or [%s]", c.Method, strings.Join(availableMethods, ", "))
		}
	}
	return nil
}

func isRHSKind(s string) bool {
	return s == problem.RHSOnes || s == problem.RHSRandom || s == problem.RHSUnit
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ParseConfig parses the command-line arguments and populates an AppConfig
// struct. It defines all the command-line flags, sets their default values,
// and handles the parsing process. After parsing, it performs validation on
// the resulting configuration.
//
// Parameters:
//   - programName: The name of the program, used in the usage message.
//   - args: The command-line arguments (typically os.Args[1:]).
//   - errorWriter: Where parsing errors and usage information are printed.
//   - availableMethods: The valid method names for validation.
//
// Returns:
//   - AppConfig: The populated configuration struct.
//   - error: An error if flag parsing fails or validation fails.
func ParseConfig(programName string, args []string, errorWriter io.Writer, availableMethods []string) (AppConfig, error) {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errorWriter)
	methodHelp := fmt.Sprintf("Method to use: 'all' (default) or one of [%s].", strings.Join(availableMethods, ", "))
	kinds := make([]string, 0, len(problem.Kinds()))
	for _, k := range problem.Kinds() {
		kinds = append(kinds, string(k))
	}

	config := AppConfig{}
	fs.StringVar(&config.Problem, "problem", DefaultProblem, fmt.Sprintf("Matrix generator: one of [%s].", strings.Join(kinds, ", ")))
	fs.IntVar(&config.N, "n", DefaultN, "System dimension.")
	fs.IntVar(&config.Degree, "degree", DefaultDegree, "Off-diagonal entries per row (random) or half bandwidth (banded).")
	fs.Float64Var(&config.Margin, "margin", DefaultMargin, "Diagonal dominance margin of the random generators.")
	fs.Int64Var(&config.Seed, "seed", DefaultSeed, "Seed of the random generators and the hybrid refinement.")
	fs.StringVar(&config.RHS, "rhs", DefaultRHS, "Right-hand side: ones, random or unit.")
	fs.StringVar(&config.Method, "method", DefaultMethod, methodHelp)
	fs.Float64Var(&config.Tolerance, "tol", solver.DefaultTolerance, "Target relative residual ‖b − Ax‖/‖b‖.")
	fs.IntVar(&config.MaxIterations, "max-iter", solver.DefaultMaxIterations, "Maximum number of iterations.")
	fs.BoolVar(&config.AutoFix, "auto-fix", false, "Strengthen non-dominant rows instead of failing on a zero diagonal.")
	fs.DurationVar(&config.Timeout, "timeout", DefaultTimeout, "Maximum execution time for the run.")
	fs.IntVar(&config.Workers, "workers", 0, "Parallel kernel workers (0 for one per CPU).")
	fs.IntVar(&config.ParallelThreshold, "parallel-threshold", solver.DefaultParallelThreshold, "Minimum nonzeros before kernels run in parallel.")
	fs.IntVar(&config.PushBudget, "push-budget", solver.DefaultPushBudget, "Maximum push operations of the push methods.")
	fs.Var((*rowList)(&config.Rows), "row", "Estimate only the coordinates x[row], e.g. 7 or 3,17,42.")
	fs.StringVar(&config.Functional, "functional", "", "Estimate tᵀx with t of this kind (ones, random, unit).")
	fs.BoolVar(&config.Stream, "stream", false, "Print the residual of every iteration.")
	fs.StringVar(&config.OutputFile, "output", "", "Output file path for the solution vector.")
	fs.StringVar(&config.OutputFile, "o", "", "Output file path (shorthand).")
	fs.BoolVar(&config.JSONOutput, "json", false, "Output results in JSON format.")
	fs.BoolVar(&config.Quiet, "quiet", false, "Quiet mode - minimal output for scripts.")
	fs.BoolVar(&config.Quiet, "q", false, "Quiet mode (shorthand).")
	fs.BoolVar(&config.Verbose, "v", false, "Display the full solution vector.")
	fs.BoolVar(&config.Details, "d", false, "Display the residual history and certificate details.")
	fs.BoolVar(&config.Details, "details", false, "Alias for -d.")
	fs.BoolVar(&config.NoColor, "no-color", false, "Disable colored output (also respects NO_COLOR env var).")
	fs.BoolVar(&config.Metrics, "metrics", false, "Dump the Prometheus metrics after the run.")
	fs.StringVar(&config.LogLevel, "log-level", DefaultLogLevel, "Log level: "+strings.Join(logLevels, ", ")+".")
	fs.BoolVar(&config.Calibrate, "calibrate", false, "Run calibration mode to determine the optimal parallel threshold.")
	fs.BoolVar(&config.AutoCalibrate, "auto-calibrate", false, "Enables quick automatic calibration at startup (may increase loading time).")
	fs.StringVar(&config.CalibrationProfile, "calibration-profile", "", "Path to calibration profile file (default: ~/.ddsolve_calibration.json).")
	fs.StringVar(&config.Completion, "completion", "", "Generate shell completion script (bash, zsh, fish, powershell).")
	fs.BoolVar(&config.Interactive, "interactive", false, "Start an interactive session over the generated system.")

	setCustomUsage(fs)

	if err := fs.Parse(args); err != nil {
		return AppConfig{}, err
	}

	// Apply environment variable overrides for flags not explicitly set
	applyEnvOverrides(&config, fs)

	config.Method = strings.ToLower(config.Method)
	config.Problem = strings.ToLower(config.Problem)
	config.LogLevel = strings.ToLower(config.LogLevel)
	if err := config.Validate(availableMethods); err != nil {
		fmt.Fprintln(errorWriter, "Configuration error:", err)
		fs.Usage()
		return AppConfig{}, errors.New("invalid configuration")
	}
	return config, nil
}
