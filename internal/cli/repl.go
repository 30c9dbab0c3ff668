package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agbru/ddsolve/internal/problem"
	"github.com/agbru/ddsolve/internal/service"
	"github.com/agbru/ddsolve/internal/solver"
	"github.com/agbru/ddsolve/internal/sparse"
)

// REPLConfig holds configuration for the REPL session.
type REPLConfig struct {
	// DefaultMethod is the method selected at startup ("all" or empty picks
	// the first registered method).
	DefaultMethod string
	// Timeout is the maximum duration of each command.
	Timeout time.Duration
	// Options are the solver options; tol changes their tolerance.
	Options solver.Options
	// Seed drives the functional vectors built by the functional command.
	Seed int64
	// System describes the loaded system in the status output.
	System string
}

// REPL is an interactive session over one linear system. The matrix and
// right-hand side stay loaded between commands, so several entries,
// functionals and full solves can be compared without regenerating it.
type REPL struct {
	config  REPLConfig
	factory solver.Factory
	svc     service.Service
	a       *sparse.Matrix
	b       []float64
	current solver.Method
	in      io.Reader
	out     io.Writer
}

// NewREPL creates a new REPL instance.
//
// Parameters:
//   - factory: The registered solvers, for full solves and listings.
//   - svc: The service answering entry and functional queries.
//   - a, b: The system of the session.
//   - config: REPL configuration.
//
// Returns:
//   - *REPL: A new REPL instance.
func NewREPL(factory solver.Factory, svc service.Service, a *sparse.Matrix, b []float64, config REPLConfig) *REPL {
	current, err := solver.ParseMethod(config.DefaultMethod)
	if err != nil {
		if methods := factory.List(); len(methods) > 0 {
			current = methods[0]
		}
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	return &REPL{
		config:  config,
		factory: factory,
		svc:     svc,
		a:       a,
		b:       b,
		current: current,
		in:      os.Stdin,
		out:     os.Stdout,
	}
}

// SetInput sets a custom input reader (useful for testing).
func (r *REPL) SetInput(in io.Reader) {
	r.in = in
}

// SetOutput sets a custom output writer (useful for testing).
func (r *REPL) SetOutput(out io.Writer) {
	r.out = out
}

// Start begins the interactive session. It reads commands until exit or
// EOF, or until ctx is done.
func (r *REPL) Start(ctx context.Context) {
	r.printBanner()
	r.printHelp()
	fmt.Fprintln(r.out)

	reader := bufio.NewReader(r.in)

	for ctx.Err() == nil {
		fmt.Fprint(r.out, ColorGreen()+"ddsolve> "+ColorReset())

		input, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			fmt.Fprintf(r.out, "%sRead error: %v%s\n", ColorRed(), err, ColorReset())
			continue
		}

		// A last line without a newline still runs before EOF ends the session.
		if line := strings.TrimSpace(input); line != "" && !r.processCommand(ctx, line) {
			return
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out, "\nGoodbye!")
			return
		}
	}
}

func (r *REPL) printBanner() {
	fmt.Fprintf(r.out, "\n%s╔══════════════════════════════════════════════════════════╗%s\n", ColorCyan(), ColorReset())
	fmt.Fprintf(r.out, "%s║%s     %sddsolve - Interactive Mode%s                           %s║%s\n",
		ColorCyan(), ColorReset(), ColorBold(), ColorReset(), ColorCyan(), ColorReset())
	fmt.Fprintf(r.out, "%s╚══════════════════════════════════════════════════════════╝%s\n", ColorCyan(), ColorReset())
	fmt.Fprintf(r.out, "System: %s%s%s\n\n", ColorCyan(), r.config.System, ColorReset())
}

func (r *REPL) printHelp() {
	fmt.Fprintf(r.out, "%sAvailable commands:%s\n", ColorBold(), ColorReset())
	fmt.Fprintf(r.out, "  %ssolve%s            - Solve the system with the current method\n", ColorYellow(), ColorReset())
	fmt.Fprintf(r.out, "  %srow <i>[,j...]%s   - Estimate x[i] (a bare number does the same)\n", ColorYellow(), ColorReset())
	fmt.Fprintf(r.out, "  %sfunctional <t>%s   - Estimate tᵀx, t of kind ones, random or unit\n", ColorYellow(), ColorReset())
	fmt.Fprintf(r.out, "  %smethod <name>%s    - Change method (%s)\n", ColorYellow(), ColorReset(), r.methodList())
	fmt.Fprintf(r.out, "  %stol <x>%s          - Set the tolerance, in (0, 1)\n", ColorYellow(), ColorReset())
	fmt.Fprintf(r.out, "  %slist%s             - List available methods\n", ColorYellow(), ColorReset())
	fmt.Fprintf(r.out, "  %sstatus%s           - Display current configuration\n", ColorYellow(), ColorReset())
	fmt.Fprintf(r.out, "  %shelp%s             - Display this help\n", ColorYellow(), ColorReset())
	fmt.Fprintf(r.out, "  %sexit%s / %squit%s     - Exit interactive mode\n", ColorYellow(), ColorReset(), ColorYellow(), ColorReset())
}

func (r *REPL) methodList() string {
	methods := r.factory.List()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.String()
	}
	return strings.Join(names, ", ")
}

// processCommand parses and executes a user command.
// Returns false if the REPL should exit.
func (r *REPL) processCommand(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return true
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "solve", "s":
		r.cmdSolve(ctx)
	case "row", "r":
		r.cmdRow(ctx, args)
	case "functional", "f":
		r.cmdFunctional(ctx, args)
	case "method", "m":
		r.cmdMethod(args)
	case "tol":
		r.cmdTol(args)
	case "list", "ls":
		r.cmdList()
	case "status", "st":
		r.cmdStatus()
	case "help", "h", "?":
		r.printHelp()
	case "exit", "quit", "q":
		fmt.Fprintf(r.out, "%sGoodbye!%s\n", ColorGreen(), ColorReset())
		return false
	default:
		if _, err := strconv.Atoi(strings.Split(cmd, ",")[0]); err == nil {
			r.cmdRow(ctx, []string{cmd})
		} else {
			fmt.Fprintf(r.out, "%sUnknown command: %s%s\n", ColorRed(), cmd, ColorReset())
			fmt.Fprintf(r.out, "Type %shelp%s to see available commands.\n", ColorYellow(), ColorReset())
		}
	}

	return true
}

// cmdSolve runs a full solve with the progress display.
func (r *REPL) cmdSolve(parent context.Context) {
	s, err := r.factory.Get(r.current)
	if err != nil {
		fmt.Fprintf(r.out, "%sMethod not found: %s%s\n", ColorRed(), r.current, ColorReset())
		return
	}

	ctx, cancel := context.WithTimeout(parent, r.config.Timeout)
	defer cancel()

	fmt.Fprintf(r.out, "Solving with %s%s%s...\n", ColorCyan(), s.Name(), ColorReset())

	progressChan := make(chan solver.ProgressUpdate, 10)
	subject := solver.NewProgressSubject()
	subject.Register(solver.NewChannelObserver(progressChan))

	var wg sync.WaitGroup
	wg.Add(1)
	go DisplayProgress(&wg, progressChan, 1, r.out)

	start := time.Now()
	res, err := s.SolveWithObservers(ctx, subject, 0, r.a, r.b, r.config.Options)
	duration := time.Since(start)
	close(progressChan)
	wg.Wait()

	if res == nil {
		fmt.Fprintf(r.out, "%sError: %v%s\n", ColorRed(), err, ColorReset())
		return
	}
	fmt.Fprintf(r.out, "\n%sResult:%s (%s)\n", ColorBold(), ColorReset(), FormatExecutionDuration(duration))
	DisplayResult(res, false, false, r.out)
	if err != nil {
		fmt.Fprintf(r.out, "%sError: %v%s\n", ColorRed(), err, ColorReset())
	}
	fmt.Fprintln(r.out)
}

// cmdRow estimates one or several coordinates with the current method.
func (r *REPL) cmdRow(parent context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintf(r.out, "%sUsage: row <i>[,j...]%s\n", ColorRed(), ColorReset())
		return
	}
	var rows []int
	for _, field := range strings.Split(strings.Join(args, ","), ",") {
		if field == "" {
			continue
		}
		row, err := strconv.Atoi(field)
		if err != nil || row < 0 || row >= r.a.Rows() {
			fmt.Fprintf(r.out, "%sInvalid row: %s (the system has %d rows)%s\n", ColorRed(), field, r.a.Rows(), ColorReset())
			return
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		fmt.Fprintf(r.out, "%sUsage: row <i>[,j...]%s\n", ColorRed(), ColorReset())
		return
	}

	ctx, cancel := context.WithTimeout(parent, r.config.Timeout)
	defer cancel()
	ests, err := r.svc.EstimateEntries(ctx, r.a, r.b, rows, r.current, r.config.Options)
	if err != nil {
		fmt.Fprintf(r.out, "%sError: %v%s\n", ColorRed(), err, ColorReset())
		return
	}
	for _, est := range ests {
		DisplayEstimate(est, r.out)
	}
}

// cmdFunctional estimates tᵀx by backward push.
func (r *REPL) cmdFunctional(parent context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintf(r.out, "%sUsage: functional <ones|random|unit>%s\n", ColorRed(), ColorReset())
		return
	}
	t, err := problem.Vector(strings.ToLower(args[0]), r.a.Cols(), r.config.Seed+1)
	if err != nil {
		fmt.Fprintf(r.out, "%sInvalid functional: %v%s\n", ColorRed(), err, ColorReset())
		return
	}

	ctx, cancel := context.WithTimeout(parent, r.config.Timeout)
	defer cancel()
	est, err := r.svc.EstimateFunctional(ctx, r.a, r.b, t, r.config.Options)
	if err != nil {
		fmt.Fprintf(r.out, "%sError: %v%s\n", ColorRed(), err, ColorReset())
		return
	}
	DisplayEstimate(est, r.out)
}

func (r *REPL) cmdMethod(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(r.out, "%sUsage: method <name>%s\n", ColorRed(), ColorReset())
		fmt.Fprintf(r.out, "Available methods: %s\n", r.methodList())
		return
	}

	m, err := solver.ParseMethod(args[0])
	if err != nil {
		fmt.Fprintf(r.out, "%sUnknown method: %s%s\n", ColorRed(), args[0], ColorReset())
		fmt.Fprintf(r.out, "Available methods: %s\n", r.methodList())
		return
	}
	s, err := r.factory.Get(m)
	if err != nil {
		fmt.Fprintf(r.out, "%sMethod not registered: %s%s\n", ColorRed(), m, ColorReset())
		return
	}

	r.current = m
	fmt.Fprintf(r.out, "Method changed to: %s%s%s\n", ColorGreen(), s.Name(), ColorReset())
}

func (r *REPL) cmdTol(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(r.out, "%sUsage: tol <x>%s\n", ColorRed(), ColorReset())
		return
	}
	tol, err := strconv.ParseFloat(args[0], 64)
	if err != nil || math.IsNaN(tol) || tol <= 0 || tol >= 1 {
		fmt.Fprintf(r.out, "%sInvalid tolerance: %s (must be in (0, 1))%s\n", ColorRed(), args[0], ColorReset())
		return
	}
	r.config.Options.Tolerance = tol
	fmt.Fprintf(r.out, "Tolerance set to: %s%g%s\n", ColorGreen(), tol, ColorReset())
}

func (r *REPL) cmdList() {
	fmt.Fprintf(r.out, "\n%sAvailable methods:%s\n", ColorBold(), ColorReset())
	for _, m := range r.factory.List() {
		s, err := r.factory.Get(m)
		if err != nil {
			continue
		}
		marker := "  "
		if m == r.current {
			marker = ColorGreen() + "► " + ColorReset()
		}
		fmt.Fprintf(r.out, "%s%s%-20s%s - %s\n", marker, ColorYellow(), m, ColorReset(), s.Name())
	}
	fmt.Fprintln(r.out)
}

func (r *REPL) cmdStatus() {
	tol := r.config.Options.Tolerance
	if tol == 0 {
		tol = solver.DefaultTolerance
	}
	fmt.Fprintf(r.out, "\n%sCurrent configuration:%s\n", ColorBold(), ColorReset())
	fmt.Fprintf(r.out, "  System:      %s%s%s\n", ColorCyan(), r.config.System, ColorReset())
	fmt.Fprintf(r.out, "  Method:      %s%s%s\n", ColorCyan(), r.current, ColorReset())
	fmt.Fprintf(r.out, "  Tolerance:   %s%g%s\n", ColorCyan(), tol, ColorReset())
	fmt.Fprintf(r.out, "  Timeout:     %s%s%s\n", ColorCyan(), r.config.Timeout, ColorReset())
	fmt.Fprintf(r.out, "  Workers:     %s%d%s\n", ColorCyan(), r.config.Options.Workers, ColorReset())
	fmt.Fprintln(r.out)
}
