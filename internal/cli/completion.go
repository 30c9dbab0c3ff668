package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/agbru/ddsolve/internal/problem"
)

// completionFlag describes one flag for the completion scripts. Values, when
// set, are offered after the flag; File requests path completion.
type completionFlag struct {
	Name   string
	Short  string
	Desc   string
	Values []string
	File   bool
	Arg    bool
}

func completionFlags(methods []string) []completionFlag {
	kinds := make([]string, 0, len(problem.Kinds()))
	for _, k := range problem.Kinds() {
		kinds = append(kinds, string(k))
	}
	rhs := []string{problem.RHSOnes, problem.RHSRandom, problem.RHSUnit}
	return []completionFlag{
		{Name: "help", Short: "h", Desc: "Show help message"},
		{Name: "version", Short: "V", Desc: "Show version information"},
		{Name: "problem", Desc: "Matrix generator", Values: kinds, Arg: true},
		{Name: "n", Desc: "System dimension", Arg: true},
		{Name: "degree", Desc: "Off-diagonal entries per row", Arg: true},
		{Name: "margin", Desc: "Dominance margin", Values: []string{"0.1", "0.5", "1", "2"}, Arg: true},
		{Name: "seed", Desc: "Generator seed", Arg: true},
		{Name: "rhs", Desc: "Right-hand side", Values: rhs, Arg: true},
		{Name: "method", Desc: "Solver method", Values: append(append([]string(nil), methods...), "all"), Arg: true},
		{Name: "tol", Desc: "Target relative residual", Values: []string{"1e-4", "1e-6", "1e-8", "1e-10"}, Arg: true},
		{Name: "max-iter", Desc: "Maximum iterations", Arg: true},
		{Name: "auto-fix", Desc: "Strengthen non-dominant rows"},
		{Name: "timeout", Desc: "Maximum execution time", Values: []string{"30s", "1m", "5m", "30m"}, Arg: true},
		{Name: "workers", Desc: "Parallel kernel workers", Arg: true},
		{Name: "parallel-threshold", Desc: "Nonzeros before kernels run in parallel", Values: []string{"10000", "50000", "200000"}, Arg: true},
		{Name: "push-budget", Desc: "Maximum push operations", Arg: true},
		{Name: "row", Desc: "Estimate coordinates (comma-separated)", Arg: true},
		{Name: "functional", Desc: "Estimate a linear functional", Values: rhs, Arg: true},
		{Name: "stream", Desc: "Print every iteration"},
		{Name: "output", Short: "o", Desc: "Output file path", File: true, Arg: true},
		{Name: "json", Desc: "Output in JSON format"},
		{Name: "quiet", Short: "q", Desc: "Quiet mode for scripts"},
		{Name: "v", Desc: "Display the full solution"},
		{Name: "details", Short: "d", Desc: "Show residual history and certificate"},
		{Name: "no-color", Desc: "Disable colored output"},
		{Name: "metrics", Desc: "Dump Prometheus metrics"},
		{Name: "log-level", Desc: "Log level", Values: []string{"debug", "info", "warn", "error", "disabled"}, Arg: true},
		{Name: "calibrate", Desc: "Run calibration mode"},
		{Name: "auto-calibrate", Desc: "Quick calibration at startup"},
		{Name: "calibration-profile", Desc: "Calibration profile file", File: true, Arg: true},
		{Name: "completion", Desc: "Generate completion script", Values: []string{"bash", "zsh", "fish", "powershell"}, Arg: true},
		{Name: "interactive", Desc: "Start an interactive session"},
	}
}

// GenerateCompletion generates a shell completion script for the specified shell.
//
// Parameters:
//   - out: The writer to output the completion script.
//   - shell: The shell type ("bash", "zsh", "fish", "powershell").
//   - methods: List of available method names.
//
// Returns:
//   - error: An error if the shell is not supported.
func GenerateCompletion(out io.Writer, shell string, methods []string) error {
	flags := completionFlags(methods)
	var script string
	switch shell {
	case "bash":
		script = bashCompletion(flags)
	case "zsh":
		script = zshCompletion(flags)
	case "fish":
		script = fishCompletion(flags)
	case "powershell", "ps":
		script = powerShellCompletion(flags)
	default:
		return fmt.Errorf("unsupported shell: %s (accepted values: bash, zsh, fish, powershell)", shell)
	}
	_, err := io.WriteString(out, script)
	return err
}

func bashCompletion(flags []completionFlag) string {
	var opts []string
	var cases strings.Builder
	for _, f := range flags {
		opts = append(opts, "-"+f.Name)
		if f.Short != "" {
			opts = append(opts, "-"+f.Short)
		}
		switch {
		case len(f.Values) > 0:
			fmt.Fprintf(&cases, "        %s)\n            COMPREPLY=( $(compgen -W \"%s\" -- \"${cur}\") )\n            return 0\n            ;;\n",
				f.Name, strings.Join(f.Values, " "))
		case f.File:
			fmt.Fprintf(&cases, "        %s)\n            COMPREPLY=( $(compgen -f -- \"${cur}\") )\n            return 0\n            ;;\n", f.Name)
		}
	}
	return fmt.Sprintf(`# Bash completion script for ddsolve
# Add this to your ~/.bashrc or ~/.bash_completion

_ddsolve_completions() {
    local cur prev opts
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"
    opts="%s"
    prev="${prev#-}"
    prev="${prev#-}"

    case "${prev}" in
%s    esac

    if [[ "${cur}" == -* ]]; then
        COMPREPLY=( $(compgen -W "${opts}" -- "${cur}") )
        return 0
    fi
}

complete -F _ddsolve_completions ddsolve
`, strings.Join(opts, " "), cases.String())
}

func zshCompletion(flags []completionFlag) string {
	var args strings.Builder
	for i, f := range flags {
		spec := fmt.Sprintf("'-%s[%s]", f.Name, f.Desc)
		if f.Short != "" {
			spec = fmt.Sprintf("'(-%s -%s)'{-%s,-%s}'[%s]", f.Short, f.Name, f.Short, f.Name, f.Desc)
		}
		switch {
		case len(f.Values) > 0:
			spec += fmt.Sprintf(":%s:(%s)", f.Name, strings.Join(f.Values, " "))
		case f.File:
			spec += fmt.Sprintf(":%s:_files", f.Name)
		case f.Arg:
			spec += fmt.Sprintf(":%s:", f.Name)
		}
		spec += "'"
		if i < len(flags)-1 {
			spec += " \\"
		}
		fmt.Fprintf(&args, "        %s\n", spec)
	}
	return fmt.Sprintf(`#compdef ddsolve

# Zsh completion script for ddsolve
# Add this to your ~/.zshrc or place in $fpath

_ddsolve() {
    _arguments -s \
%s}

_ddsolve "$@"
`, args.String())
}

func fishCompletion(flags []completionFlag) string {
	var b strings.Builder
	b.WriteString("# Fish completion script for ddsolve\n")
	b.WriteString("# Add this to ~/.config/fish/completions/ddsolve.fish\n\n")
	b.WriteString("complete -c ddsolve -f\n")
	for _, f := range flags {
		line := "complete -c ddsolve -o " + f.Name
		if f.Short != "" {
			line += " -o " + f.Short
		}
		line += fmt.Sprintf(" -d '%s'", f.Desc)
		switch {
		case len(f.Values) > 0:
			line += fmt.Sprintf(" -xa '%s'", strings.Join(f.Values, " "))
		case f.File:
			line += " -rF"
		case f.Arg:
			line += " -x"
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func powerShellCompletion(flags []completionFlag) string {
	var opts, cases strings.Builder
	for _, f := range flags {
		fmt.Fprintf(&opts, "        @{Name = '-%s'; Description = '%s' }\n", f.Name, f.Desc)
		if f.Short != "" {
			fmt.Fprintf(&opts, "        @{Name = '-%s'; Description = '%s' }\n", f.Short, f.Desc)
		}
		if len(f.Values) > 0 {
			quoted := make([]string, len(f.Values))
			for i, v := range f.Values {
				quoted[i] = "'" + v + "'"
			}
			fmt.Fprintf(&cases, `        '-%s' {
            @(%s) | Where-Object { $_ -like "$wordToComplete*" } | ForEach-Object {
                [System.Management.Automation.CompletionResult]::new($_, $_, 'ParameterValue', $_)
            }
            return
        }
`, f.Name, strings.Join(quoted, ", "))
		}
	}
	return fmt.Sprintf(`# PowerShell completion script for ddsolve
# Add this to your $PROFILE

Register-ArgumentCompleter -CommandName 'ddsolve' -Native -ScriptBlock {
    param($wordToComplete, $commandAst, $cursorPosition)

    $options = @(
%s    )

    $elements = $commandAst.CommandElements
    $prevElement = if ($elements.Count -gt 2) { $elements[-2].ToString() } else { '' }

    switch ($prevElement) {
%s    }

    $options | Where-Object { $_.Name -like "$wordToComplete*" } | ForEach-Object {
        [System.Management.Automation.CompletionResult]::new($_.Name, $_.Name, 'ParameterName', $_.Description)
    }
}
`, opts.String(), cases.String())
}
