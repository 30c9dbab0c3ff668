package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/agbru/ddsolve/internal/solver"
)

func TestGenerateCompletion(t *testing.T) {
	t.Parallel()
	methods := solver.MethodNames()

	testCases := []struct {
		name     string
		shell    string
		contains []string
	}{
		{
			name:  "Bash completion",
			shell: "bash",
			contains: []string{
				"Bash completion script",
				"_ddsolve_completions",
				"jacobi gauss-seidel conjugate-gradient neumann forward-push backward-push hybrid all",
				"-push-budget",
				"compgen -f",
			},
		},
		{
			name:  "Zsh completion",
			shell: "zsh",
			contains: []string{
				"#compdef ddsolve",
				"'-method[Solver method]:method:(jacobi",
				"'(-q -quiet)'{-q,-quiet}'[Quiet mode for scripts]'",
				":calibration-profile:_files",
			},
		},
		{
			name:  "Fish completion",
			shell: "fish",
			contains: []string{
				"Fish completion script",
				"complete -c ddsolve -o problem -d 'Matrix generator' -xa 'tridiagonal laplacian2d",
				"complete -c ddsolve -o stream -d 'Print every iteration'\n",
			},
		},
		{
			name:  "PowerShell completion",
			shell: "powershell",
			contains: []string{
				"Register-ArgumentCompleter -CommandName 'ddsolve'",
				"'jacobi', 'gauss-seidel'",
				"'-rhs' {",
			},
		},
		{
			name:     "PowerShell alias",
			shell:    "ps",
			contains: []string{"PowerShell completion script"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			if err := GenerateCompletion(&buf, tc.shell, methods); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			out := buf.String()
			for _, want := range tc.contains {
				if !strings.Contains(out, want) {
					t.Errorf("%s script is missing %q", tc.shell, want)
				}
			}
		})
	}
}

func TestGenerateCompletionUnsupportedShell(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := GenerateCompletion(&buf, "tcsh", nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported shell") {
		t.Fatalf("expected unsupported shell error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written for an unsupported shell")
	}
}

func TestCompletionCoversEveryFlag(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := GenerateCompletion(&buf, "bash", nil); err != nil {
		t.Fatal(err)
	}
	for _, flag := range []string{"-problem", "-tol", "-max-iter", "-auto-fix", "-row", "-functional", "-metrics", "-log-level", "-completion"} {
		if !strings.Contains(buf.String(), flag) {
			t.Errorf("bash completion is missing %s", flag)
		}
	}
}
