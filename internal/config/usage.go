package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/agbru/ddsolve/internal/ui"
)

// setCustomUsage configures the flag set with a colored usage function.
func setCustomUsage(fs *flag.FlagSet) {
	fs.Usage = func() {
		// Respect NO_COLOR even before app initialization
		t := ui.GetCurrentTheme()
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			t = ui.NoColorTheme
		}

		out := fs.Output()

		// Header
		fmt.Fprintf(out, "\n%sddsolve%s\n", t.Bold, t.Reset)
		fmt.Fprintf(out, "Solvers for sparse diagonally dominant linear systems.\n\n")
		fmt.Fprintf(out, "%sUsage:%s\n  %s [flags]\n\n%sFlags:%s\n", t.Warning, t.Reset, fs.Name(), t.Warning, t.Reset)

		fs.VisitAll(func(f *flag.Flag) {
			name, usage := flag.UnquoteUsage(f)
			flagSig := fmt.Sprintf("-%s", f.Name)
			if len(name) > 0 {
				flagSig += " " + name
			}

			// Print formatted flag
			fmt.Fprintf(out, "  %s%-25s%s %s", t.Primary, flagSig, t.Reset, usage)

			if f.DefValue != "" && f.DefValue != "0" && f.DefValue != "false" && f.DefValue != "-1" {
				fmt.Fprintf(out, " %s(default %s)%s", t.Secondary, f.DefValue, t.Reset)
			}
			fmt.Fprintln(out)
		})
		fmt.Fprintf(out, "\n%sExamples:%s\n", t.Warning, t.Reset)
		for _, ex := range usageExamples {
			fmt.Fprintf(out, "  %s %s\n", fs.Name(), ex)
		}
		fmt.Fprintf(out, "\nEvery flag can also be set through %s<NAME> (e.g. %sTOL=1e-8).\n\n", EnvPrefix, EnvPrefix)
	}
}

var usageExamples = []string{
	"-problem laplacian2d -n 40000 -method cg",
	"-problem random -n 100000 -method backward-push -row 17 -tol 1e-4",
	"-method hybrid -stream -d",
	"-problem zero-diagonal -n 8 -method gauss-seidel -auto-fix",
}
