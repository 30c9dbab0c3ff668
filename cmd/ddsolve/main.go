// Command ddsolve generates sparse diagonally dominant systems and solves
// them with the iterative, Neumann series, push and hybrid methods.
package main

import (
	"context"
	"os"

	"github.com/agbru/ddsolve/internal/app"
	apperrors "github.com/agbru/ddsolve/internal/errors"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	if app.HasVersionFlag(args[1:]) {
		app.PrintVersion(stdout)
		return apperrors.ExitSuccess
	}

	application, err := app.New(args, stderr)
	if err != nil {
		if app.IsHelpError(err) {
			return apperrors.ExitSuccess
		}
		return apperrors.ExitErrorConfig
	}
	return application.Run(context.Background(), stdout)
}
