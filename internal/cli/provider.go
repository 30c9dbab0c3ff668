package cli

import apperrors "github.com/agbru/ddsolve/internal/errors"

// Ensure CLIColorProvider implements apperrors.ColorProvider at compile time.
var _ apperrors.ColorProvider = CLIColorProvider{}

// CLIColorProvider implements apperrors.ColorProvider using CLI theme
// functions, so error reports printed by apperrors.HandleSolveError follow
// the current theme (and --no-color).
type CLIColorProvider struct{}

// Yellow returns the warning color code from the current CLI theme.
func (c CLIColorProvider) Yellow() string { return ColorYellow() }

// Red returns the error color code from the current CLI theme.
func (c CLIColorProvider) Red() string { return ColorRed() }

// Reset returns the reset color code from the current CLI theme.
func (c CLIColorProvider) Reset() string { return ColorReset() }
