package ui

// ColorReset returns the reset sequence of the active theme.
func ColorReset() string { return GetCurrentTheme().Reset }

// ColorRed returns the error colour.
func ColorRed() string { return GetCurrentTheme().Error }

// ColorGreen returns the success colour.
func ColorGreen() string { return GetCurrentTheme().Success }

// ColorYellow returns the warning colour.
func ColorYellow() string { return GetCurrentTheme().Warning }

// ColorBlue returns the primary colour.
func ColorBlue() string { return GetCurrentTheme().Primary }

// ColorMagenta returns the info colour.
func ColorMagenta() string { return GetCurrentTheme().Info }

// ColorCyan returns the secondary colour.
func ColorCyan() string { return GetCurrentTheme().Secondary }

// ColorBold returns the bold sequence.
func ColorBold() string { return GetCurrentTheme().Bold }

// ColorUnderline returns the underline sequence.
func ColorUnderline() string { return GetCurrentTheme().Underline }

// StatusColor returns the colour for a solve status as printed by the
// solver: green when converged, yellow when the run stopped early with a
// usable iterate, red otherwise.
func StatusColor(status string) string {
	t := GetCurrentTheme()
	switch status {
	case "converged":
		return t.Success
	case "max-iterations", "stagnated", "canceled":
		return t.Warning
	default:
		return t.Error
	}
}

// Paint wraps s in the given colour and a reset. An empty colour returns s
// unchanged so plain output carries no stray reset sequences.
func Paint(color, s string) string {
	if color == "" {
		return s
	}
	return color + s + GetCurrentTheme().Reset
}
