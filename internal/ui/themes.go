// Package ui holds the terminal palette shared by the report printers, the
// usage text and the comparison table.
package ui

import (
	"os"
	"sync"
)

// Theme maps report roles to ANSI escape sequences. An empty field prints
// nothing, which is how NoColorTheme disables styling.
type Theme struct {
	Name string
	// Primary marks method names and headings.
	Primary string
	// Secondary marks numbers: iterations, residuals, bounds.
	Secondary string
	Success   string
	Warning   string
	Error     string
	Info      string
	Bold      string
	Underline string
	Reset     string
}

var (
	// DarkTheme is the default 256-colour palette.
	DarkTheme = Theme{
		Name:      "dark",
		Primary:   "\033[38;5;39m",
		Secondary: "\033[38;5;245m",
		Success:   "\033[38;5;82m",
		Warning:   "\033[38;5;220m",
		Error:     "\033[38;5;196m",
		Info:      "\033[38;5;141m",
		Bold:      "\033[1m",
		Underline: "\033[4m",
		Reset:     "\033[0m",
	}

	// NoColorTheme is selected by -no-color, NO_COLOR or TERM=dumb.
	NoColorTheme = Theme{Name: "none"}

	themeMu      sync.RWMutex
	currentTheme = DarkTheme
)

// GetCurrentTheme returns the active theme.
func GetCurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

// SetCurrentTheme replaces the active theme. Tests use it to restore state.
func SetCurrentTheme(t Theme) {
	themeMu.Lock()
	defer themeMu.Unlock()
	currentTheme = t
}

// InitTheme picks the theme for a run. Colour is disabled when noColor is
// set, when NO_COLOR is present in the environment (any value, see
// https://no-color.org/) or when the terminal reports itself as dumb.
func InitTheme(noColor bool) {
	t := DarkTheme
	if noColor || colorDisabledByEnv() {
		t = NoColorTheme
	}
	SetCurrentTheme(t)
}

func colorDisabledByEnv() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	return os.Getenv("TERM") == "dumb"
}
