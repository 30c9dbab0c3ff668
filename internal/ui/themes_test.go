package ui

import (
	"os"
	"testing"
)

// The theme is process-wide, so these tests do not run in parallel.

func withTheme(t *testing.T, th Theme) {
	t.Helper()
	orig := GetCurrentTheme()
	SetCurrentTheme(th)
	t.Cleanup(func() { SetCurrentTheme(orig) })
}

func TestInitTheme(t *testing.T) {
	tests := []struct {
		name    string
		noColor bool
		env     map[string]string
		want    string
	}{
		{"Flag disables colour", true, map[string]string{"TERM": "xterm-256color"}, "none"},
		{"Default is dark", false, map[string]string{"TERM": "xterm-256color"}, "dark"},
		{"NO_COLOR set", false, map[string]string{"NO_COLOR": "1", "TERM": "xterm"}, "none"},
		{"NO_COLOR empty still counts", false, map[string]string{"NO_COLOR": "", "TERM": "xterm"}, "none"},
		{"Dumb terminal", false, map[string]string{"TERM": "dumb"}, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withTheme(t, DarkTheme)
			if _, ok := tt.env["NO_COLOR"]; !ok {
				// Setenv registers the restore; Unsetenv then removes it.
				t.Setenv("NO_COLOR", "")
				os.Unsetenv("NO_COLOR")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			InitTheme(tt.noColor)
			if got := GetCurrentTheme().Name; got != tt.want {
				t.Errorf("InitTheme(%v) with %v: theme %q, want %q", tt.noColor, tt.env, got, tt.want)
			}
		})
	}
}

func TestColorFunctionsFollowTheme(t *testing.T) {
	withTheme(t, DarkTheme)
	pairs := map[string][2]string{
		"reset":     {ColorReset(), DarkTheme.Reset},
		"red":       {ColorRed(), DarkTheme.Error},
		"green":     {ColorGreen(), DarkTheme.Success},
		"yellow":    {ColorYellow(), DarkTheme.Warning},
		"blue":      {ColorBlue(), DarkTheme.Primary},
		"magenta":   {ColorMagenta(), DarkTheme.Info},
		"cyan":      {ColorCyan(), DarkTheme.Secondary},
		"bold":      {ColorBold(), DarkTheme.Bold},
		"underline": {ColorUnderline(), DarkTheme.Underline},
	}
	for name, p := range pairs {
		if p[0] != p[1] {
			t.Errorf("%s = %q, want %q", name, p[0], p[1])
		}
	}

	SetCurrentTheme(NoColorTheme)
	for _, got := range []string{ColorReset(), ColorRed(), ColorGreen(), ColorBold(), ColorUnderline()} {
		if got != "" {
			t.Errorf("NoColorTheme produced %q", got)
		}
	}
}

func TestStatusColor(t *testing.T) {
	withTheme(t, DarkTheme)
	tests := []struct {
		status string
		want   string
	}{
		{"converged", DarkTheme.Success},
		{"max-iterations", DarkTheme.Warning},
		{"stagnated", DarkTheme.Warning},
		{"canceled", DarkTheme.Warning},
		{"diverged", DarkTheme.Error},
		{"failed", DarkTheme.Error},
		{"unknown", DarkTheme.Error},
	}
	for _, tt := range tests {
		if got := StatusColor(tt.status); got != tt.want {
			t.Errorf("StatusColor(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestPaint(t *testing.T) {
	withTheme(t, DarkTheme)
	if got := Paint(ColorGreen(), "ok"); got != DarkTheme.Success+"ok"+DarkTheme.Reset {
		t.Errorf("Paint = %q", got)
	}

	SetCurrentTheme(NoColorTheme)
	if got := Paint(ColorGreen(), "ok"); got != "ok" {
		t.Errorf("Paint without colour = %q, want plain text", got)
	}
}
