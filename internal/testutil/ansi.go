// Package testutil holds helpers shared by the CLI and application tests.
package testutil

import "regexp"

// csiPattern matches the SGR and cursor sequences emitted by the theme and
// the progress spinner.
var csiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// StripAnsiCodes removes terminal escape sequences so rendered reports can be
// compared as plain text.
func StripAnsiCodes(s string) string {
	return csiPattern.ReplaceAllString(s, "")
}
