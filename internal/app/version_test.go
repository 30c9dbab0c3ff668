package app

import (
	"bytes"
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/agbru/ddsolve/internal/parallel"
)

func TestHasVersionFlag(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"Empty args", []string{}, false},
		{"No version flag", []string{"-n", "100"}, false},
		{"Long version flag", []string{"--version"}, true},
		{"Short version flag", []string{"-V"}, true},
		{"Version flag with dash", []string{"-version"}, true},
		{"Version flag in middle", []string{"-n", "100", "--version", "-method", "cg"}, true},
		{"Version flag after invalid flag", []string{"-tol", "7", "-V"}, true},
		{"Similar but not version", []string{"--verbose"}, false},
		{"Value named version", []string{"-problem", "version"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HasVersionFlag(tc.args); got != tc.expected {
				t.Errorf("HasVersionFlag(%v) = %v, want %v", tc.args, got, tc.expected)
			}
		})
	}
}

func TestPrintVersion(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	PrintVersion(&buf)

	output := buf.String()
	for _, want := range []string{
		"ddsolve " + Version,
		"Commit:",
		"Built:",
		"Go version: " + runtime.Version(),
		"OS/Arch:    " + runtime.GOOS + "/" + runtime.GOARCH,
		"SIMD " + parallel.DetectCPU().SIMDName,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("PrintVersion output should contain %q:\n%s", want, output)
		}
	}
}

func TestGetVersionInfo(t *testing.T) {
	t.Parallel()
	info := GetVersionInfo()

	if info.Version != Version || info.Commit != Commit || info.BuildDate != BuildDate {
		t.Errorf("build fields not copied: %+v", info)
	}
	if info.GoVersion != runtime.Version() || info.OS != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("runtime fields not filled: %+v", info)
	}
	if info.NumCPU != runtime.NumCPU() {
		t.Errorf("NumCPU = %d, want %d", info.NumCPU, runtime.NumCPU())
	}

	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"build_date"`) || !strings.Contains(string(data), `"simd"`) {
		t.Errorf("unexpected JSON %s", data)
	}
}
