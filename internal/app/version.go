// Package app wires the ddsolve command line: configuration, problem
// generation, dispatch to the solve modes, lifecycle and version reporting.
package app

import (
	"fmt"
	"io"
	"runtime"

	"github.com/agbru/ddsolve/internal/parallel"
)

// Build-time variables set via -ldflags:
//
//	go build -ldflags="-X github.com/agbru/ddsolve/internal/app.Version=v0.3.0 -X github.com/agbru/ddsolve/internal/app.Commit=abc123 -X github.com/agbru/ddsolve/internal/app.BuildDate=2026-01-01T00:00:00Z" ./cmd/ddsolve
var (
	// Version is the semantic version of the application.
	Version = "dev"
	// Commit is the short Git commit hash.
	Commit = "unknown"
	// BuildDate is the ISO 8601 timestamp of the build.
	BuildDate = "unknown"
)

// HasVersionFlag reports whether any argument asks for the version, so
// that --version works in any position (e.g. "ddsolve -method cg --version")
// and before the remaining flags are validated.
func HasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--version" || arg == "-version" || arg == "-V" {
			return true
		}
	}
	return false
}

// PrintVersion writes the build identification and the kernel-relevant
// host details.
func PrintVersion(out io.Writer) {
	info := GetVersionInfo()
	fmt.Fprintf(out, "ddsolve %s\n", info.Version)
	fmt.Fprintf(out, "  Commit:     %s\n", info.Commit)
	fmt.Fprintf(out, "  Built:      %s\n", info.BuildDate)
	fmt.Fprintf(out, "  Go version: %s\n", info.GoVersion)
	fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", info.OS, info.Arch)
	fmt.Fprintf(out, "  CPUs:       %d (SIMD %s)\n", info.NumCPU, info.SIMD)
}

// VersionData holds the build and runtime identification of the binary.
type VersionData struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	NumCPU    int    `json:"num_cpu"`
	SIMD      string `json:"simd"`
}

// GetVersionInfo returns the current version information.
func GetVersionInfo() VersionData {
	cpu := parallel.DetectCPU()
	return VersionData{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		NumCPU:    cpu.NumCPU,
		SIMD:      cpu.SIMDName,
	}
}
