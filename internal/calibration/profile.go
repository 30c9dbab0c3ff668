// This file implements calibration profile persistence.
package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/agbru/ddsolve/internal/parallel"
)

// CalibrationProfile stores the results of a calibration run.
// It captures both the measured threshold and the hardware context
// to allow validation of cached results.
type CalibrationProfile struct {
	// Hardware identification
	CPUModel  string `json:"cpu_model"`
	NumCPU    int    `json:"num_cpu"`
	GOARCH    string `json:"goarch"`
	GOOS      string `json:"goos"`
	GoVersion string `json:"go_version"`
	WordSize  int    `json:"word_size"` // 32 or 64
	SIMD      string `json:"simd"`

	// Calibrated kernel settings
	OptimalParallelThreshold int     `json:"optimal_parallel_threshold"`
	OptimalWorkers           int     `json:"optimal_workers"`
	Confidence               float64 `json:"confidence"`

	// Measurements behind the threshold, smallest matrix first.
	Measurements []Measurement `json:"measurements,omitempty"`

	// Calibration metadata
	CalibratedAt    time.Time `json:"calibrated_at"`
	CalibrationTime string    `json:"calibration_time"`

	// Version for forward compatibility
	ProfileVersion int `json:"profile_version"`
}

// Measurement is the persisted form of a SizeTiming.
type Measurement struct {
	N            int   `json:"n"`
	NNZ          int   `json:"nnz"`
	SequentialNS int64 `json:"sequential_ns"`
	ParallelNS   int64 `json:"parallel_ns"`
}

const (
	// CurrentProfileVersion is the current version of the profile format.
	// Increment this when making breaking changes to the profile structure.
	CurrentProfileVersion = 3

	// DefaultProfileFileName is the default name for the calibration profile file.
	DefaultProfileFileName = ".ddsolve_calibration.json"
)

// GetDefaultProfilePath returns the default path for the calibration profile.
// It uses the user's home directory if available, otherwise the current directory.
func GetDefaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultProfileFileName
	}
	return filepath.Join(home, DefaultProfileFileName)
}

// resolveProfilePath maps the empty path to the default one.
func resolveProfilePath(path string) string {
	if path == "" {
		return GetDefaultProfilePath()
	}
	return path
}

// NewProfile creates a new CalibrationProfile with current hardware info.
func NewProfile() *CalibrationProfile {
	info := parallel.DetectCPU()
	return &CalibrationProfile{
		CPUModel:       getCPUModel(info),
		NumCPU:         info.NumCPU,
		GOARCH:         runtime.GOARCH,
		GOOS:           runtime.GOOS,
		GoVersion:      runtime.Version(),
		WordSize:       32 << (^uint(0) >> 63),
		SIMD:           info.SIMDName,
		CalibratedAt:   time.Now(),
		ProfileVersion: CurrentProfileVersion,
	}
}

func getCPUModel(info parallel.CPUInfo) string {
	return fmt.Sprintf("%s-%d-cores-%s", info.Arch, info.NumCPU, info.SIMDName)
}

// SetTimings stores the measurements of a calibration run.
func (p *CalibrationProfile) SetTimings(timings []SizeTiming) {
	p.Measurements = p.Measurements[:0]
	for _, t := range timings {
		if t.Err != nil {
			continue
		}
		p.Measurements = append(p.Measurements, Measurement{
			N:            t.N,
			NNZ:          t.NNZ,
			SequentialNS: t.Sequential.Nanoseconds(),
			ParallelNS:   t.Parallel.Nanoseconds(),
		})
	}
}

// LoadProfile loads a calibration profile from the specified path.
// Returns nil and an error if the file doesn't exist or can't be parsed.
func LoadProfile(path string) (*CalibrationProfile, error) {
	data, err := os.ReadFile(resolveProfilePath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile CalibrationProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	return &profile, nil
}

// SaveProfile saves the calibration profile to the specified path.
// If path is empty, uses the default profile path.
func (p *CalibrationProfile) SaveProfile(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := os.WriteFile(resolveProfilePath(path), data, 0600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}

	return nil
}

// IsValid checks if the profile is valid for the current hardware:
// same format version, CPU count, architecture and word size, and a
// threshold within bounds.
func (p *CalibrationProfile) IsValid() bool {
	if p == nil {
		return false
	}
	if p.ProfileVersion != CurrentProfileVersion {
		return false
	}
	if p.NumCPU != runtime.NumCPU() || p.GOARCH != runtime.GOARCH {
		return false
	}
	if p.WordSize != 32<<(^uint(0)>>63) {
		return false
	}
	return p.OptimalParallelThreshold >= MinParallelThreshold &&
		p.OptimalParallelThreshold <= MaxParallelThreshold
}

// IsStale checks if the profile is older than the given duration.
// This can be used to trigger re-calibration after a certain period.
func (p *CalibrationProfile) IsStale(maxAge time.Duration) bool {
	if p == nil {
		return true
	}
	return time.Since(p.CalibratedAt) > maxAge
}

// String returns a human-readable summary of the profile.
func (p *CalibrationProfile) String() string {
	if p == nil {
		return "<nil profile>"
	}
	return fmt.Sprintf(
		"CalibrationProfile{CPU: %s, Parallel: %s, Workers: %d, Measurements: %d, Calibrated: %s}",
		p.CPUModel,
		thresholdLabel(p.OptimalParallelThreshold),
		p.OptimalWorkers,
		len(p.Measurements),
		p.CalibratedAt.Format(time.RFC3339),
	)
}

// LoadOrCreateProfile loads an existing profile or creates a new one if not found.
// If the existing profile is invalid for the current hardware, returns a new profile.
func LoadOrCreateProfile(path string) (*CalibrationProfile, bool) {
	profile, err := LoadProfile(path)
	if err != nil || !profile.IsValid() {
		return NewProfile(), false
	}
	return profile, true
}

// ProfileExists checks if a calibration profile exists at the given path.
func ProfileExists(path string) bool {
	_, err := os.Stat(resolveProfilePath(path))
	return err == nil
}
