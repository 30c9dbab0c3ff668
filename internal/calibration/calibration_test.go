package calibration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/agbru/ddsolve/internal/config"
	apperrors "github.com/agbru/ddsolve/internal/errors"
	"github.com/agbru/ddsolve/internal/solver"
	"github.com/agbru/ddsolve/internal/solver/mocks"
)

// stubFactory serves a fixed set of solvers.
type stubFactory map[solver.Method]solver.Solver

func (f stubFactory) Create(m solver.Method) (solver.Solver, error) { return f.Get(m) }

func (f stubFactory) Get(m solver.Method) (solver.Solver, error) {
	if s, ok := f[m]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("unknown method: %v", m)
}

func (f stubFactory) List() []solver.Method {
	out := make([]solver.Method, 0, len(f))
	for _, m := range solver.Methods() {
		if _, ok := f[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (f stubFactory) GetAll() map[solver.Method]solver.Solver { return f }

func TestRunCalibrationWithOptions_LoadProfile(t *testing.T) {
	t.Parallel()
	profilePath := filepath.Join(t.TempDir(), "profile.json")

	profile := NewProfile()
	profile.OptimalParallelThreshold = 12345
	if err := profile.SaveProfile(profilePath); err != nil {
		t.Fatalf("Failed to save profile: %v", err)
	}

	var buf bytes.Buffer
	// The factory is not consulted when the cached profile is valid.
	code := RunCalibrationWithOptions(context.Background(), &buf, stubFactory{}, CalibrationOptions{
		ProfilePath: profilePath,
		LoadProfile: true,
	})
	if code != apperrors.ExitSuccess {
		t.Errorf("Expected exit code 0, got %d", code)
	}
	if !strings.Contains(buf.String(), "-parallel-threshold 12345") {
		t.Errorf("cached threshold not reported:\n%s", buf.String())
	}
}

func TestRunCalibrationWithOptions_MissingJacobi(t *testing.T) {
	t.Parallel()
	code := RunCalibrationWithOptions(context.Background(), io.Discard, stubFactory{}, CalibrationOptions{Sizes: []int{100}})
	if code != apperrors.ExitErrorGeneric {
		t.Errorf("Expected generic error, got %d", code)
	}
}

func TestRunCalibrationWithOptions_SolveError(t *testing.T) {
	t.Parallel()
	if runtime.NumCPU() == 1 {
		t.Skip("a single CPU short-circuits the analysis")
	}
	ctrl := gomock.NewController(t)
	failing := mocks.NewMockSolver(ctrl)
	failing.EXPECT().Solve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("simulated error")).AnyTimes()

	code := RunCalibrationWithOptions(context.Background(), io.Discard, stubFactory{solver.Jacobi: failing},
		CalibrationOptions{Sizes: []int{100, 200}})
	if code == apperrors.ExitSuccess {
		t.Error("Expected non-zero exit code due to solve errors")
	}
}

func TestRunCalibrationWithOptions_Canceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code := RunCalibrationWithOptions(ctx, io.Discard, solver.NewDefaultFactory(), CalibrationOptions{Sizes: []int{100}})
	if code != apperrors.ExitErrorCanceled {
		t.Errorf("Expected canceled exit code, got %d", code)
	}
}

func TestRunCalibrationWithOptions_Saves(t *testing.T) {
	t.Parallel()
	profilePath := filepath.Join(t.TempDir(), "calib.json")

	var buf bytes.Buffer
	code := RunCalibrationWithOptions(context.Background(), &buf, solver.NewDefaultFactory(), CalibrationOptions{
		ProfilePath: profilePath,
		SaveProfile: true,
		Sizes:       []int{300, 600},
		Timeout:     10 * time.Second,
	})
	if code != apperrors.ExitSuccess {
		t.Fatalf("exit code %d\n%s", code, buf.String())
	}
	for _, want := range []string{"Calibration Summary", "Recommendation for this machine", "Calibration profile saved"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output should contain %q:\n%s", want, buf.String())
		}
	}

	saved, err := LoadProfile(profilePath)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if !saved.IsValid() {
		t.Errorf("saved profile should be valid: %s", saved)
	}
	if runtime.NumCPU() > 1 && len(saved.Measurements) != 2 {
		t.Errorf("expected 2 measurements, got %d", len(saved.Measurements))
	}
}

func TestLoadCachedCalibration(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.json")
	profile := NewProfile()
	profile.OptimalParallelThreshold = 40_000
	profile.OptimalWorkers = 6
	if err := profile.SaveProfile(valid); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	tests := []struct {
		name        string
		path        string
		workers     int
		wantOK      bool
		wantThresh  int
		wantWorkers int
	}{
		{"Missing profile", filepath.Join(dir, "missing.json"), 0, false, 50_000, 0},
		{"Valid profile", valid, 0, true, 40_000, 6},
		{"Explicit workers kept", valid, 2, true, 40_000, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.AppConfig{ParallelThreshold: 50_000, Workers: tt.workers}
			got, ok := LoadCachedCalibration(cfg, tt.path)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got.ParallelThreshold != tt.wantThresh || got.Workers != tt.wantWorkers {
				t.Errorf("got threshold %d workers %d, want %d and %d",
					got.ParallelThreshold, got.Workers, tt.wantThresh, tt.wantWorkers)
			}
		})
	}
}

func TestAutoCalibrateUsesCachedProfile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "auto.json")
	profile := NewProfile()
	profile.OptimalParallelThreshold = 77_000
	profile.OptimalWorkers = 3
	if err := profile.SaveProfile(path); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	var buf bytes.Buffer
	cfg := config.AppConfig{CalibrationProfile: path}
	got, ok := AutoCalibrate(context.Background(), cfg, &buf, stubFactory{})
	if !ok || got.ParallelThreshold != 77_000 || got.Workers != 3 {
		t.Errorf("AutoCalibrate = %+v, %v", got, ok)
	}
	if !strings.Contains(buf.String(), "Using cached calibration") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestAutoCalibrateFresh(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "fresh.json")
	cfg := config.AppConfig{CalibrationProfile: path, Timeout: 5 * time.Second}

	got, ok := AutoCalibrate(context.Background(), cfg, io.Discard, solver.NewDefaultFactory())
	if !ok {
		// The micro-benchmark may time out on a loaded machine; the
		// configuration must then be untouched.
		if !reflect.DeepEqual(got, cfg) {
			t.Errorf("failed calibration changed the config: %+v", got)
		}
		return
	}
	if got.ParallelThreshold < MinParallelThreshold || got.ParallelThreshold > MaxParallelThreshold {
		t.Errorf("threshold %d out of bounds", got.ParallelThreshold)
	}
	if !ProfileExists(path) {
		t.Error("a successful calibration should save a profile")
	}
}

func TestApplyCalibrationResults(t *testing.T) {
	t.Parallel()
	cfg := config.AppConfig{ParallelThreshold: 50_000}

	if got, ok := applyCalibrationResults(cfg, ThresholdResults{ParallelThreshold: 1, Confidence: 0}); ok || !reflect.DeepEqual(got, cfg) {
		t.Errorf("zero confidence should keep the config, got %+v", got)
	}
	got, ok := applyCalibrationResults(cfg, ThresholdResults{ParallelThreshold: 20_000, Confidence: 0.8})
	if !ok || got.ParallelThreshold != 20_000 || got.Workers != EstimateOptimalWorkers() {
		t.Errorf("unexpected config %+v", got)
	}
}
