package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Environment Variable Utilities
// ─────────────────────────────────────────────────────────────────────────────

// getEnvString returns the value of the environment variable with the given key
// (prefixed with EnvPrefix), or the default value if not set.
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt64 returns the value of the environment variable with the given key
// (prefixed with EnvPrefix) parsed as int64, or the default value if not set
// or invalid.
func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvFloat returns the value of the environment variable with the given
// key (prefixed with EnvPrefix) parsed as float64, or the default value if
// not set or invalid.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvInt returns the value of the environment variable with the given key
// (prefixed with EnvPrefix) parsed as int, or the default value if not set
// or invalid.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// envIntSet reports whether the environment variable with the given key
// (prefixed with EnvPrefix) holds a valid integer.
func envIntSet(key string) bool {
	_, err := strconv.Atoi(os.Getenv(EnvPrefix + key))
	return err == nil
}

// getEnvRows returns the row list in the environment variable with the
// given key (prefixed with EnvPrefix), or the default value if not set or
// invalid.
func getEnvRows(key string, defaultVal []int) []int {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if rows, err := parseRows(val); err == nil {
			return rows
		}
	}
	return defaultVal
}

// getEnvBool returns the value of the environment variable with the given key
// (prefixed with EnvPrefix) parsed as bool, or the default value if not set.
// Accepts "true", "1", "yes" as true; "false", "0", "no" as false (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}

// getEnvDuration returns the value of the environment variable with the given key
// (prefixed with EnvPrefix) parsed as time.Duration, or the default value if not
// set or invalid. Accepts formats like "5m", "30s", "1h30m".
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// isFlagSet checks if a flag was explicitly set on the command line.
// This is used to determine whether to apply environment variable overrides.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// applyEnvOverrides applies environment variable values to the configuration
// for any flags that were not explicitly set on the command line.
// This implements the priority: CLI flags > Environment variables > Defaults.
//
// Supported environment variables (DDSOLVE_ prefix):
//   - N, DEGREE, SEED, MAX_ITER, WORKERS, PARALLEL_THRESHOLD, PUSH_BUDGET
//     (integers)
//   - ROW (comma-separated integers: "7", "3,17,42")
//   - MARGIN, TOL (floats)
//   - TIMEOUT (duration: "5m", "30s")
//   - PROBLEM, RHS, METHOD, FUNCTIONAL, LOG_LEVEL, OUTPUT,
//     CALIBRATION_PROFILE (strings)
//   - AUTO_FIX, STREAM, JSON, QUIET, VERBOSE, DETAILS, NO_COLOR, METRICS,
//     CALIBRATE, AUTO_CALIBRATE, INTERACTIVE (bool: true/false, 1/0, yes/no)
func applyEnvOverrides(config *AppConfig, fs *flag.FlagSet) {
	applyNumericOverrides(config, fs)
	applyDurationOverrides(config, fs)
	applyStringOverrides(config, fs)
	applyBooleanOverrides(config, fs)
}

func applyNumericOverrides(config *AppConfig, fs *flag.FlagSet) {
	ints := []struct {
		flag, env string
		dst       *int
	}{
		{"n", "N", &config.N},
		{"degree", "DEGREE", &config.Degree},
		{"max-iter", "MAX_ITER", &config.MaxIterations},
		{"workers", "WORKERS", &config.Workers},
		{"parallel-threshold", "PARALLEL_THRESHOLD", &config.ParallelThreshold},
		{"push-budget", "PUSH_BUDGET", &config.PushBudget},
	}
	for _, o := range ints {
		if !isFlagSet(fs, o.flag) {
			*o.dst = getEnvInt(o.env, *o.dst)
		}
	}
	config.ParallelThresholdSet = isFlagSet(fs, "parallel-threshold") || envIntSet("PARALLEL_THRESHOLD")
	if !isFlagSet(fs, "row") {
		config.Rows = getEnvRows("ROW", config.Rows)
	}
	if !isFlagSet(fs, "seed") {
		config.Seed = getEnvInt64("SEED", config.Seed)
	}
	if !isFlagSet(fs, "margin") {
		config.Margin = getEnvFloat("MARGIN", config.Margin)
	}
	if !isFlagSet(fs, "tol") {
		config.Tolerance = getEnvFloat("TOL", config.Tolerance)
	}
}

func applyDurationOverrides(config *AppConfig, fs *flag.FlagSet) {
	if !isFlagSet(fs, "timeout") {
		config.Timeout = getEnvDuration("TIMEOUT", config.Timeout)
	}
}

func applyStringOverrides(config *AppConfig, fs *flag.FlagSet) {
	if !isFlagSet(fs, "problem") {
		config.Problem = getEnvString("PROBLEM", config.Problem)
	}
	if !isFlagSet(fs, "rhs") {
		config.RHS = getEnvString("RHS", config.RHS)
	}
	if !isFlagSet(fs, "method") {
		config.Method = getEnvString("METHOD", config.Method)
	}
	if !isFlagSet(fs, "functional") {
		config.Functional = getEnvString("FUNCTIONAL", config.Functional)
	}
	if !isFlagSet(fs, "log-level") {
		config.LogLevel = getEnvString("LOG_LEVEL", config.LogLevel)
	}
	if !isFlagSet(fs, "output") && !isFlagSet(fs, "o") {
		config.OutputFile = getEnvString("OUTPUT", config.OutputFile)
	}
	if !isFlagSet(fs, "calibration-profile") {
		config.CalibrationProfile = getEnvString("CALIBRATION_PROFILE", config.CalibrationProfile)
	}
}

func applyBooleanOverrides(config *AppConfig, fs *flag.FlagSet) {
	if !isFlagSet(fs, "auto-fix") {
		config.AutoFix = getEnvBool("AUTO_FIX", config.AutoFix)
	}
	if !isFlagSet(fs, "stream") {
		config.Stream = getEnvBool("STREAM", config.Stream)
	}
	if !isFlagSet(fs, "json") {
		config.JSONOutput = getEnvBool("JSON", config.JSONOutput)
	}
	if !isFlagSet(fs, "v") {
		config.Verbose = getEnvBool("VERBOSE", config.Verbose)
	}
	if !isFlagSet(fs, "d") && !isFlagSet(fs, "details") {
		config.Details = getEnvBool("DETAILS", config.Details)
	}
	if !isFlagSet(fs, "quiet") && !isFlagSet(fs, "q") {
		config.Quiet = getEnvBool("QUIET", config.Quiet)
	}
	if !isFlagSet(fs, "no-color") {
		config.NoColor = getEnvBool("NO_COLOR", config.NoColor)
	}
	if !isFlagSet(fs, "metrics") {
		config.Metrics = getEnvBool("METRICS", config.Metrics)
	}
	if !isFlagSet(fs, "calibrate") {
		config.Calibrate = getEnvBool("CALIBRATE", config.Calibrate)
	}
	if !isFlagSet(fs, "auto-calibrate") {
		config.AutoCalibrate = getEnvBool("AUTO_CALIBRATE", config.AutoCalibrate)
	}
	if !isFlagSet(fs, "interactive") {
		config.Interactive = getEnvBool("INTERACTIVE", config.Interactive)
	}
}
