// Package apperrors defines structured application error types,
// allowing for a clear distinction between error classes (configuration,
// malformed input, numerical failure, etc.) and for carrying the underlying
// cause and the diagnostics a caller needs to decide whether to retry.
//
// Error Wrapping Guidelines:
// This package follows Go's error wrapping conventions using fmt.Errorf with %w.
// Every wrapping type implements Unwrap() so errors.Is() and errors.As() work
// across the whole chain.
package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Application exit codes define the standard exit statuses for the application.
// These codes are used to signal the outcome of the program execution to the OS.
const (
	ExitSuccess           = 0   // Indicates successful execution.
	ExitErrorGeneric      = 1   // Indicates a generic error.
	ExitErrorTimeout      = 2   // Indicates the operation timed out.
	ExitErrorMismatch     = 3   // Indicates a solution mismatch between methods.
	ExitErrorConfig       = 4   // Indicates a configuration error.
	ExitErrorNotConverged = 5   // Indicates a solve stopped without meeting the tolerance.
	ExitErrorNumeric      = 6   // Indicates a numerical precondition failure (zero diagonal, dominance).
	ExitErrorCanceled     = 130 // Indicates the operation was canceled (e.g., SIGINT).
)

// ConfigError represents a user configuration error, such as invalid flags or
// values. It indicates that the application cannot proceed due to incorrect user input.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
//
// Parameters:
//   - format: A format string (see fmt.Sprintf).
//   - a: Arguments to be formatted into the string.
//
// Returns:
//   - error: A new ConfigError instance containing the formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// SolveError encapsulates a solver failure while preserving the original
// cause and the method that produced it.
type SolveError struct {
	// Method is the name of the solver that failed.
	Method string
	// Cause is the underlying error that triggered this solve error.
	Cause error
}

// Error returns the error message prefixed with the solver name.
func (e SolveError) Error() string {
	if e.Method == "" {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s: %v", e.Method, e.Cause)
}

// Unwrap returns the original wrapped error, allowing for error chain
// inspection (e.g., using errors.Is or errors.As).
func (e SolveError) Unwrap() error { return e.Cause }

// MalformedInputError is returned when a matrix or vector cannot be built
// from the supplied data: mismatched lengths, non-positive dimensions,
// out-of-range indices or non-finite values. It is always a hard failure.
type MalformedInputError struct {
	// Field names the offending argument (e.g. "rowIdx[3]").
	Field string
	// Message describes the problem.
	Message string
}

// Error returns the error message for a MalformedInputError.
func (e MalformedInputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed input: %s: %s", e.Field, e.Message)
	}
	return "malformed input: " + e.Message
}

// NewMalformedInputError creates a MalformedInputError with a formatted message.
func NewMalformedInputError(field, format string, a ...any) error {
	return MalformedInputError{Field: field, Message: fmt.Sprintf(format, a...)}
}

// DimensionError reports a vector whose length does not match the matrix.
type DimensionError struct {
	Name     string
	Expected int
	Got      int
}

// Error returns the error message for a DimensionError.
func (e DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch for %s: expected %d, got %d", e.Name, e.Expected, e.Got)
}

// ZeroDiagonalError reports a diagonal entry that is missing or numerically
// zero. Row is the first offending row.
type ZeroDiagonalError struct {
	Row   int
	Value float64
}

// Error returns the error message for a ZeroDiagonalError.
func (e ZeroDiagonalError) Error() string {
	return fmt.Sprintf("zero diagonal entry at row %d (value %g); enable auto-fix to strengthen the diagonal", e.Row, e.Value)
}

// InsufficientDominanceError reports that a matrix fails the strict
// row-dominance precondition. Row is the worst row and Margin its slack
// |a_ii| - sum_{j != i} |a_ij|, which is <= 0.
type InsufficientDominanceError struct {
	Row    int
	Margin float64
}

// Error returns the error message for an InsufficientDominanceError.
func (e InsufficientDominanceError) Error() string {
	return fmt.Sprintf("matrix is not strictly diagonally dominant: row %d has margin %g", e.Row, e.Margin)
}

// DivergenceError reports an iteration that was aborted because the
// residual grew explosively.
type DivergenceError struct {
	Iteration int
	Residual  float64
}

// Error returns the error message for a DivergenceError.
func (e DivergenceError) Error() string {
	return fmt.Sprintf("divergence detected at iteration %d (relative residual %g)", e.Iteration, e.Residual)
}

// NotConvergedError reports a solve that stopped, by iteration budget or
// stagnation, before meeting the tolerance. The partial answer is still
// returned alongside it.
type NotConvergedError struct {
	Iterations int
	Residual   float64
	Reason     string
}

// Error returns the error message for a NotConvergedError.
func (e NotConvergedError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "iteration budget exhausted"
	}
	return fmt.Sprintf("not converged after %d iterations (relative residual %g): %s", e.Iterations, e.Residual, reason)
}

// NotSymmetricError is returned by methods that require a symmetric matrix.
type NotSymmetricError struct {
	Row int
	Col int
}

// Error returns the error message for a NotSymmetricError.
func (e NotSymmetricError) Error() string {
	return fmt.Sprintf("matrix is not symmetric: a[%d][%d] != a[%d][%d]", e.Row, e.Col, e.Col, e.Row)
}

// WrapError wraps an error with additional context using fmt.Errorf and %w.
//
// Parameters:
//   - err: The error to wrap.
//   - format: A format string for the context message.
//   - args: Arguments for the format string.
//
// Returns:
//   - error: The wrapped error, or nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsNumericError reports whether err is a numerical precondition failure
// (zero diagonal, insufficient dominance or missing symmetry).
func IsNumericError(err error) bool {
	var zd ZeroDiagonalError
	var id InsufficientDominanceError
	var ns NotSymmetricError
	return errors.As(err, &zd) || errors.As(err, &id) || errors.As(err, &ns)
}

// ValidationError represents an error due to invalid input validation.
// It is used for configuration and option validation.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string
	// Message describes why validation failed.
	Message string
	// Value is the invalid value (optional, may be nil).
	Value any
}

// Error returns the error message for a ValidationError.
func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value any) error {
	return ValidationError{Field: field, Message: message, Value: value}
}
