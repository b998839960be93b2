package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a namespaced error code, e.g. "GRAPH_QUERY_FAILED".
// Each package declares its own ErrCode* constants next to the code
// that raises them.
type ErrorCode string

// AtlasError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type AtlasError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *AtlasError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *AtlasError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is an AtlasError with the same Code.
func (e *AtlasError) Is(target error) bool {
	var atlasErr *AtlasError
	if errors.As(target, &atlasErr) {
		return e.Code == atlasErr.Code
	}
	return false
}

// NewError creates a new non-retryable AtlasError with the given code and message.
func NewError(code ErrorCode, message string) *AtlasError {
	return &AtlasError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable AtlasError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *AtlasError {
	return &AtlasError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable AtlasError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *AtlasError {
	return &AtlasError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// IsRetryable reports whether err carries a retryable hint anywhere in its chain.
func IsRetryable(err error) bool {
	var atlasErr *AtlasError
	if errors.As(err, &atlasErr) {
		return atlasErr.Retryable
	}
	return false
}
