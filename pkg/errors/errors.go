// Package errors provides structured error types for the deployer.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the engine, job runner and CLI
//   - Machine-readable error codes for programmatic handling
//   - Hard/soft classification of dependency failures
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The codes map onto the deployer's failure taxonomy:
//   - CONFIGURATION: bad dependency-map document, unknown handler or type
//   - NOT_FOUND: a referenced dependency no longer exists
//   - UNAUTHORIZED: a handler denied access
//   - ARCHIVE_INTEGRITY: counted length mismatch, bad checksum or truncation
//   - INVALID_*: input validation failures
//   - CANCELED / INTERNAL_ERROR: job aborted or unexpected failure
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNotFound, "keyword %q does not exist", id)
//	if errors.Is(err, errors.ErrCodeNotFound) {
//	    // soft failure for transitively pulled nodes
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeArchiveIntegrity, origErr, "read entry %d", n)
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Configuration errors are fatal at load time.
	ErrCodeConfiguration Code = "CONFIGURATION"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Authorization errors always abort the job.
	ErrCodeUnauthorized Code = "UNAUTHORIZED"

	// Archive errors are detected before any install side effect.
	ErrCodeArchiveIntegrity Code = "ARCHIVE_INTEGRITY"

	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Job control and internal errors
	ErrCodeCanceled    Code = "CANCELED"
	ErrCodeUnsupported Code = "UNSUPPORTED"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
// A chain may hold several *Error values; any of them matching counts.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Canceled converts a context error into a CANCELED error.
// Returns nil if err is nil.
func Canceled(err error) error {
	if err == nil {
		return nil
	}
	return Wrap(ErrCodeCanceled, err, "job canceled")
}

// IsCanceled reports whether err stems from context cancellation or deadline.
func IsCanceled(err error) bool {
	return Is(err, ErrCodeCanceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsHard reports whether err must abort a job regardless of where it occurred.
// Authorization denials, configuration problems, integrity failures and
// cancellation are hard; everything else is decided by the caller.
func IsHard(err error) bool {
	switch {
	case Is(err, ErrCodeUnauthorized),
		Is(err, ErrCodeConfiguration),
		Is(err, ErrCodeArchiveIntegrity),
		IsCanceled(err):
		return true
	}
	return false
}

// DependencyError attaches the failing dependency to an error.
// The key is rendered in "Type:ID" form.
type DependencyError struct {
	Type string
	ID   string
	Err  error
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s:%s: %v", e.Type, e.ID, e.Err)
}

// Unwrap returns the wrapped error.
func (e *DependencyError) Unwrap() error { return e.Err }

// AtDependency wraps err with the failing (type, id). Returns nil if err is nil.
func AtDependency(typ, id string, err error) error {
	if err == nil {
		return nil
	}
	var de *DependencyError
	if errors.As(err, &de) && de.Type == typ && de.ID == id {
		return err
	}
	return &DependencyError{Type: typ, ID: id, Err: err}
}

// FailedDependency returns the innermost-attached (type, id) of err, if any.
func FailedDependency(err error) (typ, id string, ok bool) {
	var de *DependencyError
	if errors.As(err, &de) {
		return de.Type, de.ID, true
	}
	return "", "", false
}
