// Package errors provides standardized domain errors with codes for the Perpetua client.
//
// Usage:
//
//	// In services - return typed errors
//	if shelfID == targetID {
//	    return errors.CircularReference("a shelf cannot be added to itself")
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrInsufficientBalance) {
//	    showTopUpPrompt()
//	    return
//	}
//
//	// Or surface a single user-facing string
//	msg := errors.UserMessage(err)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the client.
const (
	// CodeTransport covers network failures and non-2xx responses.
	CodeTransport Code = "TRANSPORT"
	// CodeUnexpectedShape covers responses matching neither Ok nor Err.
	CodeUnexpectedShape Code = "UNEXPECTED_SHAPE"
	// CodeBackend is the catch-all for backend-declared business errors.
	CodeBackend             Code = "BACKEND"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeCircularReference   Code = "CIRCULAR_REFERENCE"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeValidation          Code = "VALIDATION"
	CodeSessionExpired      Code = "SESSION_EXPIRED"
)

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrTransport           = &Error{Code: CodeTransport, Message: "network error"}
	ErrUnexpectedShape     = &Error{Code: CodeUnexpectedShape, Message: "unexpected response format"}
	ErrBackend             = &Error{Code: CodeBackend, Message: "backend error"}
	ErrInsufficientBalance = &Error{Code: CodeInsufficientBalance, Message: "insufficient balance"}
	ErrCircularReference   = &Error{Code: CodeCircularReference, Message: "circular shelf reference"}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation          = &Error{Code: CodeValidation, Message: "validation error"}
	ErrSessionExpired      = &Error{Code: CodeSessionExpired, Message: "session expired"}
)

// Constructor functions for creating errors with custom messages.

// Transport creates a transport error wrapping the underlying cause.
func Transport(msg string, cause error) *Error {
	return &Error{Code: CodeTransport, Message: msg, cause: cause}
}

// UnexpectedShape creates an unexpected-response-shape error.
func UnexpectedShape(msg string) *Error {
	return &Error{Code: CodeUnexpectedShape, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// CircularReference creates a circular reference error.
func CircularReference(msg string) *Error {
	return &Error{Code: CodeCircularReference, Message: msg}
}

// Backend classifies a backend-declared error string into a coded error.
// Select well-known strings are promoted to their own codes so callers
// can branch on them and UserMessage can translate them.
func Backend(msg string) *Error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "not enough balance"),
		strings.Contains(lower, "insufficient balance"),
		strings.Contains(lower, "insufficient funds"):
		return &Error{Code: CodeInsufficientBalance, Message: msg}
	case strings.Contains(lower, "circular"):
		return &Error{Code: CodeCircularReference, Message: msg}
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "not authorized"):
		return &Error{Code: CodeUnauthorized, Message: msg}
	case strings.Contains(lower, "not found"):
		return &Error{Code: CodeNotFound, Message: msg}
	case strings.Contains(lower, "invalid principal"):
		return &Error{Code: CodeSessionExpired, Message: msg}
	default:
		return &Error{Code: CodeBackend, Message: msg}
	}
}

// UserMessage normalizes any error to a single user-facing string.
// Backend business errors pass through largely verbatim; select cases
// get friendlier text; anything unrecognized gets a generic message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return "Something went wrong. Please try again."
	}

	switch domainErr.Code {
	case CodeInsufficientBalance:
		return "Not enough balance to complete this action."
	case CodeCircularReference:
		return "A shelf cannot contain itself, directly or through nested shelves."
	case CodeSessionExpired:
		return "Your session has expired. Please log in again."
	case CodeUnexpectedShape:
		return "Unexpected response format"
	case CodeTransport:
		return "Could not reach the server. Check your connection and try again."
	default:
		return domainErr.Message
	}
}
