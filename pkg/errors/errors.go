// Package errors provides structured error handling for TalentSync
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConflict represents conflicting-write errors
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeRateLimit represents rate limit errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeAuthentication represents authentication errors
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeCircuitOpen represents calls rejected by an open circuit breaker
	ErrorTypeCircuitOpen ErrorType = "circuit_open"
	// ErrorTypeOrchestration represents sync orchestration errors such as
	// unknown sources or missing adapter wiring
	ErrorTypeOrchestration ErrorType = "orchestration"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents data processing errors
	ErrorTypeData ErrorType = "data"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable reports whether the error belongs to a transient category.
// Untyped errors are categorized from their message first, so raw driver and
// network errors participate without explicit wrapping.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch Categorize(err) {
	case ErrorTypeRateLimit, ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsAuth reports whether the error is an authentication failure
func IsAuth(err error) bool {
	return Categorize(err) == ErrorTypeAuthentication
}

// IsCircuitOpen reports whether the error is a circuit breaker rejection
func IsCircuitOpen(err error) bool {
	return IsType(err, ErrorTypeCircuitOpen)
}

// IsValidation reports whether the error is a validation failure
func IsValidation(err error) bool {
	return Categorize(err) == ErrorTypeValidation
}

// Categorize determines the category of an arbitrary error. Typed errors keep
// their declared type; everything else is classified by message patterns the
// way upstream systems tend to phrase them.
func Categorize(err error) ErrorType {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}

	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "unauthorized", "forbidden", "invalid credentials", "token expired", "401", "403"):
		return ErrorTypeAuthentication
	case containsAny(msg, "rate limit", "too many requests", "throttle", "429"):
		return ErrorTypeRateLimit
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return ErrorTypeTimeout
	case containsAny(msg, "connection refused", "connection reset", "broken pipe", "no such host", "service unavailable", "network", "i/o error", "eof"):
		return ErrorTypeConnection
	case containsAny(msg, "invalid", "malformed", "missing required", "bad request"):
		return ErrorTypeValidation
	case containsAny(msg, "not found", "does not exist"):
		return ErrorTypeNotFound
	default:
		return ErrorTypeInternal
	}
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
