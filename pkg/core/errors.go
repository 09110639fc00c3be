package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, text_mismatch, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches predefined errors by code, so a customised copy
// (WithMessage, WithDetails) still satisfies errors.Is against its template.
// A text mismatch is also an assertion failure.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	if e.Code == t.Code {
		return true
	}
	return t.Code == ErrAssertion.Code && e.Category == ErrCategoryAssertion
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// ErrElementNotFound: a wait exceeded its timeout, or an immediate lookup missed.
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "element_not_found",
		Message:  "element not found",
	}

	// Assertion errors
	ErrAssertion = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "assertion_failed",
		Message:  "assertion failed",
	}
	ErrTextMismatch = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "text_mismatch",
		Message:  "text does not match expected value",
	}

	// ErrBackendTransport: the automation backend failed to respond.
	ErrBackendTransport = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "backend_transport",
		Message:  "automation backend failed",
	}

	// Config errors
	ErrInvalidScenario = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_scenario",
		Message:  "invalid scenario",
	}
	ErrMissingField = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_field",
		Message:  "missing form field",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// CategoryOf returns the category of err, or ErrCategoryNone if err carries none.
func CategoryOf(err error) ErrorCategory {
	var e *ExecutionError
	if errors.As(err, &e) {
		return e.Category
	}
	return ErrCategoryNone
}
