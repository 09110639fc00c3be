package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExecutionError_Error(t *testing.T) {
	err := &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "test_error",
		Message:  "test message",
	}

	if got := err.Error(); got != "test message" {
		t.Errorf("Error() = %q, want %q", got, "test message")
	}
}

func TestExecutionError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "test_error",
		Message:  "test message",
		Cause:    cause,
	}

	got := err.Error()
	if !strings.Contains(got, "test message") {
		t.Errorf("Error() = %q, should contain 'test message'", got)
	}
	if !strings.Contains(got, "underlying error") {
		t.Errorf("Error() = %q, should contain 'underlying error'", got)
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Message: "wrapper",
		Cause:   cause,
	}

	if got := err.Unwrap(); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}

func TestExecutionError_WithCause(t *testing.T) {
	original := ErrElementNotFound
	cause := errors.New("custom cause")

	newErr := original.WithCause(cause)

	if newErr.Cause != cause {
		t.Error("WithCause() did not set cause")
	}
	if newErr.Code != original.Code {
		t.Error("WithCause() changed code")
	}
	if original.Cause != nil {
		t.Error("WithCause() modified original error")
	}
}

func TestExecutionError_WithMessage(t *testing.T) {
	original := ErrElementNotFound
	newErr := original.WithMessage("custom timeout message")

	if newErr.Message != "custom timeout message" {
		t.Errorf("Message = %q, want 'custom timeout message'", newErr.Message)
	}
	if newErr.Code != original.Code {
		t.Error("WithMessage() changed code")
	}
	if original.Message == "custom timeout message" {
		t.Error("WithMessage() modified original error")
	}
}

func TestExecutionError_WithDetails(t *testing.T) {
	original := &ExecutionError{
		Code:    "test",
		Message: "test",
		Details: map[string]interface{}{"existing": "value"},
	}

	newErr := original.WithDetails(map[string]interface{}{
		"selector": "#button",
		"timeout":  5000,
	})

	if newErr.Details["selector"] != "#button" {
		t.Error("WithDetails() did not add new details")
	}
	if newErr.Details["existing"] != "value" {
		t.Error("WithDetails() did not preserve existing details")
	}
	if _, ok := original.Details["selector"]; ok {
		t.Error("WithDetails() modified original error")
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err      *ExecutionError
		category ErrorCategory
		code     string
	}{
		{ErrElementNotFound, ErrCategoryTimeout, "element_not_found"},
		{ErrAssertion, ErrCategoryAssertion, "assertion_failed"},
		{ErrTextMismatch, ErrCategoryAssertion, "text_mismatch"},
		{ErrBackendTransport, ErrCategoryConnection, "backend_transport"},
		{ErrInvalidScenario, ErrCategoryConfig, "invalid_scenario"},
		{ErrMissingField, ErrCategoryConfig, "missing_field"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Category != tt.category {
				t.Errorf("Category = %s, want %s", tt.err.Category, tt.category)
			}
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestNewExecutionError(t *testing.T) {
	err := NewExecutionError(ErrCategoryConfig, "custom_error", "custom message")

	if err.Category != ErrCategoryConfig {
		t.Errorf("Category = %s, want %s", err.Category, ErrCategoryConfig)
	}
	if err.Code != "custom_error" {
		t.Errorf("Code = %s, want 'custom_error'", err.Code)
	}
	if err.Message != "custom message" {
		t.Errorf("Message = %s, want 'custom message'", err.Message)
	}
}

func TestExecutionError_ErrorsIs(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrBackendTransport.WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the cause")
	}
	if !errors.Is(err, ErrBackendTransport) {
		t.Error("errors.Is() should match the template by code")
	}
	if errors.Is(err, ErrElementNotFound) {
		t.Error("errors.Is() should not match a different code")
	}
}

func TestExecutionError_TextMismatchIsAssertion(t *testing.T) {
	mismatch := ErrTextMismatch.WithDetails(map[string]interface{}{"expected": "2", "actual": "1"})
	wrapped := fmt.Errorf("step 3: %w", mismatch)

	if !errors.Is(wrapped, ErrAssertion) {
		t.Error("a text mismatch should satisfy errors.Is(ErrAssertion)")
	}
	if !errors.Is(wrapped, ErrTextMismatch) {
		t.Error("a text mismatch should satisfy errors.Is(ErrTextMismatch)")
	}
	if errors.Is(ErrAssertion, ErrTextMismatch) {
		t.Error("a generic assertion is not a text mismatch")
	}
	if errors.Is(ErrElementNotFound, ErrAssertion) {
		t.Error("a timed-out wait is not an assertion failure")
	}
}

func TestCategoryOf(t *testing.T) {
	if got := CategoryOf(fmt.Errorf("wrap: %w", ErrBackendTransport)); got != ErrCategoryConnection {
		t.Errorf("CategoryOf() = %s, want connection", got)
	}
	if got := CategoryOf(errors.New("plain")); got != ErrCategoryNone {
		t.Errorf("CategoryOf() = %s, want none", got)
	}
	if got := CategoryOf(nil); got != ErrCategoryNone {
		t.Errorf("CategoryOf(nil) = %s, want none", got)
	}
}
