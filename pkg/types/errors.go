package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeForbidden  ErrorType = "forbidden"
	ErrorTypeInternal   ErrorType = "internal"
)

// SchedulingError is the structured error returned by the scheduling core.
// Callers branch on Type and Code; Message is human-readable and not parsed.
type SchedulingError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *SchedulingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *SchedulingError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *SchedulingError {
	return &SchedulingError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *SchedulingError {
	return &SchedulingError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(code, message string) *SchedulingError {
	return &SchedulingError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(code, message string) *SchedulingError {
	return &SchedulingError{
		Type:    ErrorTypeForbidden,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *SchedulingError {
	return &SchedulingError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// errorIs reports whether err is a SchedulingError of the given type.
func errorIs(err error, t ErrorType) bool {
	var se *SchedulingError
	return errors.As(err, &se) && se.Type == t
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return errorIs(err, ErrorTypeValidation) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return errorIs(err, ErrorTypeNotFound) }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return errorIs(err, ErrorTypeConflict) }

// IsForbidden reports whether err is a forbidden error.
func IsForbidden(err error) bool { return errorIs(err, ErrorTypeForbidden) }

// Common error codes
const (
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeUnavailable      = "UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)
