// Package errors provides structured error types for the Sift system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryAuth       ErrorCategory = "AUTH"
	ErrCategoryAccess     ErrorCategory = "ACCESS"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Auth codes
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"

	// Access codes
	CodeAccessDenied = "ACCESS_DENIED"

	// Validation codes
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidFilter  = "INVALID_FILTER"
	CodeInvalidCursor  = "INVALID_CURSOR"

	// Storage codes
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"

	// Query codes
	CodeNotFound = "NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// SiftError is the structured error type used throughout the system.
type SiftError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *SiftError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *SiftError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *SiftError) Is(target error) bool {
	var t *SiftError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new SiftError.
func New(category ErrorCategory, code, message string) *SiftError {
	return &SiftError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(code),
	}
}

// Wrap creates a new SiftError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *SiftError {
	return &SiftError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(code),
	}
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var se *SiftError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a SiftError.
func GetCategory(err error) ErrorCategory {
	var se *SiftError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a SiftError.
func GetCode(err error) string {
	var se *SiftError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable.
// Only transient storage failures qualify; auth, access, validation,
// and query errors are terminal.
func isRetryable(code string) bool {
	return code == CodeStorageUnavailable
}

// Convenience constructors for common errors.

func NewInvalidCredentials() *SiftError {
	return New(ErrCategoryAuth, CodeInvalidCredentials, "invalid credentials")
}

func NewTokenExpired() *SiftError {
	return New(ErrCategoryAuth, CodeTokenExpired, "token expired")
}

func NewTokenInvalid(cause error) *SiftError {
	return Wrap(ErrCategoryAuth, CodeTokenInvalid, "invalid token", cause)
}

func NewAccessDenied(message string) *SiftError {
	return New(ErrCategoryAccess, CodeAccessDenied, message)
}

func NewValidationError(code, message string) *SiftError {
	return New(ErrCategoryValidation, code, message)
}

func NewNotFound(message string) *SiftError {
	return New(ErrCategoryQuery, CodeNotFound, message)
}

func NewStorageUnavailable(message string, cause error) *SiftError {
	return Wrap(ErrCategoryStorage, CodeStorageUnavailable, message, cause)
}

func NewInternalError(message string, cause error) *SiftError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
