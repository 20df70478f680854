// Package errors provides structured error types for the range lookup system.
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
	ErrCategoryRange    ErrorCategory = "RANGE"
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryStore    ErrorCategory = "STORE"
	ErrCategoryLookup   ErrorCategory = "LOOKUP"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Range codes
	CodeRangeCreate = "RANGE_CREATE_ERROR"
	CodeScanSetup   = "SCAN_SETUP_ERROR"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Store codes
	CodeTableNotFound       = "TABLE_NOT_FOUND"
	CodeSessionClosed       = "SESSION_CLOSED"
	CodeSnapshotFetchFailed = "SNAPSHOT_FETCH_FAILED"

	// Lookup codes
	CodeLookupTimeout = "LOOKUP_TIMEOUT"

	// Internal codes
	CodeUnexpectedField = "UNEXPECTED_FIELD"
	CodeUnexpected      = "UNEXPECTED"
)

// LookupError is the structured error type used throughout the system.
type LookupError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *LookupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *LookupError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *LookupError) Is(target error) bool {
	var t *LookupError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new LookupError.
func New(category ErrorCategory, code, message string) *LookupError {
	return &LookupError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new LookupError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *LookupError {
	return &LookupError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *LookupError) WithDetails(details map[string]interface{}) *LookupError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a LookupError.
func GetCategory(err error) ErrorCategory {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a LookupError.
func GetCode(err error) string {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsFatal reports whether the error must abort a lookup rather than be
// folded into overflow state.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeRangeCreate, CodeScanSetup, CodeTableNotFound, CodeUnexpectedField, CodeInvalidConfig:
		return true
	default:
		return false
	}
}

// IsRangeError reports whether the literal range could not be turned into a
// scan. Scan setup failures are reported the same way as malformed ranges.
func IsRangeError(err error) bool {
	code := GetCode(err)
	return code == CodeRangeCreate || code == CodeScanSetup
}

// isRetryable determines if an error code is retryable.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStore && code == CodeSnapshotFetchFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

// NewRangeConstructionError reports a literal range that cannot be expressed
// as a scan boundary. rng is kept in the details for diagnostics.
func NewRangeConstructionError(rng fmt.Stringer, cause error) *LookupError {
	return Wrap(ErrCategoryRange, CodeRangeCreate, fmt.Sprintf("cannot create range for %s", rng), cause).
		WithDetails(map[string]interface{}{"range": rng.String()})
}

// NewScanSetupError reports a scan the store refused to materialize.
func NewScanSetupError(rng fmt.Stringer, cause error) *LookupError {
	return Wrap(ErrCategoryRange, CodeScanSetup, fmt.Sprintf("scan setup failed for %s", rng), cause).
		WithDetails(map[string]interface{}{"range": rng.String()})
}

func NewTableNotFoundError(table string, cause error) *LookupError {
	return Wrap(ErrCategoryStore, CodeTableNotFound, fmt.Sprintf("table: %s", table), cause).
		WithDetails(map[string]interface{}{"table": table})
}

func NewConfigError(message string) *LookupError {
	return New(ErrCategoryConfig, CodeInvalidConfig, message)
}

func NewStoreError(code, message string, cause error) *LookupError {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewInternalError(message string, cause error) *LookupError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
