// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Every failure surfaced by the codec, the validation engine or a backend is an AppError.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeBackend  = "BACKEND_ERROR"

	// Caller errors (400)
	CodeInvalidConfiguration = "INVALID_CONFIGURATION"
	CodeInvalidInput         = "INVALID_INPUT"

	// Structural violations (422)
	CodeReservedSyntax    = "RESERVED_SYNTAX"
	CodeAmbiguousSheetKey = "AMBIGUOUS_SHEET_KEY"
	CodeConflictingPath   = "CONFLICTING_PATH"

	// Integrity findings escalated by a fail policy (422)
	CodeDuplicateIDs      = "DUPLICATE_IDS_FOUND"
	CodeMissingReferences = "MISSING_REFERENCES_FOUND"

	// Authorization errors (401)
	CodeUnauthorized = "UNAUTHORIZED"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type of the module.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (offending sheets, columns, reports)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewInvalidConfiguration reports a bad option value (400).
func NewInvalidConfiguration(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidConfiguration,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidInput reports input data of the wrong shape (400).
func NewInvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewReservedSyntax reports parentheses used outside the foreign-key syntax (422).
func NewReservedSyntax(message string) *AppError {
	return &AppError{
		Code:       CodeReservedSyntax,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewAmbiguousSheetKey reports two sheet names that normalize to the same key (422).
func NewAmbiguousSheetKey(key string, names ...string) *AppError {
	return &AppError{
		Code:       CodeAmbiguousSheetKey,
		Message:    fmt.Sprintf("sheet key %q is produced by more than one sheet", key),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"sheet_key": key, "sheets": names},
	}
}

// NewConflictingPath reports a dotted path that collides with an existing leaf or object (422).
func NewConflictingPath(path, prefix string) *AppError {
	return &AppError{
		Code:       CodeConflictingPath,
		Message:    fmt.Sprintf("path %q conflicts with existing value at %q", path, prefix),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"path": path, "prefix": prefix},
	}
}

// NewBusinessRule creates an integrity violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBackend wraps an I/O failure of a storage backend (502).
func NewBackend(kind string, err error) *AppError {
	return &AppError{
		Code:       CodeBackend,
		Message:    fmt.Sprintf("%s backend failed", kind),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"backend": kind},
		Err:        err,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}
