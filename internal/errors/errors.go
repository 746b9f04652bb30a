// Package errors defines the categorized error taxonomy for the campus sync
// service. The sync pipeline distinguishes transient failures (retried by the
// job queue) from persistent ones (escalated to account deactivation).
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryNotFound represents missing-resource errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents state conflicts (e.g. sync already running)
	CategoryConflict ErrorCategory = "conflict"
	// CategoryValidation represents user input errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuthorization represents credential/authorization errors
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryPortal represents external portal errors
	CategoryPortal ErrorCategory = "portal"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategorySystem represents other system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// NewAccountNotFoundError indicates no linked account exists for the given id
func NewAccountNotFoundError(accountID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "ACCOUNT_NOT_FOUND",
		Message:    fmt.Sprintf("linked account not found: %s", accountID),
		Details: map[string]interface{}{
			"accountId": accountID,
		},
	}
}

// NewSyncInProgressError indicates a sync attempt hit the reentrancy guard
func NewSyncInProgressError(accountID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       "SYNC_IN_PROGRESS",
		Message:    "sync already in progress for this account",
		Details: map[string]interface{}{
			"accountId": accountID,
		},
	}
}

// NewInvalidCredentialsError indicates the portal rejected a login
func NewInvalidCredentialsError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       "INVALID_CREDENTIALS",
		Message:    "college portal rejected the stored credentials",
		Cause:      cause,
	}
}

// NewExternalAPIError indicates a portal endpoint failed irrecoverably and the
// failure was not swallowed into an empty category result
func NewExternalAPIError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPortal,
		StatusCode: http.StatusBadGateway,
		Code:       "EXTERNAL_API_ERROR",
		Message:    fmt.Sprintf("college portal error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewSyncFailedError wraps any other fatal sync condition, including malformed
// encryption metadata and storage errors surfaced mid-attempt
func NewSyncFailedError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "SYNC_FAILED",
		Message:    message,
		Cause:      cause,
	}
}

// NewValidationError creates a user input error
func NewValidationError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a generic not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}

	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err carries the given error code
func IsCode(err error, code string) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Code == code
}

// IsRetryable determines if an error is worth another queue attempt.
// Guard rejections and bad credentials never are: retrying a sync that is
// already running, or a login the portal has rejected, cannot succeed within
// the same scheduling cycle.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryPortal, CategoryDatabase, CategoryCache, CategorySystem:
		return true
	default:
		return false
	}
}
