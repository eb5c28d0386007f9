// Package errors provides the categorized error taxonomy for the pipeline.
package errors

import (
	"fmt"
	"net/http"

	"github.com/flipscan/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents request validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents missing-resource errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents duplicate/state conflicts
	CategoryConflict ErrorCategory = "conflict"
	// CategoryInvalidState represents illegal state-machine transitions
	CategoryInvalidState ErrorCategory = "invalid_state"
	// CategoryRetriesExhausted represents queue items out of retry budget
	CategoryRetriesExhausted ErrorCategory = "retries_exhausted"
	// CategoryAdapter represents marketplace adapter failures (network, timeout, navigation)
	CategoryAdapter ErrorCategory = "adapter"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategorySystem represents other internal errors
	CategorySystem ErrorCategory = "system"
)

// Common error codes
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInvalidState     = "INVALID_STATE"
	CodeRetriesExhausted = "RETRIES_EXHAUSTED"
	CodeAdapterFailure   = "ADAPTER_FAILURE"
	CodeAdapterTimeout   = "ADAPTER_TIMEOUT"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeCacheError       = "CACHE_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
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

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewValidationError creates a request validation error
func NewValidationError(field string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidInput,
		Message:    fmt.Sprintf("invalid field '%s': %s", field, reason),
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewConflictError creates a conflict error (e.g. duplicate opportunity)
func NewConflictError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       CodeConflict,
		Message:    message,
	}
}

// NewInvalidStateError creates an illegal-transition error
func NewInvalidStateError(resource, id, current, wanted string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryInvalidState,
		StatusCode: http.StatusConflict,
		Code:       CodeInvalidState,
		Message:    fmt.Sprintf("%s %s is %s, expected %s", resource, id, current, wanted),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
			"status":   current,
		},
	}
}

// NewRetriesExhaustedError creates a retry-budget error for a queue item
func NewRetriesExhaustedError(itemID string, retryCount, maxRetries int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRetriesExhausted,
		StatusCode: http.StatusConflict,
		Code:       CodeRetriesExhausted,
		Message:    fmt.Sprintf("queue item %s has exhausted its retries (%d/%d)", itemID, retryCount, maxRetries),
		Details: map[string]interface{}{
			"itemId":     itemID,
			"retryCount": retryCount,
			"maxRetries": maxRetries,
		},
	}
}

// NewAdapterError creates a marketplace adapter failure
func NewAdapterError(platform types.Platform, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAdapter,
		StatusCode: http.StatusBadGateway,
		Code:       CodeAdapterFailure,
		Message:    fmt.Sprintf("adapter failure on %s", platform),
		Cause:      cause,
		Details: map[string]interface{}{
			"platform": string(platform),
		},
	}
}

// NewAdapterTimeoutError creates an adapter timeout failure
func NewAdapterTimeoutError(platform types.Platform, step string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAdapter,
		StatusCode: http.StatusGatewayTimeout,
		Code:       CodeAdapterTimeout,
		Message:    fmt.Sprintf("adapter timeout on %s during %s", platform, step),
		Details: map[string]interface{}{
			"platform": string(platform),
			"step":     step,
		},
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeDatabaseError,
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
		Code:       CodeCacheError,
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	if svcErr, ok := err.(*types.ServiceError); ok {
		return categorizeServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

// categorizeServiceError categorizes a ServiceError by code
func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	statusByCode := map[string]struct {
		category   ErrorCategory
		statusCode int
	}{
		CodeInvalidInput:     {CategoryValidation, http.StatusBadRequest},
		CodeNotFound:         {CategoryNotFound, http.StatusNotFound},
		CodeConflict:         {CategoryConflict, http.StatusConflict},
		CodeInvalidState:     {CategoryInvalidState, http.StatusConflict},
		CodeRetriesExhausted: {CategoryRetriesExhausted, http.StatusConflict},
		CodeAdapterFailure:   {CategoryAdapter, http.StatusBadGateway},
		CodeAdapterTimeout:   {CategoryAdapter, http.StatusGatewayTimeout},
	}

	if mapped, ok := statusByCode[err.Code]; ok {
		return &CategorizedError{
			Category:   mapped.category,
			StatusCode: mapped.statusCode,
			Code:       err.Code,
			Message:    err.Message,
			Details:    err.Details,
		}
	}

	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable by the posting-queue
// executor. Validation, conflict, and state errors are permanent.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryAdapter, CategoryDatabase, CategoryCache:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// Truncate bounds diagnostic text stored on job and queue rows.
func Truncate(message string, max int) string {
	runes := []rune(message)
	if len(runes) <= max {
		return message
	}
	return string(runes[:max])
}
