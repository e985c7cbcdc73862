// Package errors provides the categorized error taxonomy for the wallet
// sync system.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/wallet-sync/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategorySchema represents malformed upstream payloads (never retried)
	CategorySchema ErrorCategory = "schema"
	// CategoryTransient represents network/rate-limit provider failures (retried)
	CategoryTransient ErrorCategory = "transient"
	// CategoryAuthorization represents signature/authorization failures
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryChunk represents a chunk that exhausted its retry budget
	CategoryChunk ErrorCategory = "chunk"
	// CategoryConflict represents uniqueness conflicts
	CategoryConflict ErrorCategory = "conflict"
	// CategoryNotFound represents missing entities
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryValidation represents invalid caller input
	CategoryValidation ErrorCategory = "validation"
	// CategoryDatabase represents storage failures
	CategoryDatabase ErrorCategory = "database"
	// CategorySystem represents everything else (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError carries a category, an HTTP status code and an optional
// cause.
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

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

// ToServiceError converts to a ServiceError for API responses.
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewProviderSchemaError reports a malformed upstream payload. Parse
// failures are surfaced to the caller, never retried.
func NewProviderSchemaError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySchema,
		StatusCode: http.StatusBadGateway,
		Code:       "PROVIDER_SCHEMA_ERROR",
		Message:    fmt.Sprintf("malformed payload from provider %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewProviderTransientError reports a network or rate-limit provider
// failure. Retried with bounded backoff inside the chunk worker.
func NewProviderTransientError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryTransient,
		StatusCode: http.StatusBadGateway,
		Code:       "PROVIDER_TRANSIENT_ERROR",
		Message:    fmt.Sprintf("transient error from provider %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewUnauthorizedError reports a webhook signature mismatch or missing
// authorization. The event is dropped and logged, never retried.
func NewUnauthorizedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// NewChunkFailureError reports a chunk that exhausted its retry budget.
// A single chunk failure fails the wallet's whole backfill.
func NewChunkFailureError(chunkID string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryChunk,
		StatusCode: http.StatusInternalServerError,
		Code:       "CHUNK_FAILURE",
		Message:    fmt.Sprintf("chunk %s failed after retry budget exhausted", chunkID),
		Cause:      cause,
		Details: map[string]interface{}{
			"chunkId": chunkID,
		},
	}
}

// NewDuplicateWalletError reports add_wallet on an existing (address, chain)
// pair. Surfaced to the caller; not a system fault.
func NewDuplicateWalletError(address string, chain types.ChainID) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       "DUPLICATE_WALLET",
		Message:    fmt.Sprintf("wallet %s already tracked on chain %s", address, chain),
		Details: map[string]interface{}{
			"address": address,
			"chain":   string(chain),
		},
	}
}

// NewNotFoundError creates a not found error
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

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
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

// NewInvalidAddressError creates an invalid address error
func NewInvalidAddressError(address string, chain types.ChainID) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid address %q for chain %s", address, chain),
		Details: map[string]interface{}{
			"address": address,
			"chain":   string(chain),
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

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error, defaulting to internal.
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

// IsTransient reports whether an error should trigger a retry. Schema
// errors are explicitly not retryable regardless of the underlying cause.
func IsTransient(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.Category == CategoryTransient
}

// IsSchema reports whether the error is a malformed-payload error.
func IsSchema(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == CategorySchema
}

// IsNotFound reports whether the error is a not-found error.
func IsNotFound(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == CategoryNotFound
}

// IsConflict reports whether the error is a uniqueness conflict.
func IsConflict(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == CategoryConflict
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}
