package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	// ErrorTypeTransport covers network and timeout failures talking to a
	// retrieval backend. Recovered locally by protocol fallback.
	ErrorTypeTransport ErrorType = "transport"

	// ErrorTypeNormalization covers payloads that are structurally
	// unrecognizable. Treated identically to transport failures for
	// fallback purposes.
	ErrorTypeNormalization ErrorType = "normalization"

	// ErrorTypeCacheUnavailable covers cache store failures. Degrades
	// silently to cache-miss behavior; never surfaced to the caller.
	ErrorTypeCacheUnavailable ErrorType = "cache_unavailable"

	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Validation Errors
	ErrInvalidInput     = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyQuery       = NewDomainError(ErrorTypeValidation, "query cannot be empty", nil)
	ErrEmptyTenant      = NewDomainError(ErrorTypeValidation, "tenant identifier cannot be empty", nil)
	ErrInvalidLimit     = NewDomainError(ErrorTypeValidation, "limit must be positive", nil)
	ErrInvalidThreshold = NewDomainError(ErrorTypeValidation, "relevance threshold must be in [0,1]", nil)

	// Authorization Errors
	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "invalid tenant token", nil)

	// Backend Errors
	ErrBackendUnavailable = NewDomainError(ErrorTypeTransport, "retrieval backend unavailable", nil)
	ErrBackendTimeout     = NewDomainError(ErrorTypeTransport, "retrieval backend timeout", nil)
	ErrUnparseablePayload = NewDomainError(ErrorTypeNormalization, "backend payload structurally unrecognizable", nil)

	// Cache Errors
	ErrCacheUnavailable = NewDomainError(ErrorTypeCacheUnavailable, "cache store unavailable", nil)

	// Internal Errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// Error type checking helper functions

// IsTransportError checks if an error is a backend transport error
func IsTransportError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeTransport
	}
	return false
}

// IsNormalizationError checks if an error is a payload normalization error
func IsNormalizationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNormalization
	}
	return false
}

// IsRecoverable reports whether an error should trigger protocol fallback.
// Transport and normalization failures are treated identically here.
func IsRecoverable(err error) bool {
	return IsTransportError(err) || IsNormalizationError(err)
}

// IsCacheUnavailableError checks if an error is a cache availability error
func IsCacheUnavailableError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeCacheUnavailable
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUnauthorized
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapTransport wraps an error as a backend transport error
func WrapTransport(message string, err error) error {
	return NewDomainError(ErrorTypeTransport, message, err)
}

// WrapNormalization wraps an error as a payload normalization error
func WrapNormalization(message string, err error) error {
	return NewDomainError(ErrorTypeNormalization, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
