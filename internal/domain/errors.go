package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrContractViolation indicates that a caller passed a table or argument
	// list the operation cannot work with (e.g. a missing merge key column).
	ErrContractViolation = errors.New("contract violation")

	// ErrTransport indicates a network failure, timeout or non-200 response
	// from an upstream collaborator.
	ErrTransport = errors.New("transport error")

	// ErrMalformedResponse indicates that an upstream collaborator answered
	// with a payload of unexpected shape.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ContractViolationError describes a caller or configuration bug detected by
// an operation. It is the only error class surfaced to API callers.
type ContractViolationError struct {
	Operation string
	Message   string
}

// Error implements the error interface.
func (e *ContractViolationError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("contract violation: %s", e.Message)
	}
	return fmt.Sprintf("contract violation in %s: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ContractViolationError) Unwrap() error {
	return ErrContractViolation
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError provides details about a failed call to an upstream API.
// It matches ErrTransport with errors.Is.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrTransport.
func (e *ExternalAPIError) Is(target error) bool {
	return target == ErrTransport
}

// MalformedResponseError describes an upstream payload that failed
// structural validation.
type MalformedResponseError struct {
	Source  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s returned a malformed response: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s returned a malformed response: %s", e.Source, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrMalformedResponse.
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewContractViolationError creates a new ContractViolationError.
func NewContractViolationError(operation, format string, args ...any) *ContractViolationError {
	return &ContractViolationError{
		Operation: operation,
		Message:   fmt.Sprintf(format, args...),
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewMalformedResponseError creates a new MalformedResponseError.
func NewMalformedResponseError(source, message string, cause error) *MalformedResponseError {
	return &MalformedResponseError{
		Source:  source,
		Message: message,
		Cause:   cause,
	}
}

// IsDegradable reports whether err is a collaborator failure that callers
// absorb as "no data" rather than surfacing to the API caller.
func IsDegradable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}
