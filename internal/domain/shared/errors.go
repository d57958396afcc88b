// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "assessment", "certificate"
	Op      string // Operation that failed, e.g., "Upsert", "Record"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Progress domain errors
var (
	ErrProgressNotFound      = NewDomainError("progress", "Find", ErrNotFound, "progress record not found")
	ErrProgressAlreadyExists = NewDomainError("progress", "Create", ErrAlreadyExists, "progress record already exists")
	ErrInvalidCompletion     = NewDomainError("progress", "Validate", ErrValueOutOfRange, "completion percentage must be between 0 and 100")
	ErrNegativeTimeSpent     = NewDomainError("progress", "Validate", ErrNegativeValue, "time spent cannot be negative")
	ErrCompletionRegression  = NewDomainError("progress", "Upsert", ErrStateTransition, "completion percentage cannot decrease")
)

// Assessment domain errors
var (
	ErrAssessmentNotFound   = NewDomainError("assessment", "Find", ErrNotFound, "assessment result not found")
	ErrInvalidMaxScore      = NewDomainError("assessment", "Validate", ErrValueOutOfRange, "max score must be greater than zero")
	ErrNegativeScore        = NewDomainError("assessment", "Validate", ErrNegativeValue, "score cannot be negative")
	ErrDuplicateAttempt     = NewDomainError("assessment", "Record", ErrConcurrentModification, "attempt number already taken")
	ErrInvalidAttemptNumber = NewDomainError("assessment", "Validate", ErrValueOutOfRange, "attempt number must be at least 1")
)

// Certificate domain errors
var (
	ErrCertificateNotFound = NewDomainError("certificate", "Find", ErrNotFound, "certificate not found")
	ErrCourseNotCompleted  = NewDomainError("certificate", "Issue", ErrInvalidState, "course is not completed")
	ErrCertificateInvalid  = NewDomainError("certificate", "Validate", ErrInvalidState, "certificate is no longer valid")
)

// Store errors
var (
	ErrStoreUnavailable = NewDomainError("store", "Connect", ErrServiceUnavailable, "record store is unavailable")
	ErrStoreTimeout     = NewDomainError("store", "Query", ErrTimeout, "record store query timed out")
	ErrStoreConflict    = NewDomainError("store", "Tx", ErrConcurrentModification, "transaction conflict")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict checks if the error is a concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrOptimisticLock)
}

// IsTransient checks if the operation can be retried.
// Validation and not-found errors are never transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
