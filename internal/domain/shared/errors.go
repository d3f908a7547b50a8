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
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")

	// Business outcome errors
	ErrIneligible = errors.New("eligibility criteria not met")
	ErrExhausted  = errors.New("retry budget exhausted")
	ErrRejected   = errors.New("operation rejected by policy")

	// Concurrency errors
	ErrConcurrencyConflict = errors.New("concurrent write conflict")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "membership", "ranking"
	Op      string // Operation that failed, e.g., "Record", "Allocate"
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

// User/profile domain errors
var (
	ErrUserNotFound    = NewDomainError("profile", "Find", ErrNotFound, "user not found")
	ErrProfileNotFound = NewDomainError("profile", "Find", ErrNotFound, "member profile not found")
	ErrUnknownRole     = NewDomainError("profile", "Validate", ErrInvalidInput, "unknown membership role")
)

// Ledger domain errors
var (
	ErrInvalidTransactionType = NewDomainError("ledger", "Validate", ErrInvalidInput, "invalid transaction type")
	ErrZeroPoints             = NewDomainError("ledger", "Validate", ErrInvalidInput, "points amount cannot be zero")
	ErrWrongPointsSign        = NewDomainError("ledger", "Validate", ErrInvalidInput, "points sign does not match transaction type")
	ErrInsufficientPoints     = NewDomainError("ledger", "Record", ErrRejected, "debit would drive balance negative")
)

// Membership domain errors
var (
	ErrNotEligible         = NewDomainError("membership", "Evaluate", ErrIneligible, "membership criteria not met")
	ErrAlreadyIssued       = NewDomainError("membership", "Award", ErrAlreadyProcessed, "certificate already issued")
	ErrAllocationExhausted = NewDomainError("membership", "Allocate", ErrExhausted, "membership number allocation exhausted")
	ErrNumberTaken         = NewDomainError("membership", "Allocate", ErrAlreadyExists, "membership number already taken")
	ErrNumberAssigned      = NewDomainError("membership", "Allocate", ErrAlreadyExists, "user already holds a membership number")
	ErrCertificateNotFound = NewDomainError("membership", "Find", ErrNotFound, "certificate not found")
)

// Ranking domain errors
var (
	ErrSchoolNotRanked = NewDomainError("ranking", "Position", ErrNotFound, "school not present in standings")
	ErrEmptyStandings  = NewDomainError("ranking", "Compute", ErrEmptyValue, "no schools to rank")
	ErrDuplicateSchool = NewDomainError("ranking", "Compute", ErrAlreadyExists, "school listed twice in standings input")
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
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsConflict checks if the error is a transient write conflict that the
// caller may retry.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsBusinessOutcome checks if the error represents an expected business
// condition rather than a failure (callers routinely branch on these).
func IsBusinessOutcome(err error) bool {
	return errors.Is(err, ErrIneligible) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrRejected)
}
