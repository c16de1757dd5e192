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
	ErrNotFound = errors.New("entity not found")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")

	// Consistency errors
	ErrConflict           = errors.New("uniqueness conflict")
	ErrPreconditionNotMet = errors.New("precondition not met")
	ErrInvariantViolation = errors.New("invariant violation")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "quiz", "challenge", "profile"
	Op      string // Operation that failed, e.g., "Submit", "Claim"
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

// Profile domain errors
var (
	ErrProfileNotFound  = NewDomainError("profile", "Find", ErrNotFound, "profile not found")
	ErrInvalidProfileID = NewDomainError("profile", "Validate", ErrInvalidID, "invalid profile ID")
	ErrNegativeXP       = NewDomainError("profile", "Increment", ErrInvariantViolation, "xp delta cannot be negative")
)

// Quiz domain errors
var (
	ErrInvalidQuizID      = NewDomainError("quiz", "Validate", ErrInvalidID, "invalid quiz ID")
	ErrNoQuestions        = NewDomainError("quiz", "Validate", ErrValidation, "total questions must be positive")
	ErrScoreOutOfRange    = NewDomainError("quiz", "Validate", ErrValueOutOfRange, "score exceeds total questions")
	ErrNegativeScore      = NewDomainError("quiz", "Validate", ErrNegativeValue, "score cannot be negative")
	ErrNegativeTime       = NewDomainError("quiz", "Validate", ErrNegativeValue, "time values cannot be negative")
	ErrDuplicateAward     = NewDomainError("quiz", "Submit", ErrInvariantViolation, "single-attempt quiz has more than one recorded attempt")
	ErrNegativeAward      = NewDomainError("quiz", "Submit", ErrInvariantViolation, "computed xp award is negative")
	ErrAttemptNotFound    = NewDomainError("quiz", "Find", ErrNotFound, "attempt not found")
	ErrUnknownCategory    = NewDomainError("personality", "Classify", ErrValidation, "unknown answer category")
	ErrNoAnswers          = NewDomainError("personality", "Classify", ErrValidation, "no answers to classify")
	ErrSubmissionMismatch = NewDomainError("quiz", "Submit", ErrValidation, "submission id already used for a different quiz")
)

// Challenge domain errors
var (
	ErrChallengeNotFound = NewDomainError("challenge", "Find", ErrNotFound, "challenge not found")
	ErrClaimInFuture     = NewDomainError("challenge", "Claim", ErrFutureTimestamp, "claim date is in the future")
	ErrClaimTooOld       = NewDomainError("challenge", "Claim", ErrValidation, "claim date is too far in the past")
	ErrDailyStreakUnmet  = NewDomainError("challenge", "Claim", ErrPreconditionNotMet, "daily streak requires a lesson and a quiz on the claim date")
)

// Lesson domain errors
var (
	ErrInvalidLessonID = NewDomainError("lesson", "Validate", ErrInvalidID, "invalid lesson ID")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrFutureTimestamp)
}

// IsPreconditionNotMet checks if an eligibility condition failed.
func IsPreconditionNotMet(err error) bool {
	return errors.Is(err, ErrPreconditionNotMet)
}

// IsInvariantViolation checks if the error signals corrupted state.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// StoreUnavailable wraps a backend failure so callers can match it with IsRetryable.
func StoreUnavailable(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrStoreUnavailable, "store unavailable", err)
}
