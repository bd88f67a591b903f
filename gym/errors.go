/*
errors.go - Error taxonomy for the session ledger

SENTINELS (use with errors.Is):
  ErrValidation             malformed input, detected before any transaction
  ErrNotFound               fighter, coach or attendance record missing
  ErrConflict               second record for the same fighter and day
  ErrInsufficientSessions   consuming status with an empty balance, no override
  ErrTransactionFailed      unexpected failure inside the atomic block
  ErrConcurrentModification store reported a lock conflict; safe to retry
  ErrDuplicateDay           storage-level unique violation on (fighter, day)

STRUCTURED ERRORS carry the user-facing message and unwrap to a sentinel.
The messages are what the admin UI shows; InsufficientSessionsError in
particular names the fighter and balance so the UI can offer an override.
*/
package gym

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrInsufficientSessions   = errors.New("insufficient sessions")
	ErrTransactionFailed      = errors.New("transaction failed")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrDuplicateDay           = errors.New("duplicate attendance on same day")
)

// ValidationError is returned for malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing resource, e.g. "Fighter not found".
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError is returned by the single-create path when the fighter
// already has a record in the requested day bucket.
type ConflictError struct {
	FighterID  FighterID
	Day        Day
	ExistingID AttendanceID
}

func (e *ConflictError) Error() string {
	return "Fighter already has an attendance record for this date"
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InsufficientSessionsError is returned when a session-consuming status is
// requested for a fighter with no sessions left and no admin override.
type InsufficientSessionsError struct {
	FighterID    FighterID
	FighterName  string
	SessionsLeft int
}

func (e *InsufficientSessionsError) Error() string {
	return fmt.Sprintf("%s has no sessions left (current balance: %d). Use admin override to record attendance anyway.",
		e.FighterName, e.SessionsLeft)
}

func (e *InsufficientSessionsError) Unwrap() error { return ErrInsufficientSessions }

// TransactionError wraps an unexpected failure inside an atomic block.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction failed: %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() []error { return []error{ErrTransactionFailed, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Kind is a stable machine-readable name for an error, surfaced to API
// clients alongside the message.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInsufficientSessions):
		return "insufficient_sessions"
	default:
		return "internal_error"
	}
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to the caller's input or a
// business rule, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInsufficientSessions)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
