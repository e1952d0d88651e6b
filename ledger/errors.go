/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All error types in one place for consistency and discoverability. The api
  package maps these onto HTTP statuses; the period package wraps them with
  operation context.

ERROR CATEGORIES:
  1. Validation errors  - malformed requests, rejected before any mutation
  2. Not-found errors   - unknown group/period/contribution/loan
  3. Conflict errors    - closing a closed period, duplicate sequence
  4. Transactional      - store aborted the atomic close; retryable

USAGE:
    if errors.Is(err, ledger.ErrPeriodClosed) {
        // 409: caller must re-fetch state
    }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrGroupNotFound is returned when a referenced group doesn't exist.
	ErrGroupNotFound = errors.New("group not found")

	// ErrMemberNotFound is returned when a referenced member doesn't exist.
	ErrMemberNotFound = errors.New("member not found")

	// ErrPeriodNotFound is returned when a referenced period doesn't exist.
	ErrPeriodNotFound = errors.New("period not found")

	// ErrContributionNotFound is returned when a ledger row doesn't exist.
	// Bulk updates skip it; single-row operations fail with it.
	ErrContributionNotFound = errors.New("member contribution not found")

	// ErrLoanNotFound is returned when no matching loan exists.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrPeriodClosed is returned when mutating a period whose closing
	// aggregates are already populated. At-most-once closure depends on it.
	ErrPeriodClosed = errors.New("period already closed")

	// ErrDuplicateSequence is returned when a period with the same
	// (group, sequence) already exists and cannot be reused.
	ErrDuplicateSequence = errors.New("duplicate period sequence")

	// ErrValidation is returned for malformed requests, before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrTxFailed is returned when the store aborts an atomic operation.
	// No partial state is visible; the caller may retry the whole call.
	ErrTxFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError annotates ErrValidation with the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError annotates ErrPeriodClosed / ErrDuplicateSequence with ids.
type ConflictError struct {
	PeriodID string
	GroupID  GroupID
	Sequence int
	Reason   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on period %s (group %s seq %d): %v",
		e.PeriodID, e.GroupID, e.Sequence, e.Reason)
}

func (e *ConflictError) Unwrap() error { return e.Reason }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrContributionNotFound) ||
		errors.Is(err, ErrLoanNotFound)
}

// IsConflict returns true if the error must surface as a 409: the caller
// holds stale state and must re-fetch before retrying.
func IsConflict(err error) bool {
	return errors.Is(err, ErrPeriodClosed) || errors.Is(err, ErrDuplicateSequence)
}

// IsRetryable returns true if the same call might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTxFailed)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || IsConflict(err)
}
