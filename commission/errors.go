/*
errors.go - Error types for the commission engine

ERROR CATEGORIES:
  1. Store errors - uniqueness, missing rows, version conflicts
  2. Input errors - requests the engine refuses (no term length, empty batch)

  Row-level data problems (bad numbers, unknown transaction types, no
  policy match) are NOT errors. They degrade to defaults and surface as
  Warning values on the row.

USAGE:
  if errors.Is(err, commission.ErrConcurrentModification) {
      // rebuild against fresh rows and retry
  }
*/
package commission

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConcurrentModification is returned when a row's version changed
	// between read and write.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateTransactionID is returned when an id is already stored.
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")

	// ErrTransactionNotFound is returned when a referenced row doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrTermLengthRequired is returned when a renewal is materialized
	// without a configured term length.
	ErrTermLengthRequired = errors.New("renewal term length is not configured")

	// ErrEmptyStatement is returned when a reconciliation batch has no lines.
	ErrEmptyStatement = errors.New("statement has no lines")

	// ErrSessionNotFound is returned for an unknown reconciliation session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrLineIndexOutOfRange is returned when removing a pending line that doesn't exist.
	ErrLineIndexOutOfRange = errors.New("statement line index out of range")

	// ErrNotRenewable is returned when a renewal is requested from a row
	// that is not a NEW or RWL term.
	ErrNotRenewable = errors.New("transaction is not a renewable term")

	// ErrStatementEntryEdit is returned when an edit targets a reconciliation row.
	ErrStatementEntryEdit = errors.New("statement entries are append-only")

	// ErrReservedTransactionID is returned when a policy row is recorded
	// with an id in the statement entry form.
	ErrReservedTransactionID = errors.New("transaction id is reserved for statement entries")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ConcurrentModificationError names the row whose version moved.
type ConcurrentModificationError struct {
	TransactionID   string
	ExpectedVersion int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("transaction %s changed since version %d", e.TransactionID, e.ExpectedVersion)
}

func (e *ConcurrentModificationError) Unwrap() error {
	return ErrConcurrentModification
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateTransactionID) ||
		errors.Is(err, ErrTermLengthRequired) ||
		errors.Is(err, ErrEmptyStatement) ||
		errors.Is(err, ErrLineIndexOutOfRange) ||
		errors.Is(err, ErrNotRenewable) ||
		errors.Is(err, ErrStatementEntryEdit) ||
		errors.Is(err, ErrReservedTransactionID)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}
