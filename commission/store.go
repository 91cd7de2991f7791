/*
store.go - Persistence interface for the book of business

PURPOSE:
  The engine computes; the Store remembers. Engine functions take rows in
  and hand rows back; only Book talks to a Store.

CONTRACT:
  - Insert fails with ErrDuplicateTransactionID when the id exists.
  - Insert sets Version = 1 and CreatedAt/UpdatedAt when unset.
  - Update succeeds only if the stored Version equals tx.Version, then
    increments it. Otherwise ErrConcurrentModification.
  - ApplyReconciliation is atomic: it checks and bumps the version of every
    matched row, inserts every ledger entry, and records the statement.
    Matched rows' financial fields are never touched.
  - There is no Delete. Financial history is retained.

IMPLEMENTATIONS:
  - store/memory: in-memory, for tests and demos
  - store/sqlite: embedded SQLite (default)
  - store/postgres: pgx pool
*/
package commission

import "context"

// Filter narrows List. Zero fields match everything.
type Filter struct {
	PolicyNumber     string
	PolicyNumbers    []string
	Customer         string
	ClientID         string
	TransactionTypes []TransactionType
	Limit            int
}

// Matches reports whether t passes f. Stores without query support use it.
func (f Filter) Matches(t Transaction) bool {
	if f.PolicyNumber != "" && t.PolicyNumber != f.PolicyNumber {
		return false
	}
	if len(f.PolicyNumbers) > 0 && !containsString(f.PolicyNumbers, t.PolicyNumber) {
		return false
	}
	if f.Customer != "" && t.Customer != f.Customer {
		return false
	}
	if f.ClientID != "" && t.ClientID != f.ClientID {
		return false
	}
	if len(f.TransactionTypes) > 0 {
		found := false
		for _, tt := range f.TransactionTypes {
			if tt == t.TransactionType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Store persists transactions and statement batches.
type Store interface {
	// Insert stores a new row and returns it as stored.
	Insert(ctx context.Context, tx Transaction) (Transaction, error)

	// Get returns one row or ErrTransactionNotFound.
	Get(ctx context.Context, transactionID string) (Transaction, error)

	// List returns matching rows ordered by CreatedAt, then TransactionID.
	List(ctx context.Context, filter Filter) ([]Transaction, error)

	// Update overwrites a row if its version is unchanged.
	Update(ctx context.Context, tx Transaction) (Transaction, error)

	// ApplyReconciliation writes a statement batch atomically.
	ApplyReconciliation(ctx context.Context, rec Reconciliation) error

	// ListStatements returns applied statement batches, newest first.
	ListStatements(ctx context.Context) ([]StatementRecord, error)
}
