// Package memory provides an in-memory commission.Store (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu           sync.RWMutex
	transactions map[string]commission.Transaction
	statements   []commission.StatementRecord
	now          func() time.Time
}

func New() *Store {
	return &Store{
		transactions: make(map[string]commission.Transaction),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (m *Store) Insert(_ context.Context, tx commission.Transaction) (commission.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(tx)
}

func (m *Store) insertLocked(tx commission.Transaction) (commission.Transaction, error) {
	if _, exists := m.transactions[tx.TransactionID]; exists {
		return commission.Transaction{}, commission.ErrDuplicateTransactionID
	}
	now := m.now()
	tx.Version = 1
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}
	m.transactions[tx.TransactionID] = tx
	return tx, nil
}

func (m *Store) Get(_ context.Context, transactionID string) (commission.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[transactionID]
	if !ok {
		return commission.Transaction{}, commission.ErrTransactionNotFound
	}
	return tx, nil
}

func (m *Store) List(_ context.Context, filter commission.Filter) ([]commission.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []commission.Transaction
	for _, tx := range m.transactions {
		if filter.Matches(tx) {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].TransactionID < result[j].TransactionID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *Store) Update(_ context.Context, tx commission.Transaction) (commission.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.transactions[tx.TransactionID]
	if !ok {
		return commission.Transaction{}, commission.ErrTransactionNotFound
	}
	if current.Version != tx.Version {
		return commission.Transaction{}, &commission.ConcurrentModificationError{
			TransactionID:   tx.TransactionID,
			ExpectedVersion: tx.Version,
		}
	}
	tx.Version = current.Version + 1
	tx.CreatedAt = current.CreatedAt
	tx.UpdatedAt = m.now()
	m.transactions[tx.TransactionID] = tx
	return tx, nil
}

// ApplyReconciliation checks every version and id before writing anything,
// so a failed batch leaves the store untouched.
func (m *Store) ApplyReconciliation(_ context.Context, rec commission.Reconciliation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions := rec.MatchedVersions()
	for id, version := range versions {
		current, ok := m.transactions[id]
		if !ok {
			return commission.ErrTransactionNotFound
		}
		if current.Version != version {
			return &commission.ConcurrentModificationError{TransactionID: id, ExpectedVersion: version}
		}
	}
	entries := rec.Entries()
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if _, exists := m.transactions[e.TransactionID]; exists || seen[e.TransactionID] {
			return commission.ErrDuplicateTransactionID
		}
		seen[e.TransactionID] = true
	}

	for id := range versions {
		current := m.transactions[id]
		current.Version++
		m.transactions[id] = current
	}
	for _, e := range entries {
		if _, err := m.insertLocked(e); err != nil {
			return err
		}
	}
	m.statements = append(m.statements, rec.Record())
	return nil
}

func (m *Store) ListStatements(_ context.Context) ([]commission.StatementRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]commission.StatementRecord(nil), m.statements...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Len returns the number of stored rows.
func (m *Store) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transactions)
}

// Reset clears all data (for demo scenarios).
func (m *Store) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = make(map[string]commission.Transaction)
	m.statements = nil
	return nil
}
