/*
Package sqlite provides a SQLite-backed commission.Store.

KEY TABLES:
  transactions: every policy row and statement ledger entry
  statements:   one summary row per applied statement batch

NUMERIC STORAGE:
  Amounts are stored as TEXT decimal strings and read back with
  decimal.NewFromString, so nothing passes through float64.

VERSIONING:
  Each row carries a version. Update and ApplyReconciliation use
  "WHERE transaction_id = ? AND version = ?" and treat zero affected rows on
  an existing id as a concurrent modification.

APPEND-ONLY STATEMENTS:
  ApplyReconciliation only INSERTs ledger rows and bumps the version of the
  rows they match. It never rewrites amounts on existing rows, and nothing
  in this package DELETEs.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; ":memory:" databases are pinned to a
  single connection so every query sees the same schema.

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging).

USAGE:
  store, err := sqlite.New("./data/commissions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  book := commission.NewBook(store, engine)

MIGRATION:
  Schema is created on New() with CREATE TABLE IF NOT EXISTS.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
)

// timeLayout keeps fixed-width timestamps so TEXT ordering is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements commission.Store using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open database")
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate database")
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		transaction_id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL DEFAULT '',
		policy_number TEXT NOT NULL,
		prior_policy_number TEXT NOT NULL DEFAULT '',
		customer TEXT NOT NULL DEFAULT '',
		policy_type TEXT NOT NULL DEFAULT '',
		carrier_name TEXT NOT NULL DEFAULT '',
		transaction_type TEXT NOT NULL,
		effective_date TEXT NOT NULL DEFAULT '',
		policy_origination_date TEXT NOT NULL DEFAULT '',
		expiration_date TEXT NOT NULL DEFAULT '',
		original_effective_date TEXT NOT NULL DEFAULT '',
		premium_sold TEXT NOT NULL DEFAULT '0',
		policy_gross_comm_pct TEXT NOT NULL DEFAULT '0',
		agency_estimated_commission TEXT NOT NULL DEFAULT '0',
		agent_estimated_commission TEXT NOT NULL DEFAULT '0',
		agent_paid_amount TEXT NOT NULL DEFAULT '0',
		agency_comm_received TEXT NOT NULL DEFAULT '0',
		statement_date TEXT NOT NULL DEFAULT '',
		statement_id TEXT NOT NULL DEFAULT '',
		reconciled_transaction_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_policy
		ON transactions(policy_number);
	CREATE INDEX IF NOT EXISTS idx_transactions_customer
		ON transactions(customer);
	CREATE INDEX IF NOT EXISTS idx_transactions_client
		ON transactions(client_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_type
		ON transactions(transaction_type);
	CREATE INDEX IF NOT EXISTS idx_transactions_created
		ON transactions(created_at, transaction_id);

	-- For reconciliation match lookups
	CREATE INDEX IF NOT EXISTS idx_transactions_match
		ON transactions(policy_number, effective_date, customer);
	CREATE INDEX IF NOT EXISTS idx_transactions_reconciled
		ON transactions(reconciled_transaction_id) WHERE reconciled_transaction_id != '';

	-- Statement batches
	CREATE TABLE IF NOT EXISTS statements (
		statement_id TEXT PRIMARY KEY,
		statement_date TEXT NOT NULL DEFAULT '',
		line_count INTEGER NOT NULL DEFAULT 0,
		total_commission_paid TEXT NOT NULL DEFAULT '0',
		total_agency_received TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_statements_date
		ON statements(statement_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS (commission.Store interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const transactionColumns = `transaction_id, client_id, policy_number, prior_policy_number, customer,
	policy_type, carrier_name, transaction_type, effective_date, policy_origination_date,
	expiration_date, original_effective_date, premium_sold, policy_gross_comm_pct,
	agency_estimated_commission, agent_estimated_commission, agent_paid_amount,
	agency_comm_received, statement_date, statement_id, reconciled_transaction_id, notes,
	version, created_at, updated_at`

// Insert adds a row with version 1.
func (s *Store) Insert(ctx context.Context, tx commission.Transaction) (commission.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx = s.stamp(tx)
	if err := insertTx(ctx, s.db, tx); err != nil {
		return commission.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) stamp(tx commission.Transaction) commission.Transaction {
	tx.Version = 1
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now()
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return tx
}

func insertTx(ctx context.Context, db execer, tx commission.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		tx.TransactionID,
		tx.ClientID,
		tx.PolicyNumber,
		tx.PriorPolicyNumber,
		tx.Customer,
		tx.PolicyType,
		tx.CarrierName,
		string(tx.TransactionType),
		tx.EffectiveDate.String(),
		tx.PolicyOriginationDate.String(),
		tx.ExpirationDate.String(),
		tx.OriginalEffectiveDate.String(),
		tx.PremiumSold.String(),
		tx.PolicyGrossCommPct.String(),
		tx.AgencyEstimatedCommission.String(),
		tx.AgentEstimatedCommission.String(),
		tx.AgentPaidAmount.String(),
		tx.AgencyCommReceived.String(),
		tx.StatementDate.String(),
		tx.StatementID,
		tx.ReconciledTransactionID,
		tx.Notes,
		tx.Version,
		tx.CreatedAt.Format(timeLayout),
		tx.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return commission.ErrDuplicateTransactionID
		}
		return eris.Wrapf(err, "sqlite: insert transaction %s", tx.TransactionID)
	}
	return nil
}

// Get returns one row.
func (s *Store) Get(ctx context.Context, transactionID string) (commission.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(ctx, s.db, transactionID)
}

func get(ctx context.Context, db queryer, transactionID string) (commission.Transaction, error) {
	txs, err := queryTransactions(ctx, db,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = ?`, transactionID)
	if err != nil {
		return commission.Transaction{}, err
	}
	if len(txs) == 0 {
		return commission.Transaction{}, commission.ErrTransactionNotFound
	}
	return txs[0], nil
}

// List returns rows matching filter, oldest first.
func (s *Store) List(ctx context.Context, filter commission.Filter) ([]commission.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.PolicyNumber != "" {
		where = append(where, "policy_number = ?")
		args = append(args, filter.PolicyNumber)
	}
	if len(filter.PolicyNumbers) > 0 {
		where = append(where, "policy_number IN ("+placeholders(len(filter.PolicyNumbers))+")")
		for _, p := range filter.PolicyNumbers {
			args = append(args, p)
		}
	}
	if filter.Customer != "" {
		where = append(where, "customer = ?")
		args = append(args, filter.Customer)
	}
	if filter.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if len(filter.TransactionTypes) > 0 {
		where = append(where, "transaction_type IN ("+placeholders(len(filter.TransactionTypes))+")")
		for _, t := range filter.TransactionTypes {
			args = append(args, string(t))
		}
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, transaction_id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return queryTransactions(ctx, s.db, query, args...)
}

// Update overwrites a row when its version is unchanged.
func (s *Store) Update(ctx context.Context, tx commission.Transaction) (commission.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE transactions SET
		client_id = ?, policy_number = ?, prior_policy_number = ?, customer = ?,
		policy_type = ?, carrier_name = ?, transaction_type = ?, effective_date = ?,
		policy_origination_date = ?, expiration_date = ?, original_effective_date = ?,
		premium_sold = ?, policy_gross_comm_pct = ?, agency_estimated_commission = ?,
		agent_estimated_commission = ?, agent_paid_amount = ?, agency_comm_received = ?,
		statement_date = ?, notes = ?, version = version + 1, updated_at = ?
		WHERE transaction_id = ? AND version = ?`

	res, err := s.db.ExecContext(ctx, query,
		tx.ClientID, tx.PolicyNumber, tx.PriorPolicyNumber, tx.Customer,
		tx.PolicyType, tx.CarrierName, string(tx.TransactionType), tx.EffectiveDate.String(),
		tx.PolicyOriginationDate.String(), tx.ExpirationDate.String(), tx.OriginalEffectiveDate.String(),
		tx.PremiumSold.String(), tx.PolicyGrossCommPct.String(), tx.AgencyEstimatedCommission.String(),
		tx.AgentEstimatedCommission.String(), tx.AgentPaidAmount.String(), tx.AgencyCommReceived.String(),
		tx.StatementDate.String(), tx.Notes, s.now().Format(timeLayout),
		tx.TransactionID, tx.Version,
	)
	if err != nil {
		return commission.Transaction{}, eris.Wrapf(err, "sqlite: update transaction %s", tx.TransactionID)
	}
	if err := checkVersioned(ctx, s.db, res, tx.TransactionID, tx.Version); err != nil {
		return commission.Transaction{}, err
	}
	return get(ctx, s.db, tx.TransactionID)
}

// checkVersioned turns a zero-row versioned write into the right error.
func checkVersioned(ctx context.Context, db queryer, res sql.Result, id string, version int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}
	if _, err := get(ctx, db, id); err != nil {
		return err
	}
	return &commission.ConcurrentModificationError{TransactionID: id, ExpectedVersion: version}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ApplyReconciliation writes a statement batch in one database transaction.
func (s *Store) ApplyReconciliation(ctx context.Context, rec commission.Reconciliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin transaction")
	}
	defer sqlTx.Rollback()

	for id, version := range rec.MatchedVersions() {
		res, err := sqlTx.ExecContext(ctx,
			`UPDATE transactions SET version = version + 1 WHERE transaction_id = ? AND version = ?`,
			id, version)
		if err != nil {
			return eris.Wrapf(err, "sqlite: bump version %s", id)
		}
		if err := checkVersioned(ctx, sqlTx, res, id, version); err != nil {
			return err
		}
	}

	for _, entry := range rec.Entries() {
		if err := insertTx(ctx, sqlTx, s.stamp(entry)); err != nil {
			return err
		}
	}

	r := rec.Record()
	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO statements
		(statement_id, statement_date, line_count, total_commission_paid, total_agency_received, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.StatementID, r.StatementDate.String(), r.LineCount,
		r.TotalCommissionPaid.String(), r.TotalAgencyReceived.String(),
		s.stampTime(r.CreatedAt).Format(timeLayout),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert statement %s", r.StatementID)
	}

	return eris.Wrap(sqlTx.Commit(), "sqlite: commit reconciliation")
}

func (s *Store) stampTime(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t.UTC()
}

// ListStatements returns statement batches, newest first.
func (s *Store) ListStatements(ctx context.Context) ([]commission.StatementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT statement_id, statement_date, line_count, total_commission_paid,
		       total_agency_received, created_at
		FROM statements
		ORDER BY created_at DESC, statement_id DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query statements")
	}
	defer rows.Close()

	var out []commission.StatementRecord
	for rows.Next() {
		var (
			r                             commission.StatementRecord
			statementDate, paid, received string
			createdAt                     string
		)
		if err := rows.Scan(&r.StatementID, &statementDate, &r.LineCount, &paid, &received, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan statement")
		}
		r.StatementDate = parseDate(statementDate)
		r.TotalCommissionPaid = parseDecimal(paid)
		r.TotalAgencyReceived = parseDecimal(received)
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

func queryTransactions(ctx context.Context, db queryer, query string, args ...any) ([]commission.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query transactions")
	}
	defer rows.Close()

	var transactions []commission.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (commission.Transaction, error) {
	var (
		tx                                               commission.Transaction
		txType                                           string
		effective, origination, expiration, original     string
		premium, pct, agencyEst, agentEst, paid, received string
		statementDate                                    string
		createdAt, updatedAt                             string
	)

	err := rows.Scan(
		&tx.TransactionID, &tx.ClientID, &tx.PolicyNumber, &tx.PriorPolicyNumber, &tx.Customer,
		&tx.PolicyType, &tx.CarrierName, &txType, &effective, &origination,
		&expiration, &original, &premium, &pct,
		&agencyEst, &agentEst, &paid,
		&received, &statementDate, &tx.StatementID, &tx.ReconciledTransactionID, &tx.Notes,
		&tx.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return tx, eris.Wrap(err, "sqlite: scan transaction")
	}

	tx.TransactionType = commission.TransactionType(txType)
	tx.EffectiveDate = parseDate(effective)
	tx.PolicyOriginationDate = parseDate(origination)
	tx.ExpirationDate = parseDate(expiration)
	tx.OriginalEffectiveDate = parseDate(original)
	tx.PremiumSold = parseDecimal(premium)
	tx.PolicyGrossCommPct = parseDecimal(pct)
	tx.AgencyEstimatedCommission = parseDecimal(agencyEst)
	tx.AgentEstimatedCommission = parseDecimal(agentEst)
	tx.AgentPaidAmount = parseDecimal(paid)
	tx.AgencyCommReceived = parseDecimal(received)
	tx.StatementDate = parseDate(statementDate)
	tx.CreatedAt = parseTime(createdAt)
	tx.UpdatedAt = parseTime(updatedAt)

	return tx, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func parseDate(s string) commission.Date {
	d, _ := commission.ParseDate(s)
	return d
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"transactions", "statements"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "sqlite: reset %s", table)
		}
	}
	return nil
}
