/*
Package postgres provides a PostgreSQL-backed commission.Store on pgx.

SCHEMA:
  Same two tables as the SQLite store. Amounts are NUMERIC and dates are
  DATE; both travel as text so decimals never pass through float64.

POOL:
  Store depends on the small Pool interface rather than *pgxpool.Pool, so
  tests drive it with pgxmock.

USAGE:
  store, err := postgres.Open(ctx, "postgres://localhost/commissions")
  if err != nil {
      return err
  }
  defer store.Close()
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier is satisfied by both Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const uniqueViolation = "23505"

// Store implements commission.Store on PostgreSQL.
type Store struct {
	pool  Pool
	close func()
	now   func() time.Time
}

// Open connects a pgx pool and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse dsn")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	s := New(pool)
	s.close = pool.Close
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The caller owns the pool.
func New(pool Pool) *Store {
	return &Store{
		pool:  pool,
		close: func() {},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Close() error {
	s.close()
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	transaction_id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL DEFAULT '',
	policy_number TEXT NOT NULL,
	prior_policy_number TEXT NOT NULL DEFAULT '',
	customer TEXT NOT NULL DEFAULT '',
	policy_type TEXT NOT NULL DEFAULT '',
	carrier_name TEXT NOT NULL DEFAULT '',
	transaction_type TEXT NOT NULL,
	effective_date DATE,
	policy_origination_date DATE,
	expiration_date DATE,
	original_effective_date DATE,
	premium_sold NUMERIC NOT NULL DEFAULT 0,
	policy_gross_comm_pct NUMERIC NOT NULL DEFAULT 0,
	agency_estimated_commission NUMERIC NOT NULL DEFAULT 0,
	agent_estimated_commission NUMERIC NOT NULL DEFAULT 0,
	agent_paid_amount NUMERIC NOT NULL DEFAULT 0,
	agency_comm_received NUMERIC NOT NULL DEFAULT 0,
	statement_date DATE,
	statement_id TEXT NOT NULL DEFAULT '',
	reconciled_transaction_id TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	version BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_policy ON transactions(policy_number);
CREATE INDEX IF NOT EXISTS idx_transactions_match ON transactions(policy_number, effective_date, customer);
CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at, transaction_id);

CREATE TABLE IF NOT EXISTS statements (
	statement_id TEXT PRIMARY KEY,
	statement_date DATE,
	line_count INTEGER NOT NULL DEFAULT 0,
	total_commission_paid NUMERIC NOT NULL DEFAULT 0,
	total_agency_received NUMERIC NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);`

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const selectColumns = `transaction_id, client_id, policy_number, prior_policy_number, customer,
	policy_type, carrier_name, transaction_type,
	COALESCE(effective_date::text, ''), COALESCE(policy_origination_date::text, ''),
	COALESCE(expiration_date::text, ''), COALESCE(original_effective_date::text, ''),
	premium_sold::text, policy_gross_comm_pct::text,
	agency_estimated_commission::text, agent_estimated_commission::text,
	agent_paid_amount::text, agency_comm_received::text,
	COALESCE(statement_date::text, ''), statement_id, reconciled_transaction_id, notes,
	version, created_at, updated_at`

const insertSQL = `INSERT INTO transactions (
	transaction_id, client_id, policy_number, prior_policy_number, customer,
	policy_type, carrier_name, transaction_type, effective_date, policy_origination_date,
	expiration_date, original_effective_date, premium_sold, policy_gross_comm_pct,
	agency_estimated_commission, agent_estimated_commission, agent_paid_amount,
	agency_comm_received, statement_date, statement_id, reconciled_transaction_id, notes,
	version, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
	$19, $20, $21, $22, $23, $24, $25)`

func (s *Store) Insert(ctx context.Context, tx commission.Transaction) (commission.Transaction, error) {
	tx = s.stamp(tx)
	if err := insert(ctx, s.pool, tx); err != nil {
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
	return tx
}

func insert(ctx context.Context, q querier, tx commission.Transaction) error {
	_, err := q.Exec(ctx, insertSQL,
		tx.TransactionID, tx.ClientID, tx.PolicyNumber, tx.PriorPolicyNumber, tx.Customer,
		tx.PolicyType, tx.CarrierName, string(tx.TransactionType),
		dateArg(tx.EffectiveDate), dateArg(tx.PolicyOriginationDate),
		dateArg(tx.ExpirationDate), dateArg(tx.OriginalEffectiveDate),
		tx.PremiumSold.String(), tx.PolicyGrossCommPct.String(),
		tx.AgencyEstimatedCommission.String(), tx.AgentEstimatedCommission.String(),
		tx.AgentPaidAmount.String(), tx.AgencyCommReceived.String(),
		dateArg(tx.StatementDate), tx.StatementID, tx.ReconciledTransactionID, tx.Notes,
		tx.Version, tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return commission.ErrDuplicateTransactionID
		}
		return eris.Wrapf(err, "postgres: insert transaction %s", tx.TransactionID)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, transactionID string) (commission.Transaction, error) {
	return get(ctx, s.pool, transactionID)
}

func get(ctx context.Context, q querier, transactionID string) (commission.Transaction, error) {
	txs, err := query(ctx, q, `SELECT `+selectColumns+` FROM transactions WHERE transaction_id = $1`, transactionID)
	if err != nil {
		return commission.Transaction{}, err
	}
	if len(txs) == 0 {
		return commission.Transaction{}, commission.ErrTransactionNotFound
	}
	return txs[0], nil
}

func (s *Store) List(ctx context.Context, filter commission.Filter) ([]commission.Transaction, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.PolicyNumber != "" {
		where = append(where, "policy_number = "+arg(filter.PolicyNumber))
	}
	if len(filter.PolicyNumbers) > 0 {
		where = append(where, "policy_number = ANY("+arg(filter.PolicyNumbers)+")")
	}
	if filter.Customer != "" {
		where = append(where, "customer = "+arg(filter.Customer))
	}
	if filter.ClientID != "" {
		where = append(where, "client_id = "+arg(filter.ClientID))
	}
	if len(filter.TransactionTypes) > 0 {
		types := make([]string, len(filter.TransactionTypes))
		for i, t := range filter.TransactionTypes {
			types[i] = string(t)
		}
		where = append(where, "transaction_type = ANY("+arg(types)+")")
	}

	sql := `SELECT ` + selectColumns + ` FROM transactions`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY created_at, transaction_id"
	if filter.Limit > 0 {
		sql += " LIMIT " + arg(filter.Limit)
	}
	return query(ctx, s.pool, sql, args...)
}

const updateSQL = `UPDATE transactions SET
	client_id = $1, policy_number = $2, prior_policy_number = $3, customer = $4,
	policy_type = $5, carrier_name = $6, transaction_type = $7, effective_date = $8,
	policy_origination_date = $9, expiration_date = $10, original_effective_date = $11,
	premium_sold = $12, policy_gross_comm_pct = $13, agency_estimated_commission = $14,
	agent_estimated_commission = $15, agent_paid_amount = $16, agency_comm_received = $17,
	statement_date = $18, notes = $19, version = version + 1, updated_at = $20
	WHERE transaction_id = $21 AND version = $22`

func (s *Store) Update(ctx context.Context, tx commission.Transaction) (commission.Transaction, error) {
	tag, err := s.pool.Exec(ctx, updateSQL,
		tx.ClientID, tx.PolicyNumber, tx.PriorPolicyNumber, tx.Customer,
		tx.PolicyType, tx.CarrierName, string(tx.TransactionType), dateArg(tx.EffectiveDate),
		dateArg(tx.PolicyOriginationDate), dateArg(tx.ExpirationDate), dateArg(tx.OriginalEffectiveDate),
		tx.PremiumSold.String(), tx.PolicyGrossCommPct.String(), tx.AgencyEstimatedCommission.String(),
		tx.AgentEstimatedCommission.String(), tx.AgentPaidAmount.String(), tx.AgencyCommReceived.String(),
		dateArg(tx.StatementDate), tx.Notes, s.now(),
		tx.TransactionID, tx.Version,
	)
	if err != nil {
		return commission.Transaction{}, eris.Wrapf(err, "postgres: update transaction %s", tx.TransactionID)
	}
	if err := checkVersioned(ctx, s.pool, tag, tx.TransactionID, tx.Version); err != nil {
		return commission.Transaction{}, err
	}
	return get(ctx, s.pool, tx.TransactionID)
}

func checkVersioned(ctx context.Context, q querier, tag pgconn.CommandTag, id string, version int64) error {
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := get(ctx, q, id); err != nil {
		return err
	}
	return &commission.ConcurrentModificationError{TransactionID: id, ExpectedVersion: version}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func (s *Store) ApplyReconciliation(ctx context.Context, rec commission.Reconciliation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for id, version := range rec.MatchedVersions() {
		tag, err := tx.Exec(ctx,
			`UPDATE transactions SET version = version + 1 WHERE transaction_id = $1 AND version = $2`,
			id, version)
		if err != nil {
			return eris.Wrapf(err, "postgres: bump version %s", id)
		}
		if err := checkVersioned(ctx, tx, tag, id, version); err != nil {
			return err
		}
	}

	for _, entry := range rec.Entries() {
		if err := insert(ctx, tx, s.stamp(entry)); err != nil {
			return err
		}
	}

	r := rec.Record()
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err = tx.Exec(ctx, `INSERT INTO statements
		(statement_id, statement_date, line_count, total_commission_paid, total_agency_received, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.StatementID, dateArg(r.StatementDate), r.LineCount,
		r.TotalCommissionPaid.String(), r.TotalAgencyReceived.String(), createdAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert statement %s", r.StatementID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit reconciliation")
}

func (s *Store) ListStatements(ctx context.Context) ([]commission.StatementRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT statement_id, COALESCE(statement_date::text, ''), line_count,
		       total_commission_paid::text, total_agency_received::text, created_at
		FROM statements
		ORDER BY created_at DESC, statement_id DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query statements")
	}
	defer rows.Close()

	var out []commission.StatementRecord
	for rows.Next() {
		var (
			r                             commission.StatementRecord
			statementDate, paid, received string
		)
		if err := rows.Scan(&r.StatementID, &statementDate, &r.LineCount, &paid, &received, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan statement")
		}
		r.StatementDate = parseDate(statementDate)
		r.TotalCommissionPaid = parseDecimal(paid)
		r.TotalAgencyReceived = parseDecimal(received)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate statements")
}

// =============================================================================
// SCANNING
// =============================================================================

func query(ctx context.Context, q querier, sql string, args ...any) ([]commission.Transaction, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query transactions")
	}
	defer rows.Close()

	var out []commission.Transaction
	for rows.Next() {
		var (
			tx                                                commission.Transaction
			txType                                            string
			effective, origination, expiration, original      string
			premium, pct, agencyEst, agentEst, paid, received string
			statementDate                                     string
		)
		err := rows.Scan(
			&tx.TransactionID, &tx.ClientID, &tx.PolicyNumber, &tx.PriorPolicyNumber, &tx.Customer,
			&tx.PolicyType, &tx.CarrierName, &txType,
			&effective, &origination, &expiration, &original,
			&premium, &pct, &agencyEst, &agentEst, &paid, &received,
			&statementDate, &tx.StatementID, &tx.ReconciledTransactionID, &tx.Notes,
			&tx.Version, &tx.CreatedAt, &tx.UpdatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan transaction")
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
		out = append(out, tx)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate transactions")
}

// dateArg sends an unset date as NULL.
func dateArg(d commission.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE transactions, statements"); err != nil {
		return eris.Wrap(err, "postgres: reset")
	}
	return nil
}
