/*
book.go - The engine bound to a Store

PURPOSE:
  Book is the book of business: the operations the API and CLI expose,
  each one a read from the Store, a pure computation from the Engine, and
  (for writes) one Store call.

RECONCILIATION RETRIES:
  ApplyReconciliation rejects a batch whose matched rows moved since they
  were read. Book reloads, rebuilds the breakdown against the fresh rows and
  tries again, up to MaxRetries times.

FLOW:
  Record   -> Engine.Apply        -> Store.Insert
  Reconcile-> Store.List          -> Engine.Reconcile -> Store.ApplyReconciliation
  Renew    -> Store.Get           -> Engine.Renew     -> Store.Insert
  Report   -> Store.List (+stmts) -> BuildBalanceReport
*/
package commission

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxRetries bounds optimistic concurrency retries and id collisions.
const DefaultMaxRetries = 3

type Book struct {
	Store      Store
	Engine     *Engine
	MaxRetries int
}

func NewBook(store Store, engine *Engine) *Book {
	return &Book{Store: store, Engine: engine, MaxRetries: DefaultMaxRetries}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Record computes the estimated commission of tx and stores it. Missing
// transaction and client ids are generated. Statement entries are only
// written by Reconcile.
func (b *Book) Record(ctx context.Context, tx Transaction) (Transaction, []Warning, error) {
	if strings.Contains(tx.TransactionID, StatementSuffix) {
		return Transaction{}, nil, ErrReservedTransactionID
	}
	tx.StatementID = ""
	tx.ReconciledTransactionID = ""
	tx.StatementDate = Date{}

	tx, warnings := b.Engine.Apply(tx)

	if tx.ClientID == "" {
		id, err := b.Engine.IDs.NewID()
		if err != nil {
			return Transaction{}, nil, err
		}
		tx.ClientID = id
	}

	stored, err := b.insert(ctx, tx, tx.TransactionID == "")
	if err != nil {
		return Transaction{}, nil, err
	}
	return stored, warnings, nil
}

// insert stores tx, generating a fresh id on collision when generateID is set.
func (b *Book) insert(ctx context.Context, tx Transaction, generateID bool) (Transaction, error) {
	for attempt := 0; ; attempt++ {
		if generateID {
			id, err := b.Engine.IDs.NewID()
			if err != nil {
				return Transaction{}, err
			}
			tx.TransactionID = id
		}
		stored, err := b.Store.Insert(ctx, tx)
		if err == nil {
			return stored, nil
		}
		if !generateID || !errors.Is(err, ErrDuplicateTransactionID) || attempt >= b.MaxRetries {
			return Transaction{}, err
		}
	}
}

// Edit overwrites an existing policy row and recomputes its commission.
// tx.Version must be the version the caller read.
func (b *Book) Edit(ctx context.Context, tx Transaction) (Transaction, []Warning, error) {
	current, err := b.Store.Get(ctx, tx.TransactionID)
	if err != nil {
		return Transaction{}, nil, err
	}
	if current.IsStatementEntry() {
		return Transaction{}, nil, ErrStatementEntryEdit
	}
	tx.CreatedAt = current.CreatedAt
	tx.UpdatedAt = b.Engine.Now()

	tx, warnings := b.Engine.Apply(tx)
	updated, err := b.Store.Update(ctx, tx)
	if err != nil {
		return Transaction{}, nil, err
	}
	return updated, warnings, nil
}

func (b *Book) Get(ctx context.Context, transactionID string) (Transaction, error) {
	return b.Store.Get(ctx, transactionID)
}

func (b *Book) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	return b.Store.List(ctx, filter)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconcile builds a statement batch and, unless dryRun, applies it.
func (b *Book) Reconcile(ctx context.Context, lines []StatementLine, dryRun bool) (Reconciliation, error) {
	if len(lines) == 0 {
		return Reconciliation{}, ErrEmptyStatement
	}

	seen := make(map[string]bool)
	var policies []string
	for _, l := range lines {
		if !seen[l.PolicyNumber] {
			seen[l.PolicyNumber] = true
			policies = append(policies, l.PolicyNumber)
		}
	}

	for attempt := 0; ; attempt++ {
		existing, err := b.Store.List(ctx, Filter{PolicyNumbers: policies})
		if err != nil {
			return Reconciliation{}, eris.Wrap(err, "reconcile: load policies")
		}

		rec, err := b.Engine.Reconcile(lines, existing)
		if err != nil {
			return Reconciliation{}, err
		}
		if dryRun {
			return rec, nil
		}

		err = b.Store.ApplyReconciliation(ctx, rec)
		if err == nil {
			b.Engine.Logger.Info("statement reconciled",
				zap.String("statement_id", rec.StatementID),
				zap.String("statement_date", rec.StatementDate.String()),
				zap.Int("lines", len(rec.Lines)),
				zap.String("commission_paid", rec.TotalCommissionPaid.StringFixed(2)),
				zap.String("agency_received", rec.TotalAgencyReceived.StringFixed(2)),
			)
			return rec, nil
		}
		if !IsRetryable(err) || attempt >= b.MaxRetries {
			return Reconciliation{}, err
		}
		b.Engine.Logger.Warn("statement rebuild after concurrent update",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
}

// Statements lists applied statement batches.
func (b *Book) Statements(ctx context.Context) ([]StatementRecord, error) {
	return b.Store.ListStatements(ctx)
}

// =============================================================================
// RENEWALS
// =============================================================================

// Renewals lists renewal candidates as of today.
func (b *Book) Renewals(ctx context.Context, today Date, lookaheadDays int) ([]RenewalCandidate, []Warning, error) {
	txs, err := b.Store.List(ctx, Filter{TransactionTypes: []TransactionType{TxNew, TxRenewal}})
	if err != nil {
		return nil, nil, eris.Wrap(err, "renewals: load terms")
	}
	candidates, warnings := b.Engine.Renewals(txs, today, lookaheadDays)
	return candidates, warnings, nil
}

// Renew materializes and stores the renewal of the term transactionID.
func (b *Book) Renew(ctx context.Context, transactionID string, opts RenewalOptions) (Transaction, []Warning, error) {
	src, err := b.Store.Get(ctx, transactionID)
	if err != nil {
		return Transaction{}, nil, err
	}
	if !isRenewalSource(src) || src.ExpirationDate.IsZero() {
		return Transaction{}, nil, ErrNotRenewable
	}

	today := DateOf(b.Engine.Now())
	candidate := RenewalCandidate{
		PolicyNumber:   src.PolicyNumber,
		Customer:       src.Customer,
		ExpirationDate: src.ExpirationDate,
		DaysRemaining:  today.DaysUntil(src.ExpirationDate),
		Source:         src,
	}

	renewal, warnings, err := b.Engine.Renew(candidate, opts)
	if err != nil {
		return Transaction{}, nil, err
	}
	stored, err := b.insert(ctx, renewal, false)
	if errors.Is(err, ErrDuplicateTransactionID) {
		stored, err = b.insert(ctx, renewal, true)
	}
	if err != nil {
		return Transaction{}, nil, err
	}
	return stored, warnings, nil
}

// =============================================================================
// BALANCES
// =============================================================================

// PolicyBalance sums every row of one policy.
func (b *Book) PolicyBalance(ctx context.Context, policyNumber string) (PolicyBalance, error) {
	txs, err := b.Store.List(ctx, Filter{PolicyNumber: policyNumber})
	if err != nil {
		return PolicyBalance{}, eris.Wrapf(err, "balance: load policy %s", policyNumber)
	}
	return PolicyBalanceFor(policyNumber, txs), nil
}

// Report builds the full balance report and the statement history.
func (b *Book) Report(ctx context.Context) (BalanceReport, []StatementRecord, error) {
	var (
		txs        []Transaction
		statements []StatementRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = b.Store.List(gctx, Filter{})
		return eris.Wrap(err, "report: load transactions")
	})
	g.Go(func() error {
		var err error
		statements, err = b.Store.ListStatements(gctx)
		return eris.Wrap(err, "report: load statements")
	})
	if err := g.Wait(); err != nil {
		return BalanceReport{}, nil, err
	}

	return BuildBalanceReport(txs), statements, nil
}
