package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleTx(id string) commission.Transaction {
	return commission.Transaction{
		TransactionID:             id,
		ClientID:                  "CL00001",
		PolicyNumber:              "POL-1",
		Customer:                  "Acme Roofing",
		PolicyType:                "GL",
		CarrierName:               "Hartland Mutual",
		TransactionType:           commission.TxNew,
		EffectiveDate:             commission.MustParseDate("2025-01-01"),
		PolicyOriginationDate:     commission.MustParseDate("2025-01-01"),
		ExpirationDate:            commission.MustParseDate("2026-01-01"),
		PremiumSold:               decimal.RequireFromString("1234.56"),
		PolicyGrossCommPct:        decimal.RequireFromString("12.5"),
		AgencyEstimatedCommission: decimal.RequireFromString("154.32"),
		AgentEstimatedCommission:  decimal.RequireFromString("77.16"),
		Notes:                     "first term",
	}
}

func TestSQLite_RoundTrip(t *testing.T) {
	// GIVEN: a transaction with every field set
	ctx := context.Background()
	store := newTestStore(t)

	in := sampleTx("AB12CD3")
	in.PriorPolicyNumber = "POL-0"
	in.OriginalEffectiveDate = commission.MustParseDate("2020-01-01")

	// WHEN: it is stored and read back
	stored, err := store.Insert(ctx, in)
	require.NoError(t, err)
	got, err := store.Get(ctx, "AB12CD3")
	require.NoError(t, err)

	// THEN: decimals and dates survive exactly
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, in.PremiumSold.Equal(got.PremiumSold))
	assert.True(t, in.PolicyGrossCommPct.Equal(got.PolicyGrossCommPct))
	assert.True(t, in.AgentEstimatedCommission.Equal(got.AgentEstimatedCommission))
	assert.Equal(t, "2026-01-01", got.ExpirationDate.String())
	assert.Equal(t, "2020-01-01", got.OriginalEffectiveDate.String())
	assert.True(t, got.StatementDate.IsZero())
	assert.Equal(t, "POL-0", got.PriorPolicyNumber)
	assert.Equal(t, commission.TxNew, got.TransactionType)
	assert.True(t, stored.CreatedAt.Equal(got.CreatedAt))
}

func TestSQLite_DuplicateAndMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Insert(ctx, sampleTx("AB12CD3"))
	require.NoError(t, err)

	_, err = store.Insert(ctx, sampleTx("AB12CD3"))
	assert.True(t, errors.Is(err, commission.ErrDuplicateTransactionID))

	_, err = store.Get(ctx, "nope")
	assert.True(t, errors.Is(err, commission.ErrTransactionNotFound))
}

func TestSQLite_ListFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	a := sampleTx("A")
	a.CreatedAt = base.Add(2 * time.Second)
	b := sampleTx("B")
	b.CreatedAt = base.Add(100 * time.Millisecond)
	b.TransactionType = commission.TxEndorsement
	c := sampleTx("C")
	c.PolicyNumber = "POL-2"
	c.CreatedAt = base
	for _, tx := range []commission.Transaction{a, b, c} {
		_, err := store.Insert(ctx, tx)
		require.NoError(t, err)
	}

	all, err := store.List(ctx, commission.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "C", all[0].TransactionID)
	assert.Equal(t, "B", all[1].TransactionID)
	assert.Equal(t, "A", all[2].TransactionID)

	p1, err := store.List(ctx, commission.Filter{PolicyNumber: "POL-1"})
	require.NoError(t, err)
	assert.Len(t, p1, 2)

	many, err := store.List(ctx, commission.Filter{PolicyNumbers: []string{"POL-1", "POL-2"}, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, many, 2)

	news, err := store.List(ctx, commission.Filter{TransactionTypes: []commission.TransactionType{commission.TxNew}})
	require.NoError(t, err)
	assert.Len(t, news, 2)
}

func TestSQLite_UpdateVersioning(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	stored, err := store.Insert(ctx, sampleTx("AB12CD3"))
	require.NoError(t, err)

	edit := stored
	edit.PremiumSold = decimal.RequireFromString("2000")
	updated, err := store.Update(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.True(t, updated.PremiumSold.Equal(decimal.RequireFromString("2000")))

	// stale writer
	_, err = store.Update(ctx, stored)
	var cme *commission.ConcurrentModificationError
	require.True(t, errors.As(err, &cme))
	assert.Equal(t, int64(1), cme.ExpectedVersion)

	missing := stored
	missing.TransactionID = "nope"
	_, err = store.Update(ctx, missing)
	assert.True(t, errors.Is(err, commission.ErrTransactionNotFound))
}

func TestSQLite_ApplyReconciliation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	stored, err := store.Insert(ctx, sampleTx("AB12CD3"))
	require.NoError(t, err)

	line := commission.StatementLine{
		Customer:           "Acme Roofing",
		PolicyNumber:       "POL-1",
		EffectiveDate:      stored.EffectiveDate,
		TransactionType:    commission.TxNew,
		AgentPaidAmount:    decimal.RequireFromString("50"),
		AgencyCommReceived: decimal.RequireFromString("100"),
		StatementDate:      commission.MustParseDate("2025-02-15"),
	}
	existing, err := store.List(ctx, commission.Filter{PolicyNumber: "POL-1"})
	require.NoError(t, err)
	rec, err := commission.BuildReconciliation([]commission.StatementLine{line}, existing,
		commission.NewCodeGenerator(), time.Now().UTC())
	require.NoError(t, err)

	// WHEN: applied
	require.NoError(t, store.ApplyReconciliation(ctx, rec))

	// THEN: the entry exists and the matched row only moved its version
	entry, err := store.Get(ctx, "AB12CD3-STMT-20250215")
	require.NoError(t, err)
	assert.Equal(t, "AB12CD3", entry.ReconciledTransactionID)
	assert.Equal(t, rec.StatementID, entry.StatementID)
	assert.True(t, entry.AgentPaidAmount.Equal(decimal.RequireFromString("50")))

	matched, err := store.Get(ctx, "AB12CD3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), matched.Version)
	assert.True(t, matched.AgentPaidAmount.IsZero())

	statements, err := store.ListStatements(ctx)
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, "2025-02-15", statements[0].StatementDate.String())
	assert.True(t, statements[0].TotalAgencyReceived.Equal(decimal.RequireFromString("100")))

	// AND: replaying the stale batch is rejected without partial writes
	rec.StatementID = "replay"
	rec.Lines[0].Entry.TransactionID = "AB12CD3-STMT-20250216"
	err = store.ApplyReconciliation(ctx, rec)
	assert.True(t, commission.IsRetryable(err))

	_, err = store.Get(ctx, "AB12CD3-STMT-20250216")
	assert.True(t, errors.Is(err, commission.ErrTransactionNotFound))
	statements, _ = store.ListStatements(ctx)
	assert.Len(t, statements, 1)
}

func TestSQLite_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "commissions.db")

	store, err := New(path)
	require.NoError(t, err)
	_, err = store.Insert(ctx, sampleTx("AB12CD3"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// reopening runs the migration again and keeps the data
	store, err = New(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "AB12CD3")
	require.NoError(t, err)
	assert.Equal(t, "Acme Roofing", got.Customer)
}

func TestSQLite_BookIntegration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	book := commission.NewBook(store, commission.NewEngine(commission.EngineConfig{}, nil, nil))

	tx := sampleTx("")
	tx.PremiumSold = decimal.RequireFromString("1000")
	tx.PolicyGrossCommPct = decimal.RequireFromString("15")
	stored, _, err := book.Record(ctx, tx)
	require.NoError(t, err)

	_, err = book.Reconcile(ctx, []commission.StatementLine{{
		Customer: "Acme Roofing", PolicyNumber: "POL-1", EffectiveDate: stored.EffectiveDate,
		TransactionType: commission.TxEndorsement, AgentPaidAmount: decimal.RequireFromString("25"),
		StatementDate: commission.MustParseDate("2025-03-01"),
	}}, false)
	require.NoError(t, err)

	report, statements, err := book.Report(ctx)
	require.NoError(t, err)
	require.Len(t, report.Policies, 1)
	assert.True(t, report.Policies[0].BalanceDue.Equal(decimal.RequireFromString("50")))
	assert.Len(t, statements, 1)
}

func TestSQLite_Reset(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.Insert(ctx, sampleTx("AB12CD3"))
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))

	txs, err := store.List(ctx, commission.Filter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
	_, err = store.Insert(ctx, sampleTx("AB12CD3"))
	assert.NoError(t, err, "ids are free again after reset")
}
