package factory

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
)

func TestParseTransaction_LooseAmounts(t *testing.T) {
	// GIVEN: a form with formatted money and a US-style date
	body := []byte(`{
		"customer": " Acme Roofing ",
		"policy_number": "POL-1001",
		"transaction_type": "NEW",
		"effective_date": "1/15/2025",
		"expiration_date": "2026-01-15",
		"premium_sold": "$1,000.00",
		"policy_gross_comm_pct": "15%"
	}`)

	// WHEN: parsed
	tx, err := NewTransactionFactory().ParseTransaction(body)

	// THEN: values are normalized
	require.NoError(t, err)
	assert.Equal(t, "Acme Roofing", tx.Customer)
	assert.Equal(t, commission.TxNew, tx.TransactionType)
	assert.Equal(t, "2025-01-15", tx.EffectiveDate.String())
	assert.True(t, tx.PremiumSold.Equal(decimal.RequireFromString("1000")))
	assert.True(t, tx.PolicyGrossCommPct.Equal(decimal.RequireFromString("15")))
	assert.True(t, tx.PolicyOriginationDate.IsZero())
}

func TestParseTransaction_NumbersKeepPrecision(t *testing.T) {
	body := []byte(`{"policy_number": "P", "transaction_type": "RWL", "premium_sold": 1234.57, "policy_gross_comm_pct": 12.5}`)

	tx, err := NewTransactionFactory().ParseTransaction(body)

	require.NoError(t, err)
	assert.Equal(t, "1234.57", tx.PremiumSold.String())
	assert.Equal(t, "12.5", tx.PolicyGrossCommPct.String())
}

func TestParseTransaction_GarbageAmountIsZero(t *testing.T) {
	body := []byte(`{"policy_number": "P", "transaction_type": "NEW", "premium_sold": "call me"}`)

	tx, err := NewTransactionFactory().ParseTransaction(body)

	require.NoError(t, err)
	assert.True(t, tx.PremiumSold.IsZero())
}

func TestParseTransaction_Errors(t *testing.T) {
	f := NewTransactionFactory()

	_, err := f.ParseTransaction([]byte(`{"transaction_type": "NEW"}`))
	assert.Error(t, err, "policy number required")

	_, err = f.ParseTransaction([]byte(`{"policy_number": "P", "effective_date": "yesterday"}`))
	assert.Error(t, err)

	_, err = f.ParseTransaction([]byte(`not json`))
	assert.Error(t, err)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewTransactionFactory()
	tx, err := f.ParseTransaction([]byte(`{"policy_number": "P", "transaction_type": "END",
		"effective_date": "2025-03-01", "premium_sold": "250", "policy_gross_comm_pct": "10", "version": 4}`))
	require.NoError(t, err)

	back, err := f.FromJSON(f.ToJSON(tx))

	require.NoError(t, err)
	assert.Equal(t, tx.PolicyNumber, back.PolicyNumber)
	assert.Equal(t, int64(4), back.Version)
	assert.True(t, tx.PremiumSold.Equal(back.PremiumSold))
	assert.Equal(t, "2025-03-01", back.EffectiveDate.String())
}

// =============================================================================
// STATEMENT FILES
// =============================================================================

func TestParseStatement_YAML(t *testing.T) {
	data := []byte(`
statement_date: 2025-02-15
lines:
  - customer: Acme Roofing
    policy_number: POL-1001
    effective_date: 2025-01-01
    transaction_type: END
    agent_paid_amount: 25.00
    agency_comm_received: "$50.00"
  - customer: Acme Roofing
    policy_number: POL-1001
    effective_date: 2025-01-01
    transaction_type: CAN
    agent_paid_amount: "40"
    statement_date: 2025-02-20
`)

	lines, err := NewTransactionFactory().ParseStatement(data)

	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, commission.TxEndorsement, lines[0].TransactionType)
	assert.True(t, lines[0].AgentPaidAmount.Equal(decimal.RequireFromString("25")))
	assert.True(t, lines[0].AgencyCommReceived.Equal(decimal.RequireFromString("50")))
	assert.Equal(t, "2025-02-15", lines[0].StatementDate.String())
	assert.Equal(t, "2025-02-20", lines[1].StatementDate.String())
}

func TestParseStatement_YAMLNonFiniteAmountsAreZero(t *testing.T) {
	data := []byte(`
lines:
  - customer: Acme Roofing
    policy_number: POL-1001
    effective_date: 2025-01-01
    transaction_type: END
    agent_paid_amount: .nan
    agency_comm_received: -.inf
`)

	var lines []commission.StatementLine
	var err error
	require.NotPanics(t, func() {
		lines, err = NewTransactionFactory().ParseStatement(data)
	})

	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].AgentPaidAmount.IsZero())
	assert.True(t, lines[0].AgencyCommReceived.IsZero())
}

func TestParseStatement_JSONList(t *testing.T) {
	data := []byte(`[{"customer": "A", "policy_number": "P1", "effective_date": "2025-01-01",
		"transaction_type": "NEW", "agent_paid_amount": "$75.00"}]`)

	lines, err := NewTransactionFactory().ParseStatement(data)

	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].StatementDate.IsZero())
	assert.True(t, lines[0].AgentPaidAmount.Equal(decimal.RequireFromString("75")))
}

func TestParseStatement_JSONDocument(t *testing.T) {
	data := []byte(`{"statement_date": "03/31/2025", "lines": [
		{"customer": "A", "policy_number": "P1", "effective_date": "2025-01-01", "transaction_type": "RWL"}]}`)

	lines, err := NewTransactionFactory().ParseStatement(data)

	require.NoError(t, err)
	assert.Equal(t, "2025-03-31", lines[0].StatementDate.String())
}

func TestParseStatement_Empty(t *testing.T) {
	f := NewTransactionFactory()

	_, err := f.ParseStatement([]byte("  "))
	assert.True(t, errors.Is(err, commission.ErrEmptyStatement))

	_, err = f.ParseStatement([]byte(`{"lines": []}`))
	assert.True(t, errors.Is(err, commission.ErrEmptyStatement))
}

func TestParseStatement_LineWithoutPolicy(t *testing.T) {
	_, err := NewTransactionFactory().ParseStatement([]byte(`[{"customer": "A"}]`))
	assert.Error(t, err)
}
