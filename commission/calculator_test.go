package commission_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) commission.Date {
	return commission.MustParseDate(s)
}

// assertMoney compares decimals by value so "150" and "150.00" are equal.
func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{fmt.Sprintf("want %s, got %s", want, got.String())}, msgAndArgs...)...)
}

// seqIDs hands out predictable ids.
type seqIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s%03d", s.prefix, s.n), nil
}

var jan1 = time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)

// =============================================================================
// END-TO-END CALCULATOR SCENARIOS
// =============================================================================

func TestCalculate_NewBusiness(t *testing.T) {
	// GIVEN: premium $1,000 at 15% gross commission, NEW
	in := commission.NewCommissionInput("NEW", "$1,000", "15%", commission.Date{}, commission.Date{})

	// WHEN: calculating
	res := commission.Calculate(in)

	// THEN: agency gets 150.00 and the agent half of it
	assertMoney(t, "150.00", res.AgencyEstimatedCommission)
	assertMoney(t, "75.00", res.AgentEstimatedCommission)
	assert.False(t, res.Rate.Fallback)
	assert.Empty(t, res.Warnings)
}

func TestCalculate_Renewal(t *testing.T) {
	// GIVEN: same premium and rate, RWL
	in := commission.NewCommissionInput("RWL", "$1,000", "15%", commission.Date{}, commission.Date{})

	res := commission.Calculate(in)

	// THEN: the agent gets a quarter
	assertMoney(t, "150.00", res.AgencyEstimatedCommission)
	assertMoney(t, "37.50", res.AgentEstimatedCommission)
}

func TestCalculate_CancellationNeverPaysAgent(t *testing.T) {
	// GIVEN: a CAN with a negative premium
	in := commission.NewCommissionInput("CAN", "-$500", "10%", commission.Date{}, commission.Date{})

	res := commission.Calculate(in)

	// THEN: agency estimate is negative, agent commission is zero
	assertMoney(t, "-50.00", res.AgencyEstimatedCommission)
	assertMoney(t, "0", res.AgentEstimatedCommission)
	assert.True(t, res.AgentEstimatedCommission.IsZero())
}

func TestCalculate_XCLIsCancellation(t *testing.T) {
	in := commission.NewCommissionInput("XCL", 2000, 12, commission.Date{}, commission.Date{})

	res := commission.Calculate(in)

	assertMoney(t, "240.00", res.AgencyEstimatedCommission)
	assert.True(t, res.AgentEstimatedCommission.IsZero())
}

func TestCalculate_UnknownTypeFallsBackWithWarning(t *testing.T) {
	// GIVEN: a transaction type nobody recognises
	in := commission.NewCommissionInput("ZZZ", 1000, 10, commission.Date{}, commission.Date{})

	res := commission.Calculate(in)

	// THEN: renewal rate applied and reported
	assertMoney(t, "25.00", res.AgentEstimatedCommission)
	assert.True(t, res.Rate.Fallback)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, commission.WarnRateFallback, res.Warnings[0].Code)
	assert.Contains(t, res.Warnings[0].Message, "ZZZ")
}

func TestCalculate_MalformedNumbersBecomeZero(t *testing.T) {
	in := commission.NewCommissionInput("NEW", "not a number", "abc%", commission.Date{}, commission.Date{})

	res := commission.Calculate(in)

	assert.True(t, res.AgencyEstimatedCommission.IsZero())
	assert.True(t, res.AgentEstimatedCommission.IsZero())
}

func TestCalculate_PrecomputedAgencyEstimate(t *testing.T) {
	// GIVEN: an agency estimate supplied directly
	agency := dec("99.999")
	in := commission.CommissionInput{
		TransactionType:    commission.TxNew,
		PremiumSold:        dec("1000"),
		PolicyGrossCommPct: dec("15"),
		AgencyEstimated:    &agency,
	}

	res := commission.Calculate(in)

	// THEN: it wins over premium * pct, rounded
	assertMoney(t, "100.00", res.AgencyEstimatedCommission)
	assertMoney(t, "50.00", res.AgentEstimatedCommission)
}

func TestCalculate_RoundsToCents(t *testing.T) {
	// 333.33 * 12.5% = 41.66625 -> 41.67; agent 0.25 -> 10.4175 -> 10.42
	in := commission.NewCommissionInput("RWL", "333.33", "12.5", commission.Date{}, commission.Date{})

	res := commission.Calculate(in)

	assertMoney(t, "41.67", res.AgencyEstimatedCommission)
	assertMoney(t, "10.42", res.AgentEstimatedCommission)
}

func TestCalculate_IsPure(t *testing.T) {
	in := commission.NewCommissionInput("END", "1,250.00", "14", date("2025-03-01"), date("2025-03-01"))

	first := commission.Calculate(in)
	second := commission.Calculate(in)

	assert.True(t, first.AgencyEstimatedCommission.Equal(second.AgencyEstimatedCommission))
	assert.True(t, first.AgentEstimatedCommission.Equal(second.AgentEstimatedCommission))
}

// =============================================================================
// APPLY COMMISSION
// =============================================================================

func TestApplyCommission_FillsEstimates(t *testing.T) {
	tx := commission.Transaction{
		TransactionID:      "AB12CD3",
		PolicyNumber:       "POL-1",
		TransactionType:    commission.TxNew,
		PremiumSold:        dec("1000"),
		PolicyGrossCommPct: dec("15"),
	}

	got, warnings := commission.ApplyCommission(tx)

	assert.Empty(t, warnings)
	assertMoney(t, "150", got.AgencyEstimatedCommission)
	assertMoney(t, "75", got.AgentEstimatedCommission)
}

func TestApplyCommission_WarningCarriesRow(t *testing.T) {
	tx := commission.Transaction{
		TransactionID:   "AB12CD3",
		PolicyNumber:    "POL-1",
		TransactionType: "MYSTERY",
		PremiumSold:     dec("100"),
	}

	_, warnings := commission.ApplyCommission(tx)

	require.Len(t, warnings, 1)
	assert.Equal(t, "AB12CD3", warnings[0].TransactionID)
	assert.Equal(t, "POL-1", warnings[0].PolicyNumber)
}

func TestApplyCommission_StatementEntryUntouched(t *testing.T) {
	// GIVEN: a reconciliation ledger row
	entry := commission.Transaction{
		TransactionID:           "AB12CD3-STMT-20250115",
		PolicyNumber:            "POL-1",
		TransactionType:         commission.TxNew,
		PremiumSold:             dec("1000"),
		PolicyGrossCommPct:      dec("15"),
		AgentPaidAmount:         dec("75"),
		ReconciledTransactionID: "AB12CD3",
	}

	got, warnings := commission.ApplyCommission(entry)

	// THEN: estimates stay zero
	assert.Empty(t, warnings)
	assert.True(t, got.AgentEstimatedCommission.IsZero())
	assert.True(t, got.AgencyEstimatedCommission.IsZero())
}
