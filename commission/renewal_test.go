package commission_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
)

func term(id, policy string, txType commission.TransactionType, expires commission.Date) commission.Transaction {
	return commission.Transaction{
		TransactionID:      id,
		PolicyNumber:       policy,
		Customer:           "Customer " + policy,
		TransactionType:    txType,
		EffectiveDate:      expires.AddMonths(-12),
		ExpirationDate:     expires,
		PremiumSold:        dec("1200"),
		PolicyGrossCommPct: dec("10"),
		CreatedAt:          jan1,
	}
}

// =============================================================================
// IDENTIFY
// =============================================================================

func TestIdentifyRenewals_Window(t *testing.T) {
	// GIVEN: one term ending in 10 days and one in 90
	today := date("2025-05-01")
	txs := []commission.Transaction{
		term("A", "SOON", commission.TxNew, today.AddDays(10)),
		term("B", "LATER", commission.TxNew, today.AddDays(90)),
	}

	// WHEN: scanning with a 60-day lookahead
	candidates, warnings := commission.IdentifyRenewals(txs, today, 60)

	// THEN: only the one inside the window is proposed
	assert.Empty(t, warnings)
	require.Len(t, candidates, 1)
	assert.Equal(t, "SOON", candidates[0].PolicyNumber)
	assert.Equal(t, 10, candidates[0].DaysRemaining)
	assert.False(t, candidates[0].Expired())
}

func TestIdentifyRenewals_HorizonIsExclusive(t *testing.T) {
	today := date("2025-05-01")
	txs := []commission.Transaction{
		term("A", "EDGE", commission.TxNew, today.AddDays(60)),
		term("B", "INSIDE", commission.TxNew, today.AddDays(59)),
	}

	candidates, _ := commission.IdentifyRenewals(txs, today, 60)

	require.Len(t, candidates, 1)
	assert.Equal(t, "INSIDE", candidates[0].PolicyNumber)
}

func TestIdentifyRenewals_IncludesExpiredTerms(t *testing.T) {
	today := date("2025-05-01")
	txs := []commission.Transaction{term("A", "GONE", commission.TxRenewal, today.AddDays(-5))}

	candidates, _ := commission.IdentifyRenewals(txs, today, 60)

	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].Expired())
	assert.Equal(t, -5, candidates[0].DaysRemaining)
}

func TestIdentifyRenewals_LatestTermWins(t *testing.T) {
	// GIVEN: a NEW that ended and the RWL that replaced it
	today := date("2025-05-01")
	txs := []commission.Transaction{
		term("A", "P1", commission.TxNew, today.AddDays(5)),
		term("B", "P1", commission.TxRenewal, today.AddDays(370)),
	}

	// THEN: the policy is not due
	candidates, _ := commission.IdentifyRenewals(txs, today, 60)
	assert.Empty(t, candidates)
}

func TestIdentifyRenewals_RenumberedPolicyDropsPrior(t *testing.T) {
	// GIVEN: a term renewed under a new policy number
	today := date("2025-05-01")
	renewed := term("B", "P2", commission.TxRenewal, today.AddDays(375))
	renewed.PriorPolicyNumber = "P1"
	txs := []commission.Transaction{
		term("A", "P1", commission.TxNew, today.AddDays(10)),
		renewed,
	}

	// THEN: neither number is due
	candidates, _ := commission.IdentifyRenewals(txs, today, 60)
	assert.Empty(t, candidates)
}

func TestIdentifyRenewals_IgnoresOtherTypesAndStatementEntries(t *testing.T) {
	today := date("2025-05-01")
	end := term("A", "P1", commission.TxEndorsement, today.AddDays(5))
	stmt := term("B-STMT-20250401", "P2", commission.TxNew, today.AddDays(5))
	stmt.ReconciledTransactionID = "B"

	candidates, _ := commission.IdentifyRenewals([]commission.Transaction{end, stmt}, today, 60)

	assert.Empty(t, candidates)
}

func TestIdentifyRenewals_MissingExpirationWarns(t *testing.T) {
	noExp := term("A", "P1", commission.TxNew, commission.Date{})
	noExp.ExpirationDate = commission.Date{}

	candidates, warnings := commission.IdentifyRenewals([]commission.Transaction{noExp}, date("2025-05-01"), 60)

	assert.Empty(t, candidates)
	require.Len(t, warnings, 1)
	assert.Equal(t, commission.WarnMissingExpiration, warnings[0].Code)
	assert.Equal(t, "A", warnings[0].TransactionID)
}

func TestIdentifyRenewals_TieBreaksOnCreatedAtThenID(t *testing.T) {
	today := date("2025-05-01")
	exp := today.AddDays(5)

	older := term("Z", "P1", commission.TxNew, exp)
	newer := term("A", "P1", commission.TxRenewal, exp)
	newer.CreatedAt = jan1.Add(time.Hour)

	candidates, _ := commission.IdentifyRenewals([]commission.Transaction{older, newer}, today, 60)
	require.Len(t, candidates, 1)
	assert.Equal(t, "A", candidates[0].Source.TransactionID)

	sameTime := term("B", "P1", commission.TxNew, exp)
	candidates, _ = commission.IdentifyRenewals([]commission.Transaction{sameTime, older}, today, 60)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Z", candidates[0].Source.TransactionID)
}

func TestIdentifyRenewals_SortedSoonestFirst(t *testing.T) {
	today := date("2025-05-01")
	txs := []commission.Transaction{
		term("A", "P3", commission.TxNew, today.AddDays(30)),
		term("B", "P2", commission.TxNew, today.AddDays(10)),
		term("C", "P1", commission.TxNew, today.AddDays(30)),
	}

	candidates, _ := commission.IdentifyRenewals(txs, today, 60)

	require.Len(t, candidates, 3)
	assert.Equal(t, []string{"P2", "P1", "P3"}, []string{
		candidates[0].PolicyNumber, candidates[1].PolicyNumber, candidates[2].PolicyNumber,
	})
}

// =============================================================================
// MATERIALIZE
// =============================================================================

func candidateFor(src commission.Transaction) commission.RenewalCandidate {
	return commission.RenewalCandidate{
		PolicyNumber:   src.PolicyNumber,
		Customer:       src.Customer,
		ExpirationDate: src.ExpirationDate,
		Source:         src,
	}
}

func TestMaterializeRenewal_ShiftsTerm(t *testing.T) {
	// GIVEN: an annual term expiring 2025-06-01
	src := term("AB12CD3", "POL-9", commission.TxNew, date("2025-06-01"))
	src.PolicyOriginationDate = date("2024-06-01")
	src.ClientID = "CL12AB3"

	// WHEN: renewing for 12 months
	renewal, warnings, err := commission.MaterializeRenewal(candidateFor(src),
		commission.RenewalOptions{Term: commission.TermLength{Months: 12}}, &seqIDs{prefix: "R"}, jan1)

	// THEN: the new term starts where the old one ended
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "R001", renewal.TransactionID)
	assert.Equal(t, commission.TxRenewal, renewal.TransactionType)
	assert.Equal(t, "2025-06-01", renewal.EffectiveDate.String())
	assert.Equal(t, "2026-06-01", renewal.ExpirationDate.String())
	assert.Equal(t, "POL-9", renewal.PolicyNumber)
	assert.Equal(t, "POL-9", renewal.PriorPolicyNumber)
	assert.Equal(t, "2024-06-01", renewal.OriginalEffectiveDate.String())
	assert.Equal(t, "CL12AB3", renewal.ClientID)
	assert.Equal(t, "Renewal of AB12CD3", renewal.Notes)

	// and its commission is at the renewal rate: 1200 * 10% * 0.25
	assertMoney(t, "120", renewal.AgencyEstimatedCommission)
	assertMoney(t, "30", renewal.AgentEstimatedCommission)
}

func TestMaterializeRenewal_SixMonthTerm(t *testing.T) {
	src := term("A", "P1", commission.TxRenewal, date("2025-01-31"))

	renewal, _, err := commission.MaterializeRenewal(candidateFor(src),
		commission.RenewalOptions{Term: commission.TermLength{Months: 6}}, &seqIDs{}, jan1)

	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", renewal.EffectiveDate.String())
	assert.False(t, renewal.ExpirationDate.IsZero())
	assert.True(t, renewal.ExpirationDate.After(renewal.EffectiveDate))
}

func TestMaterializeRenewal_MonthEndTerm(t *testing.T) {
	cases := []struct {
		expires string
		months  int
		want    string
	}{
		{"2026-08-31", 6, "2027-02-28"},
		{"2025-01-31", 1, "2025-02-28"},
		{"2024-01-31", 1, "2024-02-29"},
		{"2025-03-30", 12, "2026-03-30"},
	}
	for _, tc := range cases {
		t.Run(tc.expires, func(t *testing.T) {
			src := term("A", "P1", commission.TxRenewal, date(tc.expires))

			renewal, _, err := commission.MaterializeRenewal(candidateFor(src),
				commission.RenewalOptions{Term: commission.TermLength{Months: tc.months}}, &seqIDs{}, jan1)

			require.NoError(t, err)
			assert.Equal(t, tc.expires, renewal.EffectiveDate.String())
			assert.Equal(t, tc.want, renewal.ExpirationDate.String())
		})
	}
}

func TestMaterializeRenewal_Overrides(t *testing.T) {
	src := term("A", "OLD-1", commission.TxNew, date("2025-06-01"))
	premium := dec("2000")

	renewal, _, err := commission.MaterializeRenewal(candidateFor(src), commission.RenewalOptions{
		Term:            commission.TermLength{Months: 12},
		NewPolicyNumber: "NEW-1",
		PremiumSold:     &premium,
	}, &seqIDs{}, jan1)

	require.NoError(t, err)
	assert.Equal(t, "NEW-1", renewal.PolicyNumber)
	assert.Equal(t, "OLD-1", renewal.PriorPolicyNumber)
	assertMoney(t, "2000", renewal.PremiumSold)
	assertMoney(t, "50", renewal.AgentEstimatedCommission)
}

func TestMaterializeRenewal_KeepsOriginalInception(t *testing.T) {
	// A second renewal keeps the first term's inception
	src := term("A", "P1", commission.TxRenewal, date("2026-06-01"))
	src.OriginalEffectiveDate = date("2020-06-01")
	src.PolicyOriginationDate = date("2025-06-01")

	renewal, _, err := commission.MaterializeRenewal(candidateFor(src),
		commission.RenewalOptions{Term: commission.TermLength{Months: 12}}, &seqIDs{}, jan1)

	require.NoError(t, err)
	assert.Equal(t, "2020-06-01", renewal.OriginalEffectiveDate.String())
}

func TestMaterializeRenewal_RequiresTermLength(t *testing.T) {
	src := term("A", "P1", commission.TxNew, date("2025-06-01"))

	_, _, err := commission.MaterializeRenewal(candidateFor(src), commission.RenewalOptions{}, &seqIDs{}, jan1)

	assert.True(t, errors.Is(err, commission.ErrTermLengthRequired))
}
