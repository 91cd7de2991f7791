package commission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/commission-engine/commission"
)

func TestResolveRate_Table(t *testing.T) {
	origination := date("2025-01-01")
	later := date("2025-06-01")

	tests := []struct {
		name        string
		txType      commission.TransactionType
		origination commission.Date
		effective   commission.Date
		want        string
		fallback    bool
	}{
		{"new", commission.TxNew, origination, later, "0.50", false},
		{"nbs", commission.TxNewBusiness, origination, later, "0.50", false},
		{"stl", commission.TxSTL, origination, later, "0.50", false},
		{"broker of record", commission.TxBrokerRecord, origination, later, "0.50", false},
		{"endorsement on origination day", commission.TxEndorsement, origination, origination, "0.50", false},
		{"endorsement later", commission.TxEndorsement, origination, later, "0.25", false},
		{"policy change on origination day", commission.TxPolicyChange, later, later, "0.50", false},
		{"policy change later", commission.TxPolicyChange, origination, later, "0.25", false},
		{"endorsement without dates", commission.TxEndorsement, commission.Date{}, commission.Date{}, "0.25", false},
		{"renewal", commission.TxRenewal, origination, later, "0.25", false},
		{"rewrite", commission.TxRewrite, origination, later, "0.25", false},
		{"cancel", commission.TxCancel, origination, later, "0", false},
		{"xcl", commission.TxCancelXCL, origination, later, "0", false},
		{"unknown", "FOO", origination, later, "0.25", true},
		{"empty", "", origination, later, "0.25", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate := commission.ResolveRate(tt.txType, tt.origination, tt.effective)
			assertMoney(t, tt.want, rate.Value)
			assert.Equal(t, tt.fallback, rate.Fallback)
		})
	}
}

func TestResolveRate_EndorsementMissingOneDate(t *testing.T) {
	// Only one date known: treated as a later change
	rate := commission.ResolveRate(commission.TxEndorsement, commission.Date{}, date("2025-01-01"))
	assertMoney(t, "0.25", rate.Value)

	rate = commission.ResolveRate(commission.TxEndorsement, date("2025-01-01"), commission.Date{})
	assertMoney(t, "0.25", rate.Value)
}

func TestTransactionType_Family(t *testing.T) {
	assert.True(t, commission.TxCancel.IsCancellation())
	assert.True(t, commission.TxCancelXCL.IsCancellation())
	assert.False(t, commission.TxNew.IsCancellation())
	assert.True(t, commission.TxRewrite.Known())
	assert.False(t, commission.TransactionType("BOGUS").Known())
}
