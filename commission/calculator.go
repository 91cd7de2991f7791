package commission

import (
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/money"
)

// =============================================================================
// COMMISSION CALCULATOR
// =============================================================================
//
//   agency_estimated = round(premium_sold * gross_comm_pct / 100, 2)
//   agent_estimated  = round(agency_estimated * agent_rate, 2)
//
// Cancellations always yield a zero agent commission, whatever the premium.

// CommissionInput is everything the calculator reads from a row.
type CommissionInput struct {
	TransactionType       TransactionType
	PremiumSold           decimal.Decimal
	PolicyGrossCommPct    decimal.Decimal
	PolicyOriginationDate Date
	EffectiveDate         Date

	// AgencyEstimated, when set, is used instead of premium * pct.
	AgencyEstimated *decimal.Decimal
}

// NewCommissionInput builds an input from loosely formatted values
// ("$1,000", "15%"). Unreadable numbers become zero.
func NewCommissionInput(txType string, premium, grossPct any, origination, effective Date) CommissionInput {
	return CommissionInput{
		TransactionType:       TransactionType(txType),
		PremiumSold:           money.Parse(premium),
		PolicyGrossCommPct:    money.ParsePercent(grossPct),
		PolicyOriginationDate: origination,
		EffectiveDate:         effective,
	}
}

// InputOf reads the calculator fields from an existing row.
func InputOf(t Transaction) CommissionInput {
	return CommissionInput{
		TransactionType:       t.TransactionType,
		PremiumSold:           t.PremiumSold,
		PolicyGrossCommPct:    t.PolicyGrossCommPct,
		PolicyOriginationDate: t.PolicyOriginationDate,
		EffectiveDate:         t.EffectiveDate,
	}
}

// CommissionResult is the calculator output for one row.
type CommissionResult struct {
	Rate                      Rate
	AgencyEstimatedCommission decimal.Decimal
	AgentEstimatedCommission  decimal.Decimal
	Warnings                  []Warning
}

// Calculate computes agency and agent estimated commission. Pure.
func Calculate(in CommissionInput) CommissionResult {
	rate := ResolveRate(in.TransactionType, in.PolicyOriginationDate, in.EffectiveDate)

	agency := money.Round(money.PercentOf(in.PremiumSold, in.PolicyGrossCommPct))
	if in.AgencyEstimated != nil {
		agency = money.Round(*in.AgencyEstimated)
	}

	agent := money.Round(agency.Mul(rate.Value))
	if in.TransactionType.IsCancellation() {
		agent = decimal.Zero
	}

	res := CommissionResult{
		Rate:                      rate,
		AgencyEstimatedCommission: agency,
		AgentEstimatedCommission:  agent,
	}
	if rate.Fallback {
		res.Warnings = append(res.Warnings, fallbackWarning(in.TransactionType))
	}
	return res
}

// ApplyCommission recomputes the estimated commission fields of t.
// Statement entries carry paid amounts only and are returned unchanged.
func ApplyCommission(t Transaction) (Transaction, []Warning) {
	if t.IsStatementEntry() {
		return t, nil
	}
	res := Calculate(InputOf(t))
	t.AgencyEstimatedCommission = res.AgencyEstimatedCommission
	t.AgentEstimatedCommission = res.AgentEstimatedCommission
	for i := range res.Warnings {
		res.Warnings[i].TransactionID = t.TransactionID
		res.Warnings[i].PolicyNumber = t.PolicyNumber
	}
	return t, res.Warnings
}
