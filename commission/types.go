/*
Package commission is the commission calculation and reconciliation engine.

PURPOSE:
  Agents log policy transactions (new business, renewals, endorsements,
  cancellations). This package derives what commission is owed on each of
  them, folds carrier statements into an append-only ledger, derives the
  outstanding balance per policy, and proposes renewals for terms that are
  about to end.

KEY CONCEPTS IN THIS FILE (types.go):
  - TransactionType: the policy event tag that drives the agent rate
  - Transaction: one row of the book of business (policy event or
    statement ledger entry)
  - Warning: a non-fatal, row-level data quality finding

DESIGN PRINCIPLES:
  1. Precision: every amount is decimal.Decimal, rounded to cents on output
  2. Derived balances: balance due is computed from rows, never stored
  3. Append-only reconciliation: statements add ledger rows, they never
     overwrite the policy rows they match
  4. Tolerance: bad input produces zeros and warnings, not errors

SEE ALSO:
  - rate.go: agent rate table
  - calculator.go: estimated commission
  - balance.go: balance due and reports
  - renewal.go: renewal identification and materialization
  - reconcile.go: statement ledger builder
  - book.go: the same operations bound to a Store
*/
package commission

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION TYPE
// =============================================================================

// TransactionType is the policy event tag. Values are case-sensitive.
type TransactionType string

const (
	TxNew          TransactionType = "NEW"     // New business
	TxNewBusiness  TransactionType = "NBS"     // New business (carrier variant)
	TxSTL          TransactionType = "STL"     // Straight-through line, new-business family
	TxBrokerRecord TransactionType = "BoR"     // Broker of record change
	TxRenewal      TransactionType = "RWL"     // Renewal
	TxRewrite      TransactionType = "REWRITE" // Rewritten policy
	TxEndorsement  TransactionType = "END"     // Endorsement
	TxPolicyChange TransactionType = "PCH"     // Policy change
	TxCancel       TransactionType = "CAN"     // Cancellation
	TxCancelXCL    TransactionType = "XCL"     // Cancellation (carrier variant)
)

// Statement lines use a few long-form spellings on top of the row tags.
const (
	TxEndorsementLong TransactionType = "ENDORSEMENT"
	TxAdjustment      TransactionType = "ADJ"
	TxAdjustmentLong  TransactionType = "ADJUSTMENT"
	TxCancelLong      TransactionType = "CANCEL"
)

// Family groups transaction types that share a commission rule.
type Family string

const (
	FamilyNewBusiness  Family = "new_business"
	FamilyRenewal      Family = "renewal"
	FamilyEndorsement  Family = "endorsement"
	FamilyCancellation Family = "cancellation"
	FamilyUnknown      Family = "unknown"
)

// Family returns the rate family of t.
func (t TransactionType) Family() Family {
	switch t {
	case TxNew, TxNewBusiness, TxSTL, TxBrokerRecord:
		return FamilyNewBusiness
	case TxRenewal, TxRewrite:
		return FamilyRenewal
	case TxEndorsement, TxPolicyChange:
		return FamilyEndorsement
	case TxCancel, TxCancelXCL:
		return FamilyCancellation
	default:
		return FamilyUnknown
	}
}

// Known reports whether t is one of the enumerated row tags.
func (t TransactionType) Known() bool {
	return t.Family() != FamilyUnknown
}

// IsCancellation reports whether t is in the cancellation family.
func (t TransactionType) IsCancellation() bool {
	return t.Family() == FamilyCancellation
}

// TransactionTypes lists every enumerated row tag in display order.
func TransactionTypes() []TransactionType {
	return []TransactionType{
		TxNew, TxNewBusiness, TxSTL, TxBrokerRecord,
		TxRenewal, TxRewrite,
		TxEndorsement, TxPolicyChange,
		TxCancel, TxCancelXCL,
	}
}

// =============================================================================
// TRANSACTION - One policy event or statement ledger entry
// =============================================================================

// StatementSuffix tags the ids of rows produced by reconciliation.
const StatementSuffix = "-STMT-"

type Transaction struct {
	TransactionID     string
	ClientID          string
	PolicyNumber      string
	PriorPolicyNumber string
	Customer          string
	PolicyType        string
	CarrierName       string
	TransactionType   TransactionType

	EffectiveDate         Date
	PolicyOriginationDate Date
	ExpirationDate        Date
	OriginalEffectiveDate Date

	PremiumSold               decimal.Decimal
	PolicyGrossCommPct        decimal.Decimal
	AgencyEstimatedCommission decimal.Decimal
	AgentEstimatedCommission  decimal.Decimal

	// Populated by reconciliation
	AgentPaidAmount         decimal.Decimal
	AgencyCommReceived      decimal.Decimal
	StatementDate           Date
	StatementID             string
	ReconciledTransactionID string

	Notes string

	// Optimistic concurrency; set by the store
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BalanceDue is estimated agent commission minus what has been paid.
func (t Transaction) BalanceDue() decimal.Decimal {
	return BalanceDue(t)
}

// IsStatementEntry reports whether the row was produced by reconciliation.
func (t Transaction) IsStatementEntry() bool {
	return t.StatementID != "" ||
		t.ReconciledTransactionID != "" ||
		strings.Contains(t.TransactionID, StatementSuffix)
}

// =============================================================================
// WARNING - Non-fatal, row-level finding
// =============================================================================

const (
	WarnRateFallback       = "rate_fallback"
	WarnUnknownMergeType   = "unknown_merge_type"
	WarnStandaloneEntry    = "standalone_entry"
	WarnAmbiguousMatch     = "ambiguous_match"
	WarnMissingExpiration  = "missing_expiration_date"
	WarnMissingStatementDt = "missing_statement_date"
)

// Warning is attached to the row it concerns. It never aborts a batch.
type Warning struct {
	Code          string
	Message       string
	TransactionID string
	PolicyNumber  string
}

func (w Warning) String() string {
	return w.Code + ": " + w.Message
}
