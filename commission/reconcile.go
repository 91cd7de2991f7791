/*
reconcile.go - Statement reconciliation ledger builder

PURPOSE:
  Folds manually transcribed carrier statement lines into the book.

PER LINE:
  1. MATCH: exact (policy_number, effective_date, customer) against policy
     rows (statement entries are never match targets). No match means the
     line is recorded standalone.
  2. OPERATION from the line's transaction type:
       END, ENDORSEMENT, ADJ, ADJUSTMENT -> add
       CAN, CANCEL                        -> subtract
       anything else (NEW, RWL, ...)      -> add
     A second NEW line for a policy adds to it, it does not replace it: every
     statement received stays visible.
  3. BREAKDOWN for the commission and agency fields:
       Existing  matched row's estimate + earlier statement amounts linked
                 to that row (stored, and earlier in this batch)
       Amount    signed statement value (+ for add, - for subtract)
       Result    Existing + Amount
  4. ENTRY: the line becomes its own ledger row, id "<base>-STMT-yyyymmdd",
     estimated commission zero, paid/received = signed amounts. The matched
     row is not modified.

CONCURRENCY:
  The Reconciliation records the version of every matched row it read.
  Stores compare those versions when applying it; a mismatch means another
  batch got there first and the breakdown must be rebuilt.
*/
package commission

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/money"
)

// =============================================================================
// INPUT
// =============================================================================

// StatementLine is one manually entered line of a carrier statement.
type StatementLine struct {
	Customer           string
	PolicyType         string
	PolicyNumber       string
	EffectiveDate      Date
	TransactionType    TransactionType
	AgencyCommReceived decimal.Decimal
	AgentPaidAmount    decimal.Decimal
	StatementDate      Date
	Notes              string
}

// =============================================================================
// MERGE OPERATION
// =============================================================================

type MergeOperation string

const (
	MergeAdd      MergeOperation = "add"
	MergeSubtract MergeOperation = "subtract"
)

// Label is the display form used in the reconciliation breakdown.
func (op MergeOperation) Label() string {
	if op == MergeSubtract {
		return "Subtract"
	}
	return "Add"
}

// Sign applies the operation to a statement value.
func (op MergeOperation) Sign(v decimal.Decimal) decimal.Decimal {
	if op == MergeSubtract {
		return v.Neg()
	}
	return v
}

// MergeOperationFor maps a statement transaction type to its operation.
// The second return is false when the type fell through to the default.
func MergeOperationFor(txType TransactionType) (MergeOperation, bool) {
	switch txType {
	case TxEndorsement, TxEndorsementLong, TxAdjustment, TxAdjustmentLong:
		return MergeAdd, true
	case TxCancel, TxCancelLong:
		return MergeSubtract, true
	default:
		return MergeAdd, txType.Known()
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

// Breakdown is the Existing / operation / Result triple shown for audit.
type Breakdown struct {
	Existing  decimal.Decimal
	Operation MergeOperation
	Amount    decimal.Decimal // signed
	Result    decimal.Decimal
}

// LineResult is the outcome for one statement line.
type LineResult struct {
	Index      int
	Line       StatementLine
	Matched    *Transaction
	Operation  MergeOperation
	Commission Breakdown
	Agency     Breakdown
	Entry      Transaction
	Warnings   []Warning
}

// Reconciliation is a built statement batch, ready to be applied.
type Reconciliation struct {
	StatementID         string
	StatementDate       Date
	Lines               []LineResult
	TotalCommissionPaid decimal.Decimal
	TotalAgencyReceived decimal.Decimal
	CreatedAt           time.Time
}

// Entries returns the ledger rows to insert, in line order.
func (r Reconciliation) Entries() []Transaction {
	out := make([]Transaction, len(r.Lines))
	for i, l := range r.Lines {
		out[i] = l.Entry
	}
	return out
}

// MatchedVersions returns the version read for every matched row.
func (r Reconciliation) MatchedVersions() map[string]int64 {
	out := make(map[string]int64)
	for _, l := range r.Lines {
		if l.Matched != nil {
			out[l.Matched.TransactionID] = l.Matched.Version
		}
	}
	return out
}

// Warnings flattens the per-line warnings.
func (r Reconciliation) Warnings() []Warning {
	var out []Warning
	for _, l := range r.Lines {
		out = append(out, l.Warnings...)
	}
	return out
}

// Record summarizes r for the statements table.
func (r Reconciliation) Record() StatementRecord {
	return StatementRecord{
		StatementID:         r.StatementID,
		StatementDate:       r.StatementDate,
		LineCount:           len(r.Lines),
		TotalCommissionPaid: r.TotalCommissionPaid,
		TotalAgencyReceived: r.TotalAgencyReceived,
		CreatedAt:           r.CreatedAt,
	}
}

// StatementRecord is a persisted statement batch summary.
type StatementRecord struct {
	StatementID         string
	StatementDate       Date
	LineCount           int
	TotalCommissionPaid decimal.Decimal
	TotalAgencyReceived decimal.Decimal
	CreatedAt           time.Time
}

// =============================================================================
// BUILDER
// =============================================================================

type matchKey struct {
	policyNumber string
	effective    string
	customer     string
}

func keyOf(policyNumber string, effective Date, customer string) matchKey {
	return matchKey{policyNumber: policyNumber, effective: effective.String(), customer: customer}
}

type running struct {
	commission decimal.Decimal
	agency     decimal.Decimal
}

// BuildReconciliation matches lines against existing and produces the
// ledger entries and breakdowns. existing should hold every row of the
// policies named in the batch, statement entries included.
func BuildReconciliation(lines []StatementLine, existing []Transaction, ids IDGenerator, now time.Time) (Reconciliation, error) {
	if len(lines) == 0 {
		return Reconciliation{}, ErrEmptyStatement
	}

	rec := Reconciliation{
		StatementID:   uuid.NewString(),
		StatementDate: batchStatementDate(lines, now),
		CreatedAt:     now,
	}

	candidates := make(map[matchKey][]Transaction)
	linked := make(map[string]running)
	taken := make(map[string]bool)
	for _, t := range existing {
		taken[t.TransactionID] = true
		if t.IsStatementEntry() {
			if t.ReconciledTransactionID != "" {
				r := linked[t.ReconciledTransactionID]
				r.commission = r.commission.Add(t.AgentPaidAmount)
				r.agency = r.agency.Add(t.AgencyCommReceived)
				linked[t.ReconciledTransactionID] = r
			}
			continue
		}
		k := keyOf(t.PolicyNumber, t.EffectiveDate, t.Customer)
		candidates[k] = append(candidates[k], t)
	}

	for i, line := range lines {
		lr := LineResult{Index: i, Line: line}

		op, known := MergeOperationFor(line.TransactionType)
		lr.Operation = op
		if !known {
			lr.Warnings = append(lr.Warnings, Warning{
				Code:         WarnUnknownMergeType,
				Message:      fmt.Sprintf("unrecognised transaction type %q, amounts added", string(line.TransactionType)),
				PolicyNumber: line.PolicyNumber,
			})
		}

		statementDate := line.StatementDate
		if statementDate.IsZero() {
			statementDate = rec.StatementDate
			lr.Warnings = append(lr.Warnings, Warning{
				Code:         WarnMissingStatementDt,
				Message:      "line has no statement date, batch date " + statementDate.String() + " used",
				PolicyNumber: line.PolicyNumber,
			})
		}

		commissionAmt := money.Round(op.Sign(line.AgentPaidAmount))
		agencyAmt := money.Round(op.Sign(line.AgencyCommReceived))

		var existingComm, existingAgency decimal.Decimal
		matches := candidates[keyOf(line.PolicyNumber, line.EffectiveDate, line.Customer)]
		if len(matches) > 0 {
			m := pickMatch(matches)
			lr.Matched = &m
			if len(matches) > 1 {
				lr.Warnings = append(lr.Warnings, Warning{
					Code:          WarnAmbiguousMatch,
					Message:       fmt.Sprintf("%d rows match, merged into the most recent", len(matches)),
					TransactionID: m.TransactionID,
					PolicyNumber:  line.PolicyNumber,
				})
			}
			prior := linked[m.TransactionID]
			existingComm = m.AgentEstimatedCommission.Add(prior.commission)
			existingAgency = m.AgencyEstimatedCommission.Add(prior.agency)

			prior.commission = prior.commission.Add(commissionAmt)
			prior.agency = prior.agency.Add(agencyAmt)
			linked[m.TransactionID] = prior
		} else {
			lr.Warnings = append(lr.Warnings, Warning{
				Code:         WarnStandaloneEntry,
				Message:      "no policy row matches, recorded standalone",
				PolicyNumber: line.PolicyNumber,
			})
		}

		lr.Commission = Breakdown{
			Existing:  money.Round(existingComm),
			Operation: op,
			Amount:    commissionAmt,
			Result:    money.Round(existingComm.Add(commissionAmt)),
		}
		lr.Agency = Breakdown{
			Existing:  money.Round(existingAgency),
			Operation: op,
			Amount:    agencyAmt,
			Result:    money.Round(existingAgency.Add(agencyAmt)),
		}

		entry, err := ledgerEntry(line, lr.Matched, statementDate, ids, taken)
		if err != nil {
			return Reconciliation{}, err
		}
		entry.StatementID = rec.StatementID
		entry.AgentPaidAmount = commissionAmt
		entry.AgencyCommReceived = agencyAmt
		entry.CreatedAt = now
		entry.UpdatedAt = now
		taken[entry.TransactionID] = true

		for j := range lr.Warnings {
			lr.Warnings[j].TransactionID = entry.TransactionID
		}
		lr.Entry = entry

		rec.TotalCommissionPaid = rec.TotalCommissionPaid.Add(commissionAmt)
		rec.TotalAgencyReceived = rec.TotalAgencyReceived.Add(agencyAmt)
		rec.Lines = append(rec.Lines, lr)
	}
	return rec, nil
}

// pickMatch returns the most recently created row, then the greatest id.
func pickMatch(matches []Transaction) Transaction {
	sorted := append([]Transaction(nil), matches...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].TransactionID > sorted[j].TransactionID
	})
	return sorted[0]
}

// batchStatementDate is the first line statement date, else today.
func batchStatementDate(lines []StatementLine, now time.Time) Date {
	for _, l := range lines {
		if !l.StatementDate.IsZero() {
			return l.StatementDate
		}
	}
	return DateOf(now)
}

func ledgerEntry(line StatementLine, matched *Transaction, statementDate Date, ids IDGenerator, taken map[string]bool) (Transaction, error) {
	entry := Transaction{
		PolicyNumber:    line.PolicyNumber,
		Customer:        line.Customer,
		PolicyType:      line.PolicyType,
		TransactionType: line.TransactionType,
		EffectiveDate:   line.EffectiveDate,
		StatementDate:   statementDate,
		Notes:           line.Notes,
	}

	suffix := StatementSuffix + statementDate.Compact()
	if matched != nil {
		entry.ClientID = matched.ClientID
		entry.CarrierName = matched.CarrierName
		entry.PolicyOriginationDate = matched.PolicyOriginationDate
		entry.ExpirationDate = matched.ExpirationDate
		entry.ReconciledTransactionID = matched.TransactionID
		if entry.PolicyType == "" {
			entry.PolicyType = matched.PolicyType
		}
		if id := matched.TransactionID + suffix; !taken[id] {
			entry.TransactionID = id
			return entry, nil
		}
	}

	for attempt := 0; attempt < 8; attempt++ {
		base, err := ids.NewID()
		if err != nil {
			return Transaction{}, err
		}
		if id := base + suffix; !taken[id] {
			entry.TransactionID = id
			return entry, nil
		}
	}
	return Transaction{}, ErrDuplicateTransactionID
}
