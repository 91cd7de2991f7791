/*
renewal.go - Renewal candidates and renewal transactions

IDENTIFY:
  1. Keep NEW and RWL rows (statement entries excluded).
  2. Group by policy number; the row with the latest expiration date is the
     policy's current term. Ties: later CreatedAt wins, then the lexically
     greater transaction id.
  3. Keep terms whose expiration < today + lookahead. Already-expired terms
     are included.

MATERIALIZE:
  old expiration -> new effective
  new effective + term -> new expiration
  type RWL, fresh id, prior policy number and original inception preserved.

  The term length has no built-in default: carriers write six-month and
  annual terms, so the caller must say which one applies.
*/
package commission

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RENEWAL CANDIDATE
// =============================================================================

// RenewalCandidate is a policy whose current term ends inside the window.
// It is derived on every scan and never stored.
type RenewalCandidate struct {
	PolicyNumber   string
	Customer       string
	ExpirationDate Date
	DaysRemaining  int
	Source         Transaction
}

// Expired reports whether the term has already ended as of the scan date.
func (c RenewalCandidate) Expired() bool {
	return c.DaysRemaining < 0
}

// isRenewalSource reports whether t can define a policy's current term.
func isRenewalSource(t Transaction) bool {
	if t.IsStatementEntry() {
		return false
	}
	return t.TransactionType == TxNew || t.TransactionType == TxRenewal
}

// newerTerm reports whether a should replace b as the current term.
func newerTerm(a, b Transaction) bool {
	if !a.ExpirationDate.Equal(b.ExpirationDate) {
		return a.ExpirationDate.After(b.ExpirationDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.TransactionID > b.TransactionID
}

// CurrentTerms returns the current NEW/RWL term of every policy in txs,
// keyed by policy number.
func CurrentTerms(txs []Transaction) (map[string]Transaction, []Warning) {
	current := make(map[string]Transaction)
	var warnings []Warning
	for _, t := range txs {
		if !isRenewalSource(t) {
			continue
		}
		if t.ExpirationDate.IsZero() {
			warnings = append(warnings, Warning{
				Code:          WarnMissingExpiration,
				Message:       "term has no expiration date and cannot be renewed",
				TransactionID: t.TransactionID,
				PolicyNumber:  t.PolicyNumber,
			})
			continue
		}
		if prev, ok := current[t.PolicyNumber]; !ok || newerTerm(t, prev) {
			current[t.PolicyNumber] = t
		}
	}

	// A term renewed under a new policy number is carried by its successor.
	var superseded []string
	for _, t := range current {
		if t.PriorPolicyNumber == "" || t.PriorPolicyNumber == t.PolicyNumber {
			continue
		}
		if prev, ok := current[t.PriorPolicyNumber]; ok && newerTerm(t, prev) {
			superseded = append(superseded, t.PriorPolicyNumber)
		}
	}
	for _, p := range superseded {
		delete(current, p)
	}
	return current, warnings
}

// IdentifyRenewals returns one candidate per policy whose current term
// expires before today + lookaheadDays, soonest first.
func IdentifyRenewals(txs []Transaction, today Date, lookaheadDays int) ([]RenewalCandidate, []Warning) {
	current, warnings := CurrentTerms(txs)
	horizon := today.AddDays(lookaheadDays)

	var out []RenewalCandidate
	for _, t := range current {
		if !t.ExpirationDate.Before(horizon) {
			continue
		}
		out = append(out, RenewalCandidate{
			PolicyNumber:   t.PolicyNumber,
			Customer:       t.Customer,
			ExpirationDate: t.ExpirationDate,
			DaysRemaining:  today.DaysUntil(t.ExpirationDate),
			Source:         t,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpirationDate.Equal(out[j].ExpirationDate) {
			return out[i].ExpirationDate.Before(out[j].ExpirationDate)
		}
		return out[i].PolicyNumber < out[j].PolicyNumber
	})
	return out, warnings
}

// =============================================================================
// RENEWAL MATERIALIZER
// =============================================================================

// TermLength is the length of a renewed policy term.
type TermLength struct {
	Months int
}

func (tl TermLength) IsZero() bool { return tl.Months <= 0 }

func (tl TermLength) String() string {
	return fmt.Sprintf("%d months", tl.Months)
}

// RenewalOptions carries the renewal term and optional overrides.
type RenewalOptions struct {
	Term TermLength

	// NewPolicyNumber replaces the policy number when the carrier issues a
	// new one on renewal. Empty keeps the current number.
	NewPolicyNumber string

	// PremiumSold replaces the source premium when the renewal is quoted
	// at a different price.
	PremiumSold *decimal.Decimal
}

// MaterializeRenewal synthesizes the RWL transaction for c. The result is
// not persisted.
func MaterializeRenewal(c RenewalCandidate, opts RenewalOptions, ids IDGenerator, now time.Time) (Transaction, []Warning, error) {
	if opts.Term.IsZero() {
		return Transaction{}, nil, ErrTermLengthRequired
	}
	id, err := ids.NewID()
	if err != nil {
		return Transaction{}, nil, err
	}

	src := c.Source
	effective := src.ExpirationDate

	policyNumber := src.PolicyNumber
	if opts.NewPolicyNumber != "" {
		policyNumber = opts.NewPolicyNumber
	}
	premium := src.PremiumSold
	if opts.PremiumSold != nil {
		premium = *opts.PremiumSold
	}

	original := src.OriginalEffectiveDate
	if original.IsZero() {
		original = src.PolicyOriginationDate
	}
	if original.IsZero() {
		original = src.EffectiveDate
	}

	renewal := Transaction{
		TransactionID:         id,
		ClientID:              src.ClientID,
		PolicyNumber:          policyNumber,
		PriorPolicyNumber:     src.PolicyNumber,
		Customer:              src.Customer,
		PolicyType:            src.PolicyType,
		CarrierName:           src.CarrierName,
		TransactionType:       TxRenewal,
		EffectiveDate:         effective,
		PolicyOriginationDate: src.PolicyOriginationDate,
		ExpirationDate:        effective.AddMonths(opts.Term.Months),
		OriginalEffectiveDate: original,
		PremiumSold:           premium,
		PolicyGrossCommPct:    src.PolicyGrossCommPct,
		Notes:                 fmt.Sprintf("Renewal of %s", src.TransactionID),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	renewal, warnings := ApplyCommission(renewal)
	return renewal, warnings, nil
}
