/*
balance.go - Balance due per transaction, per policy, per statement

PURPOSE:
  Balance due is what the agent is still owed:

    balance_due = agent_estimated_commission - agent_paid_amount

  It is never stored. A policy accumulates one row per sale, endorsement,
  renewal and statement payment over its life, so a policy's balance is the
  SUM over all of its rows, not the value of its latest row.

EXAMPLE:
  NEW  est 75.00  paid  0.00
  END  est 12.50  paid  0.00
  STMT est  0.00  paid 60.00
  -----------------------------
  policy balance due = 87.50 - 60.00 = 27.50
*/
package commission

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/money"
)

// BalanceDue returns round(agent_estimated - agent_paid, 2) for one row.
func BalanceDue(t Transaction) decimal.Decimal {
	return money.Round(t.AgentEstimatedCommission.Sub(t.AgentPaidAmount))
}

// =============================================================================
// POLICY BALANCE
// =============================================================================

// PolicyBalance aggregates every row of one policy number.
type PolicyBalance struct {
	PolicyNumber string
	Customer     string
	ClientID     string
	Transactions int

	AgentEstimated  decimal.Decimal
	AgentPaid       decimal.Decimal
	AgencyEstimated decimal.Decimal
	AgencyReceived  decimal.Decimal
	BalanceDue      decimal.Decimal
}

func (pb *PolicyBalance) add(t Transaction) {
	if pb.Customer == "" {
		pb.Customer = t.Customer
	}
	if pb.ClientID == "" {
		pb.ClientID = t.ClientID
	}
	pb.Transactions++
	pb.AgentEstimated = pb.AgentEstimated.Add(t.AgentEstimatedCommission)
	pb.AgentPaid = pb.AgentPaid.Add(t.AgentPaidAmount)
	pb.AgencyEstimated = pb.AgencyEstimated.Add(t.AgencyEstimatedCommission)
	pb.AgencyReceived = pb.AgencyReceived.Add(t.AgencyCommReceived)
	pb.BalanceDue = money.Round(pb.AgentEstimated.Sub(pb.AgentPaid))
}

// PolicyBalanceFor sums the rows of txs that belong to policyNumber.
// A policy with no rows has a zero balance.
func PolicyBalanceFor(policyNumber string, txs []Transaction) PolicyBalance {
	pb := PolicyBalance{PolicyNumber: policyNumber}
	for _, t := range txs {
		if t.PolicyNumber == policyNumber {
			pb.add(t)
		}
	}
	return pb
}

// =============================================================================
// BALANCE REPORT
// =============================================================================

// BalanceReport is the per-policy table plus grand totals.
type BalanceReport struct {
	Policies   []PolicyBalance
	Totals     PolicyBalance
	Statements []StatementTotal
}

// Outstanding returns only the policies that still have money due.
func (r BalanceReport) Outstanding() []PolicyBalance {
	var out []PolicyBalance
	for _, pb := range r.Policies {
		if !pb.BalanceDue.IsZero() {
			out = append(out, pb)
		}
	}
	return out
}

// BuildBalanceReport groups txs by policy number, sorted by policy number.
func BuildBalanceReport(txs []Transaction) BalanceReport {
	byPolicy := make(map[string]*PolicyBalance)
	var report BalanceReport

	for _, t := range txs {
		pb, ok := byPolicy[t.PolicyNumber]
		if !ok {
			pb = &PolicyBalance{PolicyNumber: t.PolicyNumber}
			byPolicy[t.PolicyNumber] = pb
		}
		pb.add(t)
		report.Totals.add(t)
	}
	report.Totals.Customer = ""
	report.Totals.ClientID = ""

	report.Policies = make([]PolicyBalance, 0, len(byPolicy))
	for _, pb := range byPolicy {
		report.Policies = append(report.Policies, *pb)
	}
	sort.Slice(report.Policies, func(i, j int) bool {
		return report.Policies[i].PolicyNumber < report.Policies[j].PolicyNumber
	})

	report.Statements = StatementTotals(txs)
	return report
}

// =============================================================================
// STATEMENT TOTALS
// =============================================================================

// StatementTotal sums the ledger rows of one carrier statement date.
type StatementTotal struct {
	StatementDate  Date
	Lines          int
	CommissionPaid decimal.Decimal
	AgencyReceived decimal.Decimal
}

// StatementTotals groups rows with a statement date, oldest first.
func StatementTotals(txs []Transaction) []StatementTotal {
	byDate := make(map[string]*StatementTotal)
	for _, t := range txs {
		if t.StatementDate.IsZero() {
			continue
		}
		key := t.StatementDate.String()
		st, ok := byDate[key]
		if !ok {
			st = &StatementTotal{StatementDate: t.StatementDate}
			byDate[key] = st
		}
		st.Lines++
		st.CommissionPaid = st.CommissionPaid.Add(t.AgentPaidAmount)
		st.AgencyReceived = st.AgencyReceived.Add(t.AgencyCommReceived)
	}

	out := make([]StatementTotal, 0, len(byDate))
	for _, st := range byDate {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StatementDate.Before(out[j].StatementDate)
	})
	return out
}
