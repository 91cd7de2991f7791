/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the commission model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Every amount leaves the API as a 2dp string ("1234.50") so clients never
  see binary float rounding. Requests accept numbers or loosely formatted
  strings ("$1,234.50", "15%") through factory.TransactionJSON.

VALIDATION:
  Validation is done in handlers and the factory, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/transaction.go: request bodies for rows and statement lines
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/money"
)

func amount(d decimal.Decimal) string {
	return money.Round(d).StringFixed(money.Places)
}

// =============================================================================
// WARNINGS
// =============================================================================

type WarningDTO struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
	PolicyNumber  string `json:"policy_number,omitempty"`
}

func toWarningDTOs(ws []commission.Warning) []WarningDTO {
	out := make([]WarningDTO, len(ws))
	for i, w := range ws {
		out[i] = WarningDTO{Code: w.Code, Message: w.Message, TransactionID: w.TransactionID, PolicyNumber: w.PolicyNumber}
	}
	return out
}

// =============================================================================
// CALCULATION
// =============================================================================

// CalculateRequest is a one-off commission estimate.
type CalculateRequest struct {
	TransactionType       string `json:"transaction_type"`
	PremiumSold           any    `json:"premium_sold"`
	PolicyGrossCommPct    any    `json:"policy_gross_comm_pct"`
	PolicyOriginationDate string `json:"policy_origination_date,omitempty"`
	EffectiveDate         string `json:"effective_date,omitempty"`
	AgencyEstimated       any    `json:"agency_estimated_commission,omitempty"`
}

type CalculationDTO struct {
	TransactionType           string       `json:"transaction_type"`
	AgentRate                 string       `json:"agent_rate"`
	RateFallback              bool         `json:"rate_fallback"`
	AgencyEstimatedCommission string       `json:"agency_estimated_commission"`
	AgentEstimatedCommission  string       `json:"agent_estimated_commission"`
	Display                   string       `json:"display"`
	Warnings                  []WarningDTO `json:"warnings"`
}

func toCalculationDTO(txType string, res commission.CommissionResult) CalculationDTO {
	return CalculationDTO{
		TransactionType:           txType,
		AgentRate:                 res.Rate.Value.StringFixed(money.Places),
		RateFallback:              res.Rate.Fallback,
		AgencyEstimatedCommission: amount(res.AgencyEstimatedCommission),
		AgentEstimatedCommission:  amount(res.AgentEstimatedCommission),
		Display:                   money.FormatCurrency(res.AgentEstimatedCommission),
		Warnings:                  toWarningDTOs(res.Warnings),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a stored row in API responses.
type TransactionDTO struct {
	TransactionID             string    `json:"transaction_id"`
	ClientID                  string    `json:"client_id"`
	Customer                  string    `json:"customer"`
	PolicyNumber              string    `json:"policy_number"`
	PriorPolicyNumber         string    `json:"prior_policy_number,omitempty"`
	PolicyType                string    `json:"policy_type,omitempty"`
	CarrierName               string    `json:"carrier_name,omitempty"`
	TransactionType           string    `json:"transaction_type"`
	EffectiveDate             string    `json:"effective_date,omitempty"`
	PolicyOriginationDate     string    `json:"policy_origination_date,omitempty"`
	ExpirationDate            string    `json:"expiration_date,omitempty"`
	OriginalEffectiveDate     string    `json:"original_effective_date,omitempty"`
	PremiumSold               string    `json:"premium_sold"`
	PolicyGrossCommPct        string    `json:"policy_gross_comm_pct"`
	AgencyEstimatedCommission string    `json:"agency_estimated_commission"`
	AgentEstimatedCommission  string    `json:"agent_estimated_commission"`
	AgentPaidAmount           string    `json:"agent_paid_amount"`
	AgencyCommReceived        string    `json:"agency_comm_received"`
	BalanceDue                string    `json:"balance_due"`
	StatementDate             string    `json:"statement_date,omitempty"`
	StatementID               string    `json:"statement_id,omitempty"`
	ReconciledTransactionID   string    `json:"reconciled_transaction_id,omitempty"`
	IsStatementEntry          bool      `json:"is_statement_entry"`
	Notes                     string    `json:"notes,omitempty"`
	Version                   int64     `json:"version"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

func toTransactionDTO(t commission.Transaction) TransactionDTO {
	return TransactionDTO{
		TransactionID:             t.TransactionID,
		ClientID:                  t.ClientID,
		Customer:                  t.Customer,
		PolicyNumber:              t.PolicyNumber,
		PriorPolicyNumber:         t.PriorPolicyNumber,
		PolicyType:                t.PolicyType,
		CarrierName:               t.CarrierName,
		TransactionType:           string(t.TransactionType),
		EffectiveDate:             t.EffectiveDate.String(),
		PolicyOriginationDate:     t.PolicyOriginationDate.String(),
		ExpirationDate:            t.ExpirationDate.String(),
		OriginalEffectiveDate:     t.OriginalEffectiveDate.String(),
		PremiumSold:               amount(t.PremiumSold),
		PolicyGrossCommPct:        t.PolicyGrossCommPct.String(),
		AgencyEstimatedCommission: amount(t.AgencyEstimatedCommission),
		AgentEstimatedCommission:  amount(t.AgentEstimatedCommission),
		AgentPaidAmount:           amount(t.AgentPaidAmount),
		AgencyCommReceived:        amount(t.AgencyCommReceived),
		BalanceDue:                amount(t.BalanceDue()),
		StatementDate:             t.StatementDate.String(),
		StatementID:               t.StatementID,
		ReconciledTransactionID:   t.ReconciledTransactionID,
		IsStatementEntry:          t.IsStatementEntry(),
		Notes:                     t.Notes,
		Version:                   t.Version,
		CreatedAt:                 t.CreatedAt,
		UpdatedAt:                 t.UpdatedAt,
	}
}

func toTransactionDTOs(txs []commission.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		out[i] = toTransactionDTO(t)
	}
	return out
}

// RecordResponse wraps a written row and the warnings raised computing it.
type RecordResponse struct {
	Transaction TransactionDTO `json:"transaction"`
	Warnings    []WarningDTO   `json:"warnings"`
}

// =============================================================================
// BALANCES
// =============================================================================

type PolicyBalanceDTO struct {
	PolicyNumber    string `json:"policy_number"`
	Customer        string `json:"customer"`
	ClientID        string `json:"client_id,omitempty"`
	Transactions    int    `json:"transactions"`
	AgentEstimated  string `json:"agent_estimated"`
	AgentPaid       string `json:"agent_paid"`
	AgencyEstimated string `json:"agency_estimated"`
	AgencyReceived  string `json:"agency_received"`
	BalanceDue      string `json:"balance_due"`
}

func toPolicyBalanceDTO(pb commission.PolicyBalance) PolicyBalanceDTO {
	return PolicyBalanceDTO{
		PolicyNumber:    pb.PolicyNumber,
		Customer:        pb.Customer,
		ClientID:        pb.ClientID,
		Transactions:    pb.Transactions,
		AgentEstimated:  amount(pb.AgentEstimated),
		AgentPaid:       amount(pb.AgentPaid),
		AgencyEstimated: amount(pb.AgencyEstimated),
		AgencyReceived:  amount(pb.AgencyReceived),
		BalanceDue:      amount(pb.BalanceDue),
	}
}

type StatementTotalDTO struct {
	StatementDate  string `json:"statement_date"`
	Lines          int    `json:"lines"`
	CommissionPaid string `json:"commission_paid"`
	AgencyReceived string `json:"agency_received"`
}

// BalanceReportDTO is the book-wide balance view.
type BalanceReportDTO struct {
	Policies    []PolicyBalanceDTO  `json:"policies"`
	Outstanding int                 `json:"outstanding"`
	Totals      PolicyBalanceDTO    `json:"totals"`
	Statements  []StatementTotalDTO `json:"statements"`
}

func toBalanceReportDTO(r commission.BalanceReport) BalanceReportDTO {
	out := BalanceReportDTO{
		Policies:    make([]PolicyBalanceDTO, len(r.Policies)),
		Outstanding: len(r.Outstanding()),
		Totals:      toPolicyBalanceDTO(r.Totals),
		Statements:  make([]StatementTotalDTO, len(r.Statements)),
	}
	for i, pb := range r.Policies {
		out.Policies[i] = toPolicyBalanceDTO(pb)
	}
	for i, st := range r.Statements {
		out.Statements[i] = StatementTotalDTO{
			StatementDate:  st.StatementDate.String(),
			Lines:          st.Lines,
			CommissionPaid: amount(st.CommissionPaid),
			AgencyReceived: amount(st.AgencyReceived),
		}
	}
	return out
}

// =============================================================================
// RENEWALS
// =============================================================================

type RenewalCandidateDTO struct {
	TransactionID  string `json:"transaction_id"`
	PolicyNumber   string `json:"policy_number"`
	Customer       string `json:"customer"`
	ExpirationDate string `json:"expiration_date"`
	DaysRemaining  int    `json:"days_remaining"`
	Expired        bool   `json:"expired"`
	PremiumSold    string `json:"premium_sold"`
}

// RenewalsResponse lists the candidates of one scan.
type RenewalsResponse struct {
	AsOf       string                `json:"as_of"`
	WindowDays int                   `json:"window_days"`
	Candidates []RenewalCandidateDTO `json:"candidates"`
	Warnings   []WarningDTO          `json:"warnings"`
}

func toRenewalCandidateDTOs(cs []commission.RenewalCandidate) []RenewalCandidateDTO {
	out := make([]RenewalCandidateDTO, len(cs))
	for i, c := range cs {
		out[i] = RenewalCandidateDTO{
			TransactionID:  c.Source.TransactionID,
			PolicyNumber:   c.PolicyNumber,
			Customer:       c.Customer,
			ExpirationDate: c.ExpirationDate.String(),
			DaysRemaining:  c.DaysRemaining,
			Expired:        c.Expired(),
			PremiumSold:    amount(c.Source.PremiumSold),
		}
	}
	return out
}

// RenewRequest overrides parts of a materialized renewal. All fields are optional.
type RenewRequest struct {
	TermMonths      int    `json:"term_months,omitempty"`
	NewPolicyNumber string `json:"new_policy_number,omitempty"`
	PremiumSold     any    `json:"premium_sold,omitempty"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

type BreakdownDTO struct {
	Existing  string `json:"existing"`
	Operation string `json:"operation"`
	Amount    string `json:"amount"`
	Result    string `json:"result"`
}

func toBreakdownDTO(b commission.Breakdown) BreakdownDTO {
	return BreakdownDTO{
		Existing:  amount(b.Existing),
		Operation: b.Operation.Label(),
		Amount:    amount(b.Amount),
		Result:    amount(b.Result),
	}
}

type LineResultDTO struct {
	Index                int            `json:"index"`
	PolicyNumber         string         `json:"policy_number"`
	Customer             string         `json:"customer"`
	TransactionType      string         `json:"transaction_type"`
	MatchedTransactionID string         `json:"matched_transaction_id,omitempty"`
	Commission           BreakdownDTO   `json:"commission"`
	Agency               BreakdownDTO   `json:"agency"`
	Entry                TransactionDTO `json:"entry"`
	Warnings             []WarningDTO   `json:"warnings"`
}

// ReconciliationDTO is the preview or the applied result of a batch.
type ReconciliationDTO struct {
	StatementID         string          `json:"statement_id"`
	StatementDate       string          `json:"statement_date"`
	DryRun              bool            `json:"dry_run"`
	Lines               []LineResultDTO `json:"lines"`
	TotalCommissionPaid string          `json:"total_commission_paid"`
	TotalAgencyReceived string          `json:"total_agency_received"`
}

func toReconciliationDTO(r commission.Reconciliation, dryRun bool) ReconciliationDTO {
	out := ReconciliationDTO{
		StatementID:         r.StatementID,
		StatementDate:       r.StatementDate.String(),
		DryRun:              dryRun,
		Lines:               make([]LineResultDTO, len(r.Lines)),
		TotalCommissionPaid: amount(r.TotalCommissionPaid),
		TotalAgencyReceived: amount(r.TotalAgencyReceived),
	}
	for i, l := range r.Lines {
		dto := LineResultDTO{
			Index:           l.Index,
			PolicyNumber:    l.Line.PolicyNumber,
			Customer:        l.Line.Customer,
			TransactionType: string(l.Line.TransactionType),
			Commission:      toBreakdownDTO(l.Commission),
			Agency:          toBreakdownDTO(l.Agency),
			Entry:           toTransactionDTO(l.Entry),
			Warnings:        toWarningDTOs(l.Warnings),
		}
		if l.Matched != nil {
			dto.MatchedTransactionID = l.Matched.TransactionID
		}
		out.Lines[i] = dto
	}
	return out
}

type StatementRecordDTO struct {
	StatementID         string    `json:"statement_id"`
	StatementDate       string    `json:"statement_date"`
	LineCount           int       `json:"line_count"`
	TotalCommissionPaid string    `json:"total_commission_paid"`
	TotalAgencyReceived string    `json:"total_agency_received"`
	CreatedAt           time.Time `json:"created_at"`
}

func toStatementRecordDTOs(rs []commission.StatementRecord) []StatementRecordDTO {
	out := make([]StatementRecordDTO, len(rs))
	for i, r := range rs {
		out[i] = StatementRecordDTO{
			StatementID:         r.StatementID,
			StatementDate:       r.StatementDate.String(),
			LineCount:           r.LineCount,
			TotalCommissionPaid: amount(r.TotalCommissionPaid),
			TotalAgencyReceived: amount(r.TotalAgencyReceived),
			CreatedAt:           r.CreatedAt,
		}
	}
	return out
}

// =============================================================================
// SESSIONS
// =============================================================================

type CreateSessionRequest struct {
	StatementDate string `json:"statement_date,omitempty"`
}

type SessionLineDTO struct {
	Index           int    `json:"index"`
	Customer        string `json:"customer"`
	PolicyNumber    string `json:"policy_number"`
	EffectiveDate   string `json:"effective_date"`
	TransactionType string `json:"transaction_type"`
	AgentPaidAmount string `json:"agent_paid_amount"`
	AgencyReceived  string `json:"agency_comm_received"`
	StatementDate   string `json:"statement_date,omitempty"`
}

type SessionDTO struct {
	ID            string           `json:"id"`
	StatementDate string           `json:"statement_date,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	Lines         []SessionLineDTO `json:"lines"`
}

func toSessionDTO(s *commission.Session) SessionDTO {
	lines := s.Lines()
	out := SessionDTO{
		ID:            s.ID,
		StatementDate: s.StatementDate.String(),
		CreatedAt:     s.CreatedAt,
		Lines:         make([]SessionLineDTO, len(lines)),
	}
	for i, l := range lines {
		out.Lines[i] = SessionLineDTO{
			Index:           i,
			Customer:        l.Customer,
			PolicyNumber:    l.PolicyNumber,
			EffectiveDate:   l.EffectiveDate.String(),
			TransactionType: string(l.TransactionType),
			AgentPaidAmount: amount(l.AgentPaidAmount),
			AgencyReceived:  amount(l.AgencyCommReceived),
			StatementDate:   l.StatementDate.String(),
		}
	}
	return out
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request body for loading a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
