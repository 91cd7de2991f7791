/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built books of business for demos. Each scenario resets the
	store, records policy rows through the same factory and book the API
	uses, and optionally applies a carrier statement.

AVAILABLE SCENARIOS:

	new-business:    A handful of NEW policies, nothing paid yet
	renewal-season:  Terms expiring inside the renewal window, one lapsed
	statement-month: New business plus an applied statement with an
	                 endorsement, a cancellation and an unmatched line

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Record policy rows via factory.TransactionJSON
 3. Optionally reconcile a statement batch

	Dates are relative to the engine clock so renewal windows always have
	something to show.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "renewal-season"}

NOTE:

	Scenarios reset the store. Only mount them in development/demo
	environments (server.scenarios in config).

SEE ALSO:
  - handlers.go: route handlers
  - factory/transaction.go: TransactionJSON
*/
package api

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "new-business",
		Name:        "New Business",
		Description: "Three new policies with estimated commission and nothing paid",
		Category:    "commissions",
	},
	{
		ID:          "renewal-season",
		Name:        "Renewal Season",
		Description: "Terms expiring in the next weeks, one already lapsed, one renewed",
		Category:    "renewals",
	},
	{
		ID:          "statement-month",
		Name:        "Statement Month",
		Description: "New business reconciled against a carrier statement with END and CAN lines",
		Category:    "reconciliation",
	},
}

// resetter is implemented by stores that can be cleared for demos.
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "new-business":
		load = h.loadNewBusinessScenario
	case "renewal-season":
		load = h.loadRenewalSeasonScenario
	case "statement-month":
		load = h.loadStatementMonthScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		h.writeDomainError(w, "Failed to reset store", err)
		return
	}
	if err := load(ctx); err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetBook clears all data.
func (h *Handler) ResetBook(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reset store", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Book.Store.(resetter)
	if !ok {
		return eris.New("store does not support reset")
	}
	if err := rs.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// day renders today+offset in ISO form.
func (h *Handler) day(offset int) string {
	return commission.DateOf(h.Book.Engine.Now()).AddDays(offset).String()
}

func (h *Handler) record(ctx context.Context, rows ...factory.TransactionJSON) ([]commission.Transaction, error) {
	out := make([]commission.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := h.Factory.FromJSON(row)
		if err != nil {
			return nil, err
		}
		stored, _, err := h.Book.Record(ctx, tx)
		if err != nil {
			return nil, eris.Wrapf(err, "scenario: record %s", row.PolicyNumber)
		}
		out = append(out, stored)
	}
	return out, nil
}

func (h *Handler) loadNewBusinessScenario(ctx context.Context) error {
	_, err := h.record(ctx,
		factory.TransactionJSON{
			Customer: "Acme Roofing", PolicyNumber: "GL-100234", PolicyType: "GL", CarrierName: "Hartland Mutual",
			TransactionType: "NEW", EffectiveDate: h.day(-30), PolicyOriginationDate: h.day(-30), ExpirationDate: h.day(335),
			PremiumSold: "$4,800.00", PolicyGrossCommPct: "15%",
		},
		factory.TransactionJSON{
			Customer: "Blue Harbor Cafe", PolicyNumber: "BOP-77120", PolicyType: "BOP", CarrierName: "Granite State",
			TransactionType: "NEW", EffectiveDate: h.day(-12), PolicyOriginationDate: h.day(-12), ExpirationDate: h.day(353),
			PremiumSold: "2,150", PolicyGrossCommPct: "12.5",
		},
		factory.TransactionJSON{
			Customer: "Cedar Lane Dental", PolicyNumber: "WC-5501", PolicyType: "WC", CarrierName: "Hartland Mutual",
			TransactionType: "BoR", EffectiveDate: h.day(-5), ExpirationDate: h.day(360),
			PremiumSold: "9,300.00", PolicyGrossCommPct: "8%",
		},
	)
	return err
}

func (h *Handler) loadRenewalSeasonScenario(ctx context.Context) error {
	txs, err := h.record(ctx,
		factory.TransactionJSON{
			Customer: "Delta Freight", PolicyNumber: "AUTO-3310", PolicyType: "Commercial Auto", CarrierName: "Granite State",
			TransactionType: "NEW", EffectiveDate: h.day(-345), PolicyOriginationDate: h.day(-345), ExpirationDate: h.day(20),
			PremiumSold: "12,400", PolicyGrossCommPct: "10%",
		},
		factory.TransactionJSON{
			Customer: "Evergreen Florist", PolicyNumber: "BOP-4821", PolicyType: "BOP", CarrierName: "Hartland Mutual",
			TransactionType: "RWL", EffectiveDate: h.day(-355), ExpirationDate: h.day(10),
			OriginalEffectiveDate: h.day(-1085), PremiumSold: "1,980", PolicyGrossCommPct: "15%",
		},
		factory.TransactionJSON{
			Customer: "Fulton Bakery", PolicyNumber: "GL-2290", PolicyType: "GL", CarrierName: "Granite State",
			TransactionType: "NEW", EffectiveDate: h.day(-370), PolicyOriginationDate: h.day(-370), ExpirationDate: h.day(-5),
			PremiumSold: "3,200", PolicyGrossCommPct: "15%",
		},
		factory.TransactionJSON{
			Customer: "Granite Peak Gym", PolicyNumber: "GL-8800", PolicyType: "GL", CarrierName: "Hartland Mutual",
			TransactionType: "NEW", EffectiveDate: h.day(-100), PolicyOriginationDate: h.day(-100), ExpirationDate: h.day(265),
			PremiumSold: "5,000", PolicyGrossCommPct: "12%",
		},
	)
	if err != nil {
		return err
	}

	// The lapsed term is renewed so its policy drops off the list.
	term := h.Book.Engine.Config.Term
	if term.IsZero() {
		term = commission.TermLength{Months: 12}
	}
	_, _, err = h.Book.Renew(ctx, txs[2].TransactionID, commission.RenewalOptions{Term: term})
	return err
}

func (h *Handler) loadStatementMonthScenario(ctx context.Context) error {
	if err := h.loadNewBusinessScenario(ctx); err != nil {
		return err
	}

	statement := factory.StatementJSON{
		StatementDate: h.day(0),
		Lines: []factory.StatementLineJSON{
			{
				Customer: "Acme Roofing", PolicyNumber: "GL-100234", EffectiveDate: h.day(-30),
				TransactionType: "NEW", AgentPaidAmount: "300.00", AgencyCommReceived: "720.00",
			},
			{
				Customer: "Acme Roofing", PolicyNumber: "GL-100234", EffectiveDate: h.day(-30),
				TransactionType: "END", AgentPaidAmount: "25.00", AgencyCommReceived: "50.00",
			},
			{
				Customer: "Blue Harbor Cafe", PolicyNumber: "BOP-77120", EffectiveDate: h.day(-12),
				TransactionType: "CAN", AgentPaidAmount: "40.00",
			},
			{
				Customer: "Harbor Lights Marina", PolicyNumber: "MAR-1200", EffectiveDate: h.day(-60),
				TransactionType: "NEW", AgentPaidAmount: "115.00", AgencyCommReceived: "230.00",
			},
		},
	}

	lines := make([]commission.StatementLine, 0, len(statement.Lines))
	for _, lj := range statement.Lines {
		lj.StatementDate = statement.StatementDate
		line, err := h.Factory.LineFromJSON(lj)
		if err != nil {
			return err
		}
		lines = append(lines, line)
	}
	_, err := h.Book.Reconcile(ctx, lines, false)
	return err
}
