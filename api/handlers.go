/*
handlers.go - HTTP API handlers for the commission engine

PURPOSE:
  Exposes the commission book via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to commission.Book.

ENDPOINTS:
  Commissions:
    POST   /api/commissions/calculate          One-off estimate, nothing stored
    POST   /api/commissions/reconcile          Apply a statement batch (?dry_run=true previews)

  Transactions:
    GET    /api/transactions                   List (policy_number, customer, client_id, transaction_type, limit)
    POST   /api/transactions                   Record a row, commission computed
    GET    /api/transactions/{id}              Get one row
    PUT    /api/transactions/{id}              Edit a row (version required)

  Balances:
    GET    /api/policies/{policyNumber}/balance  Zero balance when the policy has no rows
    GET    /api/balances                       Book-wide report

  Renewals:
    GET    /api/renewals                       Candidates (?window_days=, ?as_of=)
    POST   /api/renewals/{id}/renew            Materialize and store the renewal
    POST   /api/renewals/scan                  Run the scheduler scan now
    GET    /api/renewals/scans                 Recent scan results

  Sessions (staged statement entry):
    GET    /api/sessions
    POST   /api/sessions
    GET    /api/sessions/{id}
    DELETE /api/sessions/{id}
    POST   /api/sessions/{id}/lines
    DELETE /api/sessions/{id}/lines/{index}
    POST   /api/sessions/{id}/commit           (?dry_run=true previews)

  Statements / export:
    GET    /api/statements
    GET    /api/export                         ?format=csv|xlsx&table=transactions|balances|statements|all

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, empty batches, no term length
  - 404: Transaction or session not found
  - 409: Duplicate transaction id, or a concurrent modification that
         outlived the retries
  - 500: Internal errors

  Row-level problems (unknown transaction type, unmatched statement line)
  are not errors; they come back in the "warnings" arrays.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - sessions.go: SessionRegistry
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/export"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/money"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Book      *commission.Book
	Factory   *factory.TransactionFactory
	Sessions  *SessionRegistry
	Scheduler *RenewalScheduler
	Logger    *zap.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over book. The renewal scheduler is built
// but not started; the caller decides whether it runs in the background.
func NewHandler(book *commission.Book, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Book:      book,
		Factory:   factory.NewTransactionFactory(),
		Sessions:  NewSessionRegistry(),
		Scheduler: NewRenewalScheduler(book, logger),
		Logger:    logger,
	}
}

// =============================================================================
// COMMISSION HANDLERS
// =============================================================================

// Calculate returns the commission estimate for one set of inputs.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	origination, err := commission.ParseDate(req.PolicyOriginationDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy_origination_date", err)
		return
	}
	effective, err := commission.ParseDate(req.EffectiveDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_date", err)
		return
	}

	txType := strings.TrimSpace(req.TransactionType)
	in := commission.NewCommissionInput(txType, req.PremiumSold, req.PolicyGrossCommPct, origination, effective)
	if req.AgencyEstimated != nil {
		agency := money.Parse(req.AgencyEstimated)
		in.AgencyEstimated = &agency
	}

	res := h.Book.Engine.Calculate(in)
	writeJSON(w, http.StatusOK, toCalculationDTO(txType, res))
}

// Reconcile applies (or previews) a statement batch posted as JSON.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	dryRun, err := queryBool(r, "dry_run")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid dry_run", err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	lines, err := h.Factory.ParseStatement(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid statement", err)
		return
	}

	rec, err := h.Book.Reconcile(r.Context(), lines, dryRun)
	if err != nil {
		h.writeDomainError(w, "Failed to reconcile statement", err)
		return
	}

	status := http.StatusCreated
	if dryRun {
		status = http.StatusOK
	}
	writeJSON(w, status, toReconciliationDTO(rec, dryRun))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns stored rows matching the query filter.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := commission.Filter{
		PolicyNumber: q.Get("policy_number"),
		Customer:     q.Get("customer"),
		ClientID:     q.Get("client_id"),
	}
	if types := q.Get("transaction_type"); types != "" {
		for _, t := range strings.Split(types, ",") {
			filter.TransactionTypes = append(filter.TransactionTypes, commission.TransactionType(strings.TrimSpace(t)))
		}
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	txs, err := h.Book.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// CreateTransaction records a policy row with its computed commission.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	tx, err := h.Factory.ParseTransaction(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction", err)
		return
	}

	stored, warnings, err := h.Book.Record(r.Context(), tx)
	if err != nil {
		h.writeDomainError(w, "Failed to record transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordResponse{
		Transaction: toTransactionDTO(stored),
		Warnings:    toWarningDTOs(warnings),
	})
}

// GetTransaction returns one row.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Book.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// UpdateTransaction overwrites a row. The body must carry the version the
// client read; a stale version is a 409.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	tx, err := h.Factory.ParseTransaction(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction", err)
		return
	}
	if tx.Version <= 0 {
		writeError(w, http.StatusBadRequest, "version is required", nil)
		return
	}
	tx.TransactionID = chi.URLParam(r, "id")

	updated, warnings, err := h.Book.Edit(r.Context(), tx)
	if err != nil {
		h.writeDomainError(w, "Failed to update transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, RecordResponse{
		Transaction: toTransactionDTO(updated),
		Warnings:    toWarningDTOs(warnings),
	})
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetPolicyBalance sums every row of one policy.
func (h *Handler) GetPolicyBalance(w http.ResponseWriter, r *http.Request) {
	policyNumber := chi.URLParam(r, "policyNumber")

	pb, err := h.Book.PolicyBalance(r.Context(), policyNumber)
	if err != nil {
		h.writeDomainError(w, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyBalanceDTO(pb))
}

// ListBalances returns the book-wide balance report.
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	report, _, err := h.Book.Report(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to build balance report", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceReportDTO(report))
}

// =============================================================================
// RENEWAL HANDLERS
// =============================================================================

// ListRenewals returns policies whose current term ends inside the window.
func (h *Handler) ListRenewals(w http.ResponseWriter, r *http.Request) {
	window := h.Book.Engine.Config.LookaheadDays
	if v := r.URL.Query().Get("window_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "window_days must be a positive integer", err)
			return
		}
		window = n
	}

	asOf := commission.DateOf(h.Book.Engine.Now())
	if v := r.URL.Query().Get("as_of"); v != "" {
		d, err := commission.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of", err)
			return
		}
		asOf = d
	}

	candidates, warnings, err := h.Book.Renewals(r.Context(), asOf, window)
	if err != nil {
		h.writeDomainError(w, "Failed to identify renewals", err)
		return
	}
	writeJSON(w, http.StatusOK, RenewalsResponse{
		AsOf:       asOf.String(),
		WindowDays: window,
		Candidates: toRenewalCandidateDTOs(candidates),
		Warnings:   toWarningDTOs(warnings),
	})
}

// Renew stores the renewal of a NEW or RWL term. The body is optional.
func (h *Handler) Renew(w http.ResponseWriter, r *http.Request) {
	var req RenewRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := decodeJSON(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if req.TermMonths < 0 {
		writeError(w, http.StatusBadRequest, "term_months must not be negative", nil)
		return
	}

	opts := commission.RenewalOptions{
		Term:            commission.TermLength{Months: req.TermMonths},
		NewPolicyNumber: strings.TrimSpace(req.NewPolicyNumber),
	}
	if req.PremiumSold != nil {
		premium := money.Parse(req.PremiumSold)
		opts.PremiumSold = &premium
	}

	tx, warnings, err := h.Book.Renew(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		h.writeDomainError(w, "Failed to renew policy", err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordResponse{
		Transaction: toTransactionDTO(tx),
		Warnings:    toWarningDTOs(warnings),
	})
}

// TriggerRenewalScan runs one scheduler scan synchronously.
func (h *Handler) TriggerRenewalScan(w http.ResponseWriter, r *http.Request) {
	run, err := h.Scheduler.RunOnce(r.Context())
	if err != nil {
		h.writeDomainError(w, "Renewal scan failed", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListRenewalScans returns recent scheduler scans, newest first.
func (h *Handler) ListRenewalScans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Scheduler.Runs())
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.Sessions.List()
	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = toSessionDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSession opens a statement entry session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := decodeJSON(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	statementDate, err := commission.ParseDate(req.StatementDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid statement_date", err)
		return
	}

	s := h.Sessions.Open(statementDate)
	writeJSON(w, http.StatusCreated, toSessionDTO(s))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(s))
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Close(chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "Failed to delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddSessionLine stages one statement line.
func (h *Handler) AddSessionLine(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get session", err)
		return
	}

	var lj factory.StatementLineJSON
	if err := decodeBody(r, &lj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	line, err := h.Factory.LineFromJSON(lj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid statement line", err)
		return
	}

	s.Add(line)
	writeJSON(w, http.StatusCreated, toSessionDTO(s))
}

// RemoveSessionLine drops a staged line by index.
func (h *Handler) RemoveSessionLine(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get session", err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid line index", err)
		return
	}
	if err := s.Remove(index); err != nil {
		h.writeDomainError(w, "Failed to remove line", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(s))
}

// CommitSession reconciles the staged lines. A successful apply closes the
// session; a dry run leaves it open.
func (h *Handler) CommitSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dryRun, err := queryBool(r, "dry_run")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid dry_run", err)
		return
	}

	if dryRun {
		s, err := h.Sessions.Get(id)
		if err != nil {
			h.writeDomainError(w, "Failed to get session", err)
			return
		}
		rec, err := h.Book.Reconcile(r.Context(), s.Batch(), true)
		if err != nil {
			h.writeDomainError(w, "Failed to reconcile session", err)
			return
		}
		writeJSON(w, http.StatusOK, toReconciliationDTO(rec, true))
		return
	}

	s, err := h.Sessions.Claim(id)
	if err != nil {
		h.writeDomainError(w, "Failed to get session", err)
		return
	}
	rec, err := h.Book.Reconcile(r.Context(), s.Batch(), false)
	if err != nil {
		h.Sessions.Release(s)
		h.writeDomainError(w, "Failed to reconcile session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReconciliationDTO(rec, false))
}

// =============================================================================
// STATEMENT / EXPORT HANDLERS
// =============================================================================

// ListStatements returns applied statement batches, newest first.
func (h *Handler) ListStatements(w http.ResponseWriter, r *http.Request) {
	records, err := h.Book.Statements(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list statements", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementRecordDTOs(records))
}

// Export downloads the book as CSV (one table) or XLSX (one sheet per table).
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid format", err)
		return
	}
	table := strings.ToLower(r.URL.Query().Get("table"))
	if table == "" {
		table = export.DefaultTable(format)
	}

	tables, err := export.Tables(r.Context(), h.Book, table)
	if errors.Is(err, export.ErrUnknownTable) {
		writeError(w, http.StatusBadRequest, "Unknown table "+table, nil)
		return
	}
	if err != nil {
		h.writeDomainError(w, "Failed to load export", err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, tables...); err != nil {
		if errors.Is(err, export.ErrCSVSingleTable) {
			writeError(w, http.StatusBadRequest, "CSV export takes a single table", err)
			return
		}
		h.writeDomainError(w, "Failed to render export", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="commissions-`+table+`.`+string(format)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps commission errors to a status and logs server faults.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(message, zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}

func statusFor(err error) (int, string) {
	switch {
	case commission.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case commission.IsRetryable(err):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, commission.ErrDuplicateTransactionID):
		return http.StatusConflict, "duplicate"
	case commission.IsClientError(err):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decodeBody reads a JSON body keeping numbers exact.
func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return decodeJSON(body, v)
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
