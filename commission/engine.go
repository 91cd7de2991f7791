package commission

import (
	"time"

	"go.uber.org/zap"
)

// DefaultLookaheadDays is the renewal window used when none is configured.
const DefaultLookaheadDays = 60

// EngineConfig holds the tunable parameters of the engine.
type EngineConfig struct {
	LookaheadDays int

	// Term has no default. Renewals fail with ErrTermLengthRequired until
	// it is configured or passed per call.
	Term TermLength
}

// Engine binds the pure functions of this package to configuration, an id
// source, a clock and a logger. Every warning a computation produces is
// logged here as a structured event, so silent defaults stay observable.
type Engine struct {
	Config EngineConfig
	IDs    IDGenerator
	Logger *zap.Logger
	Now    func() time.Time
}

func NewEngine(cfg EngineConfig, ids IDGenerator, logger *zap.Logger) *Engine {
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = DefaultLookaheadDays
	}
	if ids == nil {
		ids = NewCodeGenerator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Config: cfg,
		IDs:    ids,
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Calculate runs the calculator and logs a rate fallback.
func (e *Engine) Calculate(in CommissionInput) CommissionResult {
	res := Calculate(in)
	e.report("calculate", res.Warnings)
	return res
}

// Apply recomputes the estimated commission of tx.
func (e *Engine) Apply(tx Transaction) (Transaction, []Warning) {
	tx, warnings := ApplyCommission(tx)
	e.report("apply", warnings)
	return tx, warnings
}

// Renewals scans txs for terms ending inside the window. lookaheadDays <= 0
// uses the configured window.
func (e *Engine) Renewals(txs []Transaction, today Date, lookaheadDays int) ([]RenewalCandidate, []Warning) {
	if lookaheadDays <= 0 {
		lookaheadDays = e.Config.LookaheadDays
	}
	candidates, warnings := IdentifyRenewals(txs, today, lookaheadDays)
	e.report("renewals", warnings)
	return candidates, warnings
}

// Renew materializes a renewal. A zero opts.Term uses the configured term.
func (e *Engine) Renew(c RenewalCandidate, opts RenewalOptions) (Transaction, []Warning, error) {
	if opts.Term.IsZero() {
		opts.Term = e.Config.Term
	}
	tx, warnings, err := MaterializeRenewal(c, opts, e.IDs, e.Now())
	if err != nil {
		return Transaction{}, nil, err
	}
	e.report("renew", warnings)
	return tx, warnings, nil
}

// Reconcile builds a statement batch against existing rows.
func (e *Engine) Reconcile(lines []StatementLine, existing []Transaction) (Reconciliation, error) {
	rec, err := BuildReconciliation(lines, existing, e.IDs, e.Now())
	if err != nil {
		return Reconciliation{}, err
	}
	e.report("reconcile", rec.Warnings())
	return rec, nil
}

func (e *Engine) report(op string, warnings []Warning) {
	for _, w := range warnings {
		e.Logger.Warn(w.Message,
			zap.String("op", op),
			zap.String("code", w.Code),
			zap.String("transaction_id", w.TransactionID),
			zap.String("policy_number", w.PolicyNumber),
		)
	}
}
