/*
scheduler.go - Automated renewal scan

PURPOSE:
  Periodically scans the book for policies whose term is about to expire
  and logs each candidate, together with the outstanding commission
  balance, so renewals are not missed between manual checks.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each scan runs the renewal identification and the balance report
    concurrently (errgroup) against the same store
  - Nothing is written; renewals are still materialized explicitly
  - Keeps the most recent scans for the API to display

CONFIGURATION:
  - Interval: How often to scan (default: 24 hours)
  - scheduler.enabled in config decides whether Start is called

USAGE:
  scheduler := NewRenewalScheduler(book, logger)
  scheduler.Start(ctx)
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRenewalScan endpoint (manual scan)
  - commission/renewal.go: IdentifyRenewals
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/commission-engine/commission"
)

const maxScanHistory = 20

// ScanRun is the outcome of one renewal scan.
type ScanRun struct {
	RanAt           time.Time             `json:"ran_at"`
	AsOf            string                `json:"as_of"`
	WindowDays      int                   `json:"window_days"`
	Candidates      []RenewalCandidateDTO `json:"candidates"`
	Expired         int                   `json:"expired"`
	Warnings        int                   `json:"warnings"`
	OutstandingRows int                   `json:"outstanding_policies"`
	BalanceDue      string                `json:"balance_due"`
}

// RenewalScheduler runs renewal scans on a ticker.
type RenewalScheduler struct {
	Book     *commission.Book
	Logger   *zap.Logger
	Interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	runs   []ScanRun
}

// NewRenewalScheduler creates a new scheduler.
func NewRenewalScheduler(book *commission.Book, logger *zap.Logger) *RenewalScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenewalScheduler{
		Book:     book,
		Logger:   logger.Named("scheduler"),
		Interval: 24 * time.Hour,
	}
}

// Start begins the scheduler. It scans once immediately, then every
// Interval until Stop is called or ctx is done.
func (rs *RenewalScheduler) Start(ctx context.Context) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cancel != nil {
		return
	}
	ctx, rs.cancel = context.WithCancel(ctx)

	rs.wg.Add(1)
	go rs.run(ctx)

	rs.Logger.Info("renewal scheduler started", zap.Duration("interval", rs.Interval))
}

// Stop stops the scheduler and waits for an in-flight scan.
func (rs *RenewalScheduler) Stop() {
	rs.mu.Lock()
	cancel := rs.cancel
	rs.cancel = nil
	rs.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	rs.wg.Wait()
	rs.Logger.Info("renewal scheduler stopped")
}

func (rs *RenewalScheduler) run(ctx context.Context) {
	defer rs.wg.Done()

	ticker := time.NewTicker(rs.Interval)
	defer ticker.Stop()

	// Run immediately on start
	rs.scan(ctx)

	for {
		select {
		case <-ticker.C:
			rs.scan(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (rs *RenewalScheduler) scan(ctx context.Context) {
	if _, err := rs.RunOnce(ctx); err != nil && ctx.Err() == nil {
		rs.Logger.Error("renewal scan failed", zap.Error(err))
	}
}

// RunOnce performs one scan and records it.
func (rs *RenewalScheduler) RunOnce(ctx context.Context) (ScanRun, error) {
	engine := rs.Book.Engine
	now := engine.Now()
	today := commission.DateOf(now)
	window := engine.Config.LookaheadDays

	var (
		candidates []commission.RenewalCandidate
		warnings   []commission.Warning
		report     commission.BalanceReport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candidates, warnings, err = rs.Book.Renewals(gctx, today, window)
		return err
	})
	g.Go(func() error {
		var err error
		report, _, err = rs.Book.Report(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ScanRun{}, err
	}

	run := ScanRun{
		RanAt:           now,
		AsOf:            today.String(),
		WindowDays:      window,
		Candidates:      toRenewalCandidateDTOs(candidates),
		Warnings:        len(warnings),
		OutstandingRows: len(report.Outstanding()),
		BalanceDue:      amount(report.Totals.BalanceDue),
	}
	for _, c := range candidates {
		if c.Expired() {
			run.Expired++
		}
		rs.Logger.Info("renewal due",
			zap.String("policy_number", c.PolicyNumber),
			zap.String("customer", c.Customer),
			zap.String("expiration_date", c.ExpirationDate.String()),
			zap.Int("days_remaining", c.DaysRemaining),
			zap.String("transaction_id", c.Source.TransactionID),
		)
	}
	rs.Logger.Info("renewal scan complete",
		zap.String("as_of", run.AsOf),
		zap.Int("candidates", len(candidates)),
		zap.Int("expired", run.Expired),
		zap.String("balance_due", run.BalanceDue),
	)

	rs.mu.Lock()
	rs.runs = append([]ScanRun{run}, rs.runs...)
	if len(rs.runs) > maxScanHistory {
		rs.runs = rs.runs[:maxScanHistory]
	}
	rs.mu.Unlock()

	return run, nil
}

// Runs returns recorded scans, newest first.
func (rs *RenewalScheduler) Runs() []ScanRun {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]ScanRun{}, rs.runs...)
}
