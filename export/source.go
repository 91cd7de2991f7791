package export

import (
	"context"
	"errors"
	"strings"

	"github.com/warp/commission-engine/commission"
)

// ErrUnknownTable is returned by Tables for a name it does not export.
var ErrUnknownTable = errors.New("export: unknown table")

// Source is the read side of a book. *commission.Book satisfies it.
type Source interface {
	List(ctx context.Context, filter commission.Filter) ([]commission.Transaction, error)
	Report(ctx context.Context) (commission.BalanceReport, []commission.StatementRecord, error)
	Statements(ctx context.Context) ([]commission.StatementRecord, error)
}

// DefaultTable is what a bare export of f contains: the transaction list
// for CSV, every table for XLSX.
func DefaultTable(f Format) string {
	if f == FormatXLSX {
		return "all"
	}
	return "transactions"
}

// Tables loads the named table ("transactions", "balances", "statements"
// or "all") from src.
func Tables(ctx context.Context, src Source, name string) ([]Table, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "transactions":
		txs, err := src.List(ctx, commission.Filter{})
		if err != nil {
			return nil, err
		}
		return []Table{TransactionsTable(txs)}, nil
	case "balances":
		report, _, err := src.Report(ctx)
		if err != nil {
			return nil, err
		}
		return []Table{BalancesTable(report)}, nil
	case "statements":
		records, err := src.Statements(ctx)
		if err != nil {
			return nil, err
		}
		return []Table{StatementsTable(records)}, nil
	case "all":
		txs, err := src.List(ctx, commission.Filter{})
		if err != nil {
			return nil, err
		}
		report, records, err := src.Report(ctx)
		if err != nil {
			return nil, err
		}
		return []Table{TransactionsTable(txs), BalancesTable(report), StatementsTable(records)}, nil
	default:
		return nil, ErrUnknownTable
	}
}
