/*
Package export renders the book of business as CSV or Excel.

TABLES:
  transactions  every stored row, one line each
  balances      the per-policy balance report plus a TOTAL line
  statements    applied statement batches

  Each table is built once as strings; CSV writes it as-is, XLSX writes the
  amount columns as numeric cells so spreadsheets can sum them.
*/
package export

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/money"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" and "xlsx" in any case. Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// ContentType is the HTTP media type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// =============================================================================
// TABLES
// =============================================================================

// Table is a rectangular export. Numeric marks columns holding amounts.
type Table struct {
	Name    string
	Header  []string
	Rows    [][]string
	Numeric map[int]bool
}

func amount(d decimal.Decimal) string {
	return money.Round(d).StringFixed(money.Places)
}

// TransactionsTable lists every row with its derived balance due.
func TransactionsTable(txs []commission.Transaction) Table {
	t := Table{
		Name: "Transactions",
		Header: []string{
			"Transaction ID", "Client ID", "Customer", "Policy Number", "Prior Policy Number",
			"Policy Type", "Carrier", "Transaction Type",
			"Effective Date", "Origination Date", "Expiration Date",
			"Premium Sold", "Gross Comm %", "Agency Estimated", "Agent Estimated",
			"Agent Paid", "Agency Received", "Balance Due",
			"Statement Date", "Reconciled Transaction ID", "Notes",
		},
		Numeric: map[int]bool{11: true, 12: true, 13: true, 14: true, 15: true, 16: true, 17: true},
	}
	for _, tx := range txs {
		t.Rows = append(t.Rows, []string{
			tx.TransactionID, tx.ClientID, tx.Customer, tx.PolicyNumber, tx.PriorPolicyNumber,
			tx.PolicyType, tx.CarrierName, string(tx.TransactionType),
			tx.EffectiveDate.String(), tx.PolicyOriginationDate.String(), tx.ExpirationDate.String(),
			amount(tx.PremiumSold), tx.PolicyGrossCommPct.String(),
			amount(tx.AgencyEstimatedCommission), amount(tx.AgentEstimatedCommission),
			amount(tx.AgentPaidAmount), amount(tx.AgencyCommReceived), amount(tx.BalanceDue()),
			tx.StatementDate.String(), tx.ReconciledTransactionID, tx.Notes,
		})
	}
	return t
}

// BalancesTable is the policy balance report with a closing TOTAL row.
func BalancesTable(report commission.BalanceReport) Table {
	t := Table{
		Name: "Balances",
		Header: []string{
			"Policy Number", "Customer", "Rows",
			"Agent Estimated", "Agent Paid", "Agency Estimated", "Agency Received", "Balance Due",
		},
		Numeric: map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true, 7: true},
	}
	row := func(label, customer string, pb commission.PolicyBalance) []string {
		return []string{
			label, customer, strconv.Itoa(pb.Transactions),
			amount(pb.AgentEstimated), amount(pb.AgentPaid),
			amount(pb.AgencyEstimated), amount(pb.AgencyReceived), amount(pb.BalanceDue),
		}
	}
	for _, pb := range report.Policies {
		t.Rows = append(t.Rows, row(pb.PolicyNumber, pb.Customer, pb))
	}
	t.Rows = append(t.Rows, row("TOTAL", "", report.Totals))
	return t
}

// StatementsTable lists applied statement batches.
func StatementsTable(records []commission.StatementRecord) Table {
	t := Table{
		Name:    "Statements",
		Header:  []string{"Statement ID", "Statement Date", "Lines", "Commission Paid", "Agency Received", "Applied At"},
		Numeric: map[int]bool{2: true, 3: true, 4: true},
	}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.StatementID, r.StatementDate.String(), strconv.Itoa(r.LineCount),
			amount(r.TotalCommissionPaid), amount(r.TotalAgencyReceived),
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	return t
}

// =============================================================================
// WRITERS
// =============================================================================

// ErrCSVSingleTable is returned when more than one table is written as CSV.
var ErrCSVSingleTable = errors.New("export: csv holds a single table, use xlsx for several")

// Write renders tables in format f. CSV takes exactly one table.
func Write(w io.Writer, f Format, tables ...Table) error {
	if len(tables) == 0 {
		return eris.New("export: nothing to write")
	}
	if f == FormatXLSX {
		return WriteXLSX(w, tables...)
	}
	if len(tables) > 1 {
		return ErrCSVSingleTable
	}
	return WriteCSV(w, tables[0])
}

// WriteCSV writes one table with a header line.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return eris.Wrap(err, "export: write csv rows")
	}
	return nil
}

// WriteXLSX writes each table to its own sheet.
func WriteXLSX(w io.Writer, tables ...Table) error {
	f := xlsx.NewFile()
	for _, t := range tables {
		sheet, err := f.AddSheet(t.Name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", t.Name)
		}

		header := sheet.AddRow()
		for _, h := range t.Header {
			header.AddCell().SetString(h)
		}

		for _, cols := range t.Rows {
			row := sheet.AddRow()
			for i, v := range cols {
				cell := row.AddCell()
				if t.Numeric[i] {
					if n, err := strconv.ParseFloat(v, 64); err == nil {
						cell.SetFloat(n)
						continue
					}
				}
				cell.SetString(v)
			}
		}
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}
