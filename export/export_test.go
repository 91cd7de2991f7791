package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/warp/commission-engine/commission"
)

func sampleTxs() []commission.Transaction {
	return []commission.Transaction{
		{
			TransactionID:            "AB12CD3",
			PolicyNumber:             "POL-1",
			Customer:                 "Acme, Inc.",
			TransactionType:          commission.TxNew,
			EffectiveDate:            commission.MustParseDate("2025-01-01"),
			PremiumSold:              decimal.RequireFromString("1000"),
			PolicyGrossCommPct:       decimal.RequireFromString("15"),
			AgentEstimatedCommission: decimal.RequireFromString("75"),
		},
		{
			TransactionID:           "AB12CD3-STMT-20250215",
			PolicyNumber:            "POL-1",
			Customer:                "Acme, Inc.",
			TransactionType:         commission.TxNew,
			AgentPaidAmount:         decimal.RequireFromString("50"),
			StatementDate:           commission.MustParseDate("2025-02-15"),
			ReconciledTransactionID: "AB12CD3",
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	assert.Contains(t, f.ContentType(), "spreadsheetml")

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteCSV_Transactions(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteCSV(&buf, TransactionsTable(sampleTxs())))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Transaction ID", records[0][0])
	assert.Equal(t, "Acme, Inc.", records[1][2])
	assert.Equal(t, "1000.00", records[1][11])
	assert.Equal(t, "75.00", records[1][17])
	assert.Equal(t, "-50.00", records[2][17])
	assert.Equal(t, "AB12CD3", records[2][19])
}

func TestWriteCSV_BalancesHasTotal(t *testing.T) {
	var buf bytes.Buffer
	report := commission.BuildBalanceReport(sampleTxs())

	require.NoError(t, Write(&buf, FormatCSV, BalancesTable(report)))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "POL-1", records[1][0])
	assert.Equal(t, "25.00", records[1][7])
	assert.Equal(t, "TOTAL", records[2][0])
	assert.Equal(t, "2", records[2][2])
}

func TestWriteXLSX_Sheets(t *testing.T) {
	var buf bytes.Buffer
	txs := sampleTxs()
	statements := []commission.StatementRecord{{
		StatementID:         "stmt-1",
		StatementDate:       commission.MustParseDate("2025-02-15"),
		LineCount:           1,
		TotalCommissionPaid: decimal.RequireFromString("50"),
		CreatedAt:           time.Date(2025, 2, 16, 10, 0, 0, 0, time.UTC),
	}}

	err := Write(&buf, FormatXLSX,
		TransactionsTable(txs),
		BalancesTable(commission.BuildBalanceReport(txs)),
		StatementsTable(statements),
	)
	require.NoError(t, err)

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)
	assert.Equal(t, "Transactions", f.Sheets[0].Name)
	assert.Equal(t, "Balances", f.Sheets[1].Name)
	assert.Equal(t, "Statements", f.Sheets[2].Name)

	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "POL-1", sheet.Rows[1].Cells[3].String())

	premium, err := sheet.Rows[1].Cells[11].Float()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, premium)
}

func TestWrite_NoTables(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, FormatCSV))
}

func TestWrite_CSVTakesOneTable(t *testing.T) {
	tables := []Table{TransactionsTable(sampleTxs()), StatementsTable(nil)}

	err := Write(&bytes.Buffer{}, FormatCSV, tables...)

	assert.ErrorIs(t, err, ErrCSVSingleTable)
	assert.NoError(t, Write(&bytes.Buffer{}, FormatXLSX, tables...))
}
