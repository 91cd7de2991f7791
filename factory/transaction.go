/*
Package factory converts loosely formatted input into commission values.

PURPOSE:
  Agents type transactions into forms and carriers send statements as
  spreadsheets that someone re-keys. Amounts arrive as "$1,234.50", "15%",
  1234.5 or "". Dates arrive as "2025-01-31" or "1/31/2025". The factory
  accepts all of these and produces commission.Transaction and
  commission.StatementLine values. Unreadable numbers become zero; they never
  reject the row.

JSON SCHEMA (transaction):
  {
    "transaction_id": "AB12CD3",          // optional, generated when empty
    "client_id": "CL45EF6",               // optional
    "customer": "Acme Roofing",
    "policy_number": "POL-1001",
    "policy_type": "GL",
    "carrier_name": "Hartland Mutual",
    "transaction_type": "NEW",
    "effective_date": "2025-01-01",
    "policy_origination_date": "2025-01-01",
    "expiration_date": "2026-01-01",
    "premium_sold": "$1,000.00",
    "policy_gross_comm_pct": "15%",
    "version": 1                          // required on update
  }

STATEMENT FILES:
  A statement batch is a list of lines, in JSON or YAML:

    statement_date: 2025-02-15
    lines:
      - customer: Acme Roofing
        policy_number: POL-1001
        effective_date: 2025-01-01
        transaction_type: END
        agent_paid_amount: 25.00
        agency_comm_received: "$50.00"

USAGE:
  f := factory.NewTransactionFactory()
  tx, err := f.ParseTransaction(body)
  batch, err := f.ParseStatement(data)   // JSON or YAML

SEE ALSO:
  - money/money.go: lenient amount parsing
  - commission/date.go: accepted date layouts
*/
package factory

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/money"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TransactionJSON is the form representation of a transaction. Amount fields
// accept numbers or formatted strings.
type TransactionJSON struct {
	TransactionID         string `json:"transaction_id,omitempty" yaml:"transaction_id"`
	ClientID              string `json:"client_id,omitempty" yaml:"client_id"`
	Customer              string `json:"customer" yaml:"customer"`
	PolicyNumber          string `json:"policy_number" yaml:"policy_number"`
	PriorPolicyNumber     string `json:"prior_policy_number,omitempty" yaml:"prior_policy_number"`
	PolicyType            string `json:"policy_type,omitempty" yaml:"policy_type"`
	CarrierName           string `json:"carrier_name,omitempty" yaml:"carrier_name"`
	TransactionType       string `json:"transaction_type" yaml:"transaction_type"`
	EffectiveDate         string `json:"effective_date,omitempty" yaml:"effective_date"`
	PolicyOriginationDate string `json:"policy_origination_date,omitempty" yaml:"policy_origination_date"`
	ExpirationDate        string `json:"expiration_date,omitempty" yaml:"expiration_date"`
	OriginalEffectiveDate string `json:"original_effective_date,omitempty" yaml:"original_effective_date"`
	PremiumSold           any    `json:"premium_sold,omitempty" yaml:"premium_sold"`
	PolicyGrossCommPct    any    `json:"policy_gross_comm_pct,omitempty" yaml:"policy_gross_comm_pct"`
	Notes                 string `json:"notes,omitempty" yaml:"notes"`
	Version               int64  `json:"version,omitempty" yaml:"version"`
}

// StatementLineJSON is one re-keyed carrier statement line.
type StatementLineJSON struct {
	Customer           string `json:"customer" yaml:"customer"`
	PolicyType         string `json:"policy_type,omitempty" yaml:"policy_type"`
	PolicyNumber       string `json:"policy_number" yaml:"policy_number"`
	EffectiveDate      string `json:"effective_date" yaml:"effective_date"`
	TransactionType    string `json:"transaction_type" yaml:"transaction_type"`
	AgencyCommReceived any    `json:"agency_comm_received,omitempty" yaml:"agency_comm_received"`
	AgentPaidAmount    any    `json:"agent_paid_amount,omitempty" yaml:"agent_paid_amount"`
	StatementDate      string `json:"statement_date,omitempty" yaml:"statement_date"`
	Notes              string `json:"notes,omitempty" yaml:"notes"`
}

// StatementJSON is a statement file: a default date and its lines.
type StatementJSON struct {
	StatementDate string              `json:"statement_date,omitempty" yaml:"statement_date"`
	Lines         []StatementLineJSON `json:"lines" yaml:"lines"`
}

// =============================================================================
// FACTORY
// =============================================================================

// TransactionFactory converts form and file input into commission values.
type TransactionFactory struct{}

func NewTransactionFactory() *TransactionFactory {
	return &TransactionFactory{}
}

// ParseTransaction decodes a JSON form body.
func (f *TransactionFactory) ParseTransaction(data []byte) (commission.Transaction, error) {
	var tj TransactionJSON
	if err := decodeJSON(data, &tj); err != nil {
		return commission.Transaction{}, eris.Wrap(err, "factory: decode transaction")
	}
	return f.FromJSON(tj)
}

// FromJSON converts a decoded form. Only malformed dates and a missing
// policy number are errors.
func (f *TransactionFactory) FromJSON(tj TransactionJSON) (commission.Transaction, error) {
	if strings.TrimSpace(tj.PolicyNumber) == "" {
		return commission.Transaction{}, eris.New("factory: policy_number is required")
	}

	tx := commission.Transaction{
		TransactionID:      strings.TrimSpace(tj.TransactionID),
		ClientID:           strings.TrimSpace(tj.ClientID),
		Customer:           strings.TrimSpace(tj.Customer),
		PolicyNumber:       strings.TrimSpace(tj.PolicyNumber),
		PriorPolicyNumber:  strings.TrimSpace(tj.PriorPolicyNumber),
		PolicyType:         strings.TrimSpace(tj.PolicyType),
		CarrierName:        strings.TrimSpace(tj.CarrierName),
		TransactionType:    commission.TransactionType(strings.TrimSpace(tj.TransactionType)),
		PremiumSold:        money.Parse(tj.PremiumSold),
		PolicyGrossCommPct: money.ParsePercent(tj.PolicyGrossCommPct),
		Notes:              tj.Notes,
		Version:            tj.Version,
	}

	var err error
	dates := []struct {
		name string
		raw  string
		dst  *commission.Date
	}{
		{"effective_date", tj.EffectiveDate, &tx.EffectiveDate},
		{"policy_origination_date", tj.PolicyOriginationDate, &tx.PolicyOriginationDate},
		{"expiration_date", tj.ExpirationDate, &tx.ExpirationDate},
		{"original_effective_date", tj.OriginalEffectiveDate, &tx.OriginalEffectiveDate},
	}
	for _, d := range dates {
		if *d.dst, err = commission.ParseDate(d.raw); err != nil {
			return commission.Transaction{}, eris.Wrapf(err, "factory: %s", d.name)
		}
	}
	return tx, nil
}

// ToJSON is the inverse of FromJSON, with amounts as fixed-point strings.
func (f *TransactionFactory) ToJSON(tx commission.Transaction) TransactionJSON {
	return TransactionJSON{
		TransactionID:         tx.TransactionID,
		ClientID:              tx.ClientID,
		Customer:              tx.Customer,
		PolicyNumber:          tx.PolicyNumber,
		PriorPolicyNumber:     tx.PriorPolicyNumber,
		PolicyType:            tx.PolicyType,
		CarrierName:           tx.CarrierName,
		TransactionType:       string(tx.TransactionType),
		EffectiveDate:         tx.EffectiveDate.String(),
		PolicyOriginationDate: tx.PolicyOriginationDate.String(),
		ExpirationDate:        tx.ExpirationDate.String(),
		OriginalEffectiveDate: tx.OriginalEffectiveDate.String(),
		PremiumSold:           tx.PremiumSold.StringFixed(money.Places),
		PolicyGrossCommPct:    tx.PolicyGrossCommPct.String(),
		Notes:                 tx.Notes,
		Version:               tx.Version,
	}
}

// =============================================================================
// STATEMENT LINES
// =============================================================================

// LineFromJSON converts one statement line.
func (f *TransactionFactory) LineFromJSON(lj StatementLineJSON) (commission.StatementLine, error) {
	line := commission.StatementLine{
		Customer:           strings.TrimSpace(lj.Customer),
		PolicyType:         strings.TrimSpace(lj.PolicyType),
		PolicyNumber:       strings.TrimSpace(lj.PolicyNumber),
		TransactionType:    commission.TransactionType(strings.TrimSpace(lj.TransactionType)),
		AgencyCommReceived: money.Parse(lj.AgencyCommReceived),
		AgentPaidAmount:    money.Parse(lj.AgentPaidAmount),
		Notes:              lj.Notes,
	}
	if line.PolicyNumber == "" {
		return commission.StatementLine{}, eris.New("factory: statement line has no policy_number")
	}

	var err error
	if line.EffectiveDate, err = commission.ParseDate(lj.EffectiveDate); err != nil {
		return commission.StatementLine{}, eris.Wrap(err, "factory: effective_date")
	}
	if line.StatementDate, err = commission.ParseDate(lj.StatementDate); err != nil {
		return commission.StatementLine{}, eris.Wrap(err, "factory: statement_date")
	}
	return line, nil
}

// ParseStatement reads a statement file in JSON or YAML. A bare list of
// lines is accepted as well as the {statement_date, lines} form. The file's
// statement_date fills lines that have none.
func (f *TransactionFactory) ParseStatement(data []byte) ([]commission.StatementLine, error) {
	var doc StatementJSON

	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return nil, commission.ErrEmptyStatement
	case trimmed[0] == '[':
		if err := decodeJSON(trimmed, &doc.Lines); err != nil {
			return nil, eris.Wrap(err, "factory: decode statement lines")
		}
	case trimmed[0] == '{':
		if err := decodeJSON(trimmed, &doc); err != nil {
			return nil, eris.Wrap(err, "factory: decode statement")
		}
	default:
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			var lines []StatementLineJSON
			if listErr := yaml.Unmarshal(trimmed, &lines); listErr != nil {
				return nil, eris.Wrap(err, "factory: decode statement yaml")
			}
			doc.Lines = lines
		}
	}

	if len(doc.Lines) == 0 {
		return nil, commission.ErrEmptyStatement
	}
	fileDate, err := commission.ParseDate(doc.StatementDate)
	if err != nil {
		return nil, eris.Wrap(err, "factory: statement_date")
	}

	lines := make([]commission.StatementLine, 0, len(doc.Lines))
	for i, lj := range doc.Lines {
		line, err := f.LineFromJSON(lj)
		if err != nil {
			return nil, eris.Wrapf(err, "factory: line %d", i+1)
		}
		if line.StatementDate.IsZero() {
			line.StatementDate = fileDate
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// decodeJSON keeps numbers as json.Number so amounts are not rounded
// through float64.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
