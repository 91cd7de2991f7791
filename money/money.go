/*
Package money normalizes loosely formatted currency and percent input.

PURPOSE:
  Premiums, commission rates and statement amounts arrive as free text
  ("$1,250.00", "15%", " -40 "). Every value that feeds commission math
  passes through this package first.

FAIL-SOFT CONTRACT:
  Parsing never panics and never returns an error. Anything that cannot be
  read as a number becomes zero. These values come from form fields and
  statement transcriptions; one bad cell must not block a whole batch.

  Cleaning rule: every character outside [0-9.-] is removed, then the
  remainder is parsed. "(100)" therefore parses as 100, not -100.

PRECISION:
  Internally amounts are decimal.Decimal. Float helpers exist for callers
  that speak float64 (JSON clients, reports).

SEE ALSO:
  - commission/calculator.go: consumes Parse / ParsePercent
  - export/: renders amounts with FormatCurrency
*/
package money

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Places is the currency precision used throughout the engine.
const Places = 2

var (
	nonNumeric = regexp.MustCompile(`[^0-9.\-]`)
	hundred    = decimal.NewFromInt(100)
	printer    = message.NewPrinter(language.English)
)

// =============================================================================
// PARSING
// =============================================================================

// Parse converts v into a decimal. Unreadable input yields decimal.Zero.
func Parse(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		return *x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(x)
	case float32:
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat32(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int32:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case json.Number:
		return parseString(x.String())
	case string:
		return parseString(x)
	case fmt.Stringer:
		return parseString(x.String())
	default:
		return parseString(fmt.Sprint(x))
	}
}

// ParsePercent reads a percentage ("15%", "15", 15.0) as its numeric value 15.
func ParsePercent(v any) decimal.Decimal {
	return Parse(v)
}

// ParseFloat is Parse for float64 callers.
func ParseFloat(v any) float64 {
	return Parse(v).InexactFloat64()
}

// ParsePercentFloat is ParsePercent for float64 callers.
func ParsePercentFloat(v any) float64 {
	return ParsePercent(v).InexactFloat64()
}

func parseString(s string) decimal.Decimal {
	cleaned := nonNumeric.ReplaceAllString(strings.TrimSpace(s), "")
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// ARITHMETIC HELPERS
// =============================================================================

// Round rounds to currency precision.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// PercentOf returns amount * pct / 100, unrounded.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// Float returns d rounded to currency precision as a float64.
func Float(d decimal.Decimal) float64 {
	return Round(d).InexactFloat64()
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatCurrency renders d as US dollars: "$1,234.50", "-$50.00".
func FormatCurrency(d decimal.Decimal) string {
	r := Round(d)
	sign := ""
	if r.IsNegative() {
		sign = "-"
		r = r.Abs()
	}
	return sign + "$" + printer.Sprintf("%.2f", r.InexactFloat64())
}

// FormatPercent renders a percentage value: 15 -> "15.00%".
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(Places) + "%"
}
