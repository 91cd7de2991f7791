package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AGENT RATE TABLE
// =============================================================================
//
// Rules, in priority order:
//   1. NEW, NBS, STL, BoR            -> 0.50
//   2. END, PCH                      -> 0.50 when origination == effective,
//                                       0.25 otherwise
//   3. RWL, REWRITE                  -> 0.25
//   4. CAN, XCL                      -> 0.00
//   5. anything else                 -> 0.25 (fallback, reported)

var (
	RateNewBusiness = decimal.RequireFromString("0.50")
	RateRenewal     = decimal.RequireFromString("0.25")
	RateNone        = decimal.Zero
)

// Rate is the agent's share of agency revenue for one transaction.
type Rate struct {
	Value decimal.Decimal

	// Fallback is set when the transaction type was not recognised and the
	// renewal-level default was applied.
	Fallback bool
}

// ResolveRate maps a transaction type to the agent share. It never fails.
//
// For END/PCH, a change written on the policy's origination day is treated
// as part of the new business sale. Both dates must be set for that to hold.
func ResolveRate(txType TransactionType, origination, effective Date) Rate {
	switch txType.Family() {
	case FamilyNewBusiness:
		return Rate{Value: RateNewBusiness}
	case FamilyEndorsement:
		if !origination.IsZero() && origination.Equal(effective) {
			return Rate{Value: RateNewBusiness}
		}
		return Rate{Value: RateRenewal}
	case FamilyRenewal:
		return Rate{Value: RateRenewal}
	case FamilyCancellation:
		return Rate{Value: RateNone}
	default:
		return Rate{Value: RateRenewal, Fallback: true}
	}
}

// fallbackWarning describes a rate fallback for the row it hit.
func fallbackWarning(txType TransactionType) Warning {
	return Warning{
		Code:    WarnRateFallback,
		Message: fmt.Sprintf("unrecognised transaction type %q, applied renewal rate %s", string(txType), RateRenewal.StringFixed(2)),
	}
}
