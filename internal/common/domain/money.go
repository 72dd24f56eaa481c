package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyUSD is the only currency the marketplace settles in.
const CurrencyUSD = "USD"

// MaxAmountCents caps any single monetary amount (a price or a payment) at $10,000,000.
const MaxAmountCents int64 = 1_000_000_000

var maxAmount = decimal.NewFromInt(MaxAmountCents)

// CentsFromDecimal converts a monetary amount into integer cents.
// Amounts with sub-cent precision are rejected rather than rounded, and so are amounts
// whose magnitude exceeds MaxAmountCents.
func CentsFromDecimal(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, NewValidationError(fmt.Sprintf("amount %s has more than two decimal places", d.String()))
	}
	if shifted.Abs().GreaterThan(maxAmount) {
		return 0, NewValidationError(fmt.Sprintf("amount %s exceeds the maximum of %s", d.String(), FormatCents(MaxAmountCents)))
	}
	return shifted.IntPart(), nil
}

// DecimalFromCents converts integer cents into a decimal amount.
func DecimalFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatCents renders cents as a fixed two-place amount, e.g. 2050 -> "20.50".
func FormatCents(cents int64) string {
	return DecimalFromCents(cents).StringFixed(2)
}
