// Package format renders money amounts the way printed invoices show them:
// whole rupees with Indian digit grouping, and the amount spelled out in words.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RupeeSymbol is prefixed by Currency.
const RupeeSymbol = "₹"

// Currency formats amount as whole rupees with lakh/crore grouping,
// e.g. 1000000 -> "₹10,00,000". Fractions are rounded half away from zero.
func Currency(amount decimal.Decimal) string {
	return CurrencyWithSymbol(amount, RupeeSymbol)
}

// CurrencyWithSymbol is Currency with a caller-chosen symbol. The PDF renderer
// uses "Rs. " because the standard PDF fonts carry no rupee glyph.
func CurrencyWithSymbol(amount decimal.Decimal, symbol string) string {
	rounded := amount.Round(0)
	if rounded.IsNegative() {
		return "-" + symbol + groupIndian(rounded.Neg().String())
	}
	return symbol + groupIndian(rounded.String())
}

// Amount formats amount like Currency but without a symbol. Used for table cells.
func Amount(amount decimal.Decimal) string {
	return CurrencyWithSymbol(amount, "")
}

// groupIndian inserts separators into a string of digits: the last three
// digits form one group and every two digits before that form another.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(append(groups, tail), ",")
}
