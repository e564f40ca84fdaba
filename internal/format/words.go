package format

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ones = []string{
	"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine", "Ten",
	"Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen", "Seventeen", "Eighteen", "Nineteen",
}

var tens = []string{"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety"}

const (
	crore    = 10_000_000
	lakh     = 100_000
	thousand = 1_000
)

// NumberToWords spells n using the Indian scale (crore, lakh, thousand,
// hundred). Zero is "Zero". n must be non-negative; negative input yields "".
func NumberToWords(n int64) string {
	if n < 0 {
		return ""
	}
	if n == 0 {
		return "Zero"
	}
	return strings.TrimSpace(indianGroups(n))
}

func indianGroups(n int64) string {
	var b strings.Builder
	if n >= crore {
		// Crore counts above 999 are spelled with the same scale.
		b.WriteString(indianGroups(n / crore))
		b.WriteString(" Crore ")
		n %= crore
	}
	if n >= lakh {
		b.WriteString(belowThousand(n / lakh))
		b.WriteString(" Lakh ")
		n %= lakh
	}
	if n >= thousand {
		b.WriteString(belowThousand(n / thousand))
		b.WriteString(" Thousand ")
		n %= thousand
	}
	if n > 0 {
		b.WriteString(belowThousand(n))
	}
	return strings.TrimSpace(b.String())
}

func belowThousand(n int64) string {
	switch {
	case n < 20:
		return ones[n]
	case n < 100:
		if n%10 == 0 {
			return tens[n/10]
		}
		return tens[n/10] + " " + ones[n%10]
	default:
		if n%100 == 0 {
			return ones[n/100] + " Hundred"
		}
		return ones[n/100] + " Hundred and " + belowThousand(n%100)
	}
}

// AmountInWords renders the legal words line printed under invoice totals,
// e.g. "INR One Lakh Rupees Only.".
func AmountInWords(amount decimal.Decimal) string {
	whole := amount.Round(0)
	if whole.IsNegative() {
		whole = whole.Neg()
	}
	return "INR " + NumberToWords(whole.IntPart()) + " Rupees Only."
}

// Upper upper-cases s for display (item descriptions, vehicle identifiers).
func Upper(s string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}

// Title normalises s to title case (customer names on the printed invoice).
func Title(s string) string {
	return cases.Title(language.Und).String(strings.Join(strings.Fields(s), " "))
}
