package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount with zero decimal places, as written to the sheet.
// Halves round to even.
func FormatAmount(amount decimal.Decimal) string {
	return amount.RoundBank(0).StringFixed(0)
}

// FormatRupiah renders an amount as "Rp 1.234.567"
func FormatRupiah(amount decimal.Decimal) string {
	rounded := amount.RoundBank(0)
	digits := rounded.Abs().StringFixed(0)

	var b strings.Builder
	b.WriteString("Rp ")
	if rounded.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}
