package views

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency renders an amount the es-AR way: "$ 1.234,56".
func FormatCurrency(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg && !d.Round(2).IsZero() {
		b.WriteByte('-')
	}
	b.WriteString("$ ")
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

// FormatInput renders an amount for an editable field, without grouping.
func FormatInput(d decimal.Decimal) string {
	return d.String()
}
