package interest

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatCurrency renders amount as US dollars with two decimals and
// thousands separators, e.g. "$1,234.50" or "-$12.00". Digits come from the
// decimal itself, so amounts of any size keep their cents.
func FormatCurrency(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	whole, cents, _ := strings.Cut(rounded.StringFixed(2), ".")

	p := message.NewPrinter(language.AmericanEnglish)
	return sign + p.Sprint(currency.Symbol(currency.USD)) + groupThousands(whole) + "." + cents
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}

	var b strings.Builder
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
