package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies have no minor unit.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true, "KRW": true, "UGX": true, "RWF": true, "XAF": true, "XOF": true, "VND": true,
}

// MinorUnitExponent returns how many decimal places the currency's minor unit has.
func MinorUnitExponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// FormatAmount renders a minor-unit amount for humans, e.g. 6000050 USD
// becomes "60,000.50 USD".
func FormatAmount(minor int64, currency string) string {
	exp := MinorUnitExponent(currency)
	d := decimal.New(minor, -exp)

	s := d.StringFixed(exp)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	if currency != "" {
		b.WriteByte(' ')
		b.WriteString(strings.ToUpper(currency))
	}
	return b.String()
}
