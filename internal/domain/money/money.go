package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Scale is the number of minor-unit digits of cur per ISO 4217 (2 for USD, 0 for JPY).
func Scale(cur currency.Unit) int32 {
	scale, _ := currency.Standard.Rounding(cur)
	return int32(scale)
}

// ToMinor converts a major-unit amount to integer minor units of cur.
func ToMinor(amount decimal.Decimal, cur currency.Unit) int64 {
	return amount.Shift(Scale(cur)).Round(0).IntPart()
}

// FromMinor converts integer minor units of cur back to a major-unit amount.
func FromMinor(minor int64, cur currency.Unit) decimal.Decimal {
	return decimal.New(minor, -Scale(cur))
}

// Code is the lowercase ISO code gateways expect.
func Code(cur currency.Unit) string {
	return strings.ToLower(cur.String())
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
