package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/currency"
)

func TestRound_HalfUp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "half rounds up: ok", in: "3.245", want: "3.25"},
		{name: "below half rounds down: ok", in: "3.244", want: "3.24"},
		{name: "exact: ok", in: "10", want: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Round(decimal.RequireFromString(tt.in))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		cur    currency.Unit
		minor  int64
	}{
		{name: "usd: ok", amount: "49.99", cur: currency.USD, minor: 4999},
		{name: "eur: ok", amount: "100", cur: currency.EUR, minor: 10000},
		{name: "jpy has no minor digits: ok", amount: "1500", cur: currency.JPY, minor: 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			assert.Equal(t, tt.minor, ToMinor(amount, tt.cur))
			assert.True(t, FromMinor(tt.minor, tt.cur).Equal(amount))
		})
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "usd", Code(currency.USD))
}
