package catalog

import (
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		discount *decimal.Decimal
		want     string
	}{
		{name: "no discount: ok", price: "20", want: "20"},
		{name: "lower discount: ok", price: "20", discount: lo.ToPtr(decimal.RequireFromString("15")), want: "15"},
		{name: "discount equal to price ignored: ok", price: "20", discount: lo.ToPtr(decimal.RequireFromString("20")), want: "20"},
		{name: "discount above price ignored: ok", price: "20", discount: lo.ToPtr(decimal.RequireFromString("25")), want: "20"},
		{name: "zero discount ignored: ok", price: "20", discount: lo.ToPtr(decimal.Zero), want: "20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{Price: decimal.RequireFromString(tt.price), DiscountPrice: tt.discount}
			assert.True(t, p.EffectivePrice().Equal(decimal.RequireFromString(tt.want)))
		})
	}
}
