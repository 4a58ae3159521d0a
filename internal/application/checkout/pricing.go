package checkout

import (
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Policy is the flat tax and shipping configuration.
type Policy struct {
	Currency              currency.Unit
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingRate      decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		Currency:              currency.USD,
		TaxRate:               decimal.RequireFromString("0.08"),
		FreeShippingThreshold: decimal.NewFromInt(50),
		FlatShippingRate:      decimal.RequireFromString("5.99"),
	}
}

// Line is one priced cart line.
type Line struct {
	ProductID     string
	UnitPrice     decimal.Decimal
	DiscountPrice *decimal.Decimal
	Quantity      int
}

func (l Line) Total() decimal.Decimal {
	return catalog.EffectivePrice(l.UnitPrice, l.DiscountPrice).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Quote struct {
	Currency             currency.Unit
	Subtotal             decimal.Decimal
	Tax                  decimal.Decimal
	Shipping             decimal.Decimal
	Discount             decimal.Decimal
	Total                decimal.Decimal
	FreeShipping         bool
	AmountToFreeShipping decimal.Decimal
}

// Price applies the policy to lines.
func (p Policy) Price(lines []Line) Quote {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	subtotal = money.Round(subtotal)

	tax := money.Round(subtotal.Mul(p.TaxRate))
	free := subtotal.GreaterThanOrEqual(p.FreeShippingThreshold)
	shipping := money.Round(p.FlatShippingRate)
	if free {
		shipping = decimal.Zero
	}

	return Quote{
		Currency:             p.Currency,
		Subtotal:             subtotal,
		Tax:                  tax,
		Shipping:             shipping,
		Discount:             decimal.Zero,
		Total:                money.Round(subtotal.Add(tax).Add(shipping)),
		FreeShipping:         free,
		AmountToFreeShipping: money.Max(decimal.Zero, p.FreeShippingThreshold.Sub(subtotal)),
	}
}
