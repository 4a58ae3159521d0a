package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("catalog: product not found")

type Product struct {
	ID            string
	Name          string
	SKU           string
	ImageURL      string
	Brand         string
	Price         decimal.Decimal
	DiscountPrice *decimal.Decimal
	Stock         int
	Active        bool
}

// EffectivePrice is the discount price when it is set, positive and below the base price.
func EffectivePrice(price decimal.Decimal, discount *decimal.Decimal) decimal.Decimal {
	if discount != nil && discount.IsPositive() && discount.LessThan(price) {
		return *discount
	}
	return price
}

func (p Product) EffectivePrice() decimal.Decimal {
	return EffectivePrice(p.Price, p.DiscountPrice)
}

type Repository interface {
	FindByID(ctx context.Context, id string) (*Product, error)
	// FindByIDs returns the products that exist, keyed by id; unknown ids are simply absent.
	FindByIDs(ctx context.Context, ids []string) (map[string]*Product, error)
}
