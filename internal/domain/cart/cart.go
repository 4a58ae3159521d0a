package cart

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("cart: not found")
	ErrItemNotFound    = errors.New("cart: item not in cart")
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
)

// DefaultTTL is how long an untouched cart is retained.
const DefaultTTL = 7 * 24 * time.Hour

// Item captures the price and stock the shopper saw when adding the product.
type Item struct {
	ProductID     string           `json:"product_id"`
	Quantity      int              `json:"quantity"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	StockSnapshot int              `json:"stock_snapshot"`
	AddedAt       time.Time        `json:"added_at"`
}

type Cart struct {
	UserID    string    `json:"user_id"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func New(userID string) *Cart {
	return &Cart{UserID: userID}
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Add merges the item into an existing line for the same product.
func (c *Cart) Add(it Item) error {
	if it.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == it.ProductID {
			c.Items[i].Quantity += it.Quantity
			c.Items[i].UnitPrice = it.UnitPrice
			c.Items[i].DiscountPrice = it.DiscountPrice
			c.Items[i].StockSnapshot = it.StockSnapshot
			return nil
		}
	}
	c.Items = append(c.Items, it)
	return nil
}

func (c *Cart) SetQuantity(productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = qty
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) Remove(productID string) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

// Touch stamps the update time and pushes out the expiry.
func (c *Cart) Touch(now time.Time, ttl time.Duration) {
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(ttl)
}

// ProductIDs lists the products in cart order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

type Repository interface {
	// Get returns ErrNotFound when the user has no live cart.
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, userID string) error
}
