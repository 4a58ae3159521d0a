// Package checkout turns a cart into an order.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appinventory "github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

const checkoutService = "checkout-service"

// Flow selects when stock is taken.
type Flow string

const (
	// FlowImmediate reserves stock while placing the order.
	FlowImmediate Flow = "immediate"
	// FlowPaymentGated creates a payment intent and reserves stock once the gateway confirms payment.
	FlowPaymentGated Flow = "payment_gated"
)

func ParseFlow(s string) (Flow, error) {
	switch Flow(s) {
	case FlowImmediate, FlowPaymentGated:
		return Flow(s), nil
	case "":
		return FlowPaymentGated, nil
	default:
		return "", fmt.Errorf("checkout: unknown flow %q", s)
	}
}

type IDGenerator interface {
	NewID() string
}

type NumberIssuer interface {
	Issue(ctx context.Context) (string, error)
}

type Ledger interface {
	ReserveOrder(ctx context.Context, o *domorder.Order, policy appinventory.Policy) ([]appinventory.Shortfall, error)
}

// IntentCreator opens a gateway payment intent for an order.
type IntentCreator interface {
	CreateIntent(ctx context.Context, o *domorder.Order, customerEmail string) (dompayment.Intent, error)
}

// Deps are the collaborators shared by the checkout use cases.
type Deps struct {
	Carts     cart.Repository
	Catalog   catalog.Repository
	Customers customer.Directory
	Orders    domorder.Repository
	Numbers   NumberIssuer
	Ledger    Ledger
	Intents   IntentCreator
	IDs       IDGenerator
	Publisher domoutbox.Publisher
}

// loadCart returns the caller's cart and the catalog entries of its products.
func loadCart(ctx context.Context, d Deps, userID string) (*cart.Cart, map[string]*catalog.Product, error) {
	c, err := d.Carts.Get(ctx, userID)
	if errors.Is(err, cart.ErrNotFound) {
		return nil, nil, apperror.Validation("CART_EMPTY", "cart is empty")
	}
	if err != nil {
		return nil, nil, apperror.Internal(err, "load cart")
	}
	if c.IsEmpty() {
		return nil, nil, apperror.Validation("CART_EMPTY", "cart is empty")
	}
	products, err := d.Catalog.FindByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, nil, apperror.Internal(err, "load products")
	}
	return c, products, nil
}

func requireCaller(c application.Caller) error {
	if c.UserID == "" {
		return apperror.New(apperror.KindUnauthorized, "UNAUTHENTICATED", "user identity is required")
	}
	return nil
}

// linesFor prices every cart line that has a catalog entry at its current price.
func linesFor(c *cart.Cart, products map[string]*catalog.Product) []Line {
	lines := make([]Line, 0, len(c.Items))
	for _, it := range c.Items {
		p, ok := products[it.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, Line{
			ProductID:     it.ProductID,
			UnitPrice:     p.Price,
			DiscountPrice: p.DiscountPrice,
			Quantity:      it.Quantity,
		})
	}
	return lines
}
