// Package inventory reserves and restores stock on behalf of orders.
package inventory

import (
	"context"
	"errors"
	"fmt"

	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const componentLedger = "inventory_ledger"

// Policy decides what ReserveOrder does after the first line that cannot take stock.
type Policy int

const (
	// StopOnShortfall returns at the first short line. Lines already reserved stay reserved.
	StopOnShortfall Policy = iota
	// ContinueOnShortfall attempts every line and reports all shortfalls.
	ContinueOnShortfall
)

func (p Policy) source() string {
	if p == StopOnShortfall {
		return "checkout"
	}
	return "webhook"
}

// Shortfall is an order line whose quantity could not be taken from stock.
type Shortfall struct {
	ProductID string
	Quantity  int
	Reason    string
	Err       error
}

type Ledger struct {
	stock    dominv.Stock
	log      observability.Logger
	failures observability.Counter // stock_reservation_failures_total{source}
}

func NewLedger(stock dominv.Stock, tel observability.Observability) *Ledger {
	tel = observability.OrNop(tel)
	return &Ledger{
		stock:    stock,
		log:      tel.Logger().With(observability.F("component", componentLedger)),
		failures: tel.Metrics().Counter(observability.MStockReservationFailure),
	}
}

// Reserve takes qty units of productID. It reports false when stock is short.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) (bool, error) {
	if qty <= 0 {
		return false, dominv.ErrInvalidQuantity
	}
	ok, err := l.stock.Reserve(ctx, productID, qty)
	if err != nil {
		return false, fmt.Errorf("inventory: reserve %s: %w", productID, err)
	}
	return ok, nil
}

// Restore puts qty units of productID back. A product that no longer exists is logged and skipped.
func (l *Ledger) Restore(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return dominv.ErrInvalidQuantity
	}
	err := l.stock.Restore(ctx, productID, qty)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dominv.ErrNotFound):
		logctx.FromOr(ctx, l.log).Warn("stock_restore_product_missing",
			observability.F("product_id", productID),
			observability.F("quantity", qty),
		)
		return nil
	default:
		return fmt.Errorf("inventory: restore %s: %w", productID, err)
	}
}

// ReserveOrder reserves every line of o that does not hold stock yet and flags it as reserved.
// Store errors abort under StopOnShortfall and become shortfalls under ContinueOnShortfall.
func (l *Ledger) ReserveOrder(ctx context.Context, o *domorder.Order, policy Policy) ([]Shortfall, error) {
	logger := logctx.FromOr(ctx, l.log)
	var shortfalls []Shortfall

	for _, idx := range o.UnreservedItems() {
		item := o.Items[idx]
		ok, err := l.Reserve(ctx, item.ProductID, item.Quantity)

		var sf *Shortfall
		switch {
		case err == nil && ok:
			o.MarkReserved(idx)
			continue
		case err == nil:
			sf = &Shortfall{ProductID: item.ProductID, Quantity: item.Quantity, Reason: dominv.FailureReasonInsufficientStock, Err: dominv.ErrInsufficientStock}
		case errors.Is(err, dominv.ErrNotFound):
			sf = &Shortfall{ProductID: item.ProductID, Quantity: item.Quantity, Reason: dominv.FailureReasonNotFound, Err: err}
		case policy == StopOnShortfall:
			return shortfalls, err
		default:
			sf = &Shortfall{ProductID: item.ProductID, Quantity: item.Quantity, Reason: dominv.FailureReasonStoreError, Err: err}
		}

		l.failures.Add(1, observability.L("source", policy.source()))
		logger.Warn("stock_reservation_failed",
			observability.F("order_id", o.ID),
			observability.F("product_id", sf.ProductID),
			observability.F("quantity", sf.Quantity),
			observability.F("reason", sf.Reason),
		)
		shortfalls = append(shortfalls, *sf)
		if policy == StopOnShortfall {
			return shortfalls, nil
		}
	}
	return shortfalls, nil
}

// RestoreItems puts the quantity of every given line back into stock.
// It keeps going after a failure and returns the joined errors.
func (l *Ledger) RestoreItems(ctx context.Context, items []domorder.Item) error {
	var errs []error
	for _, it := range items {
		if err := l.Restore(ctx, it.ProductID, it.Quantity); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
