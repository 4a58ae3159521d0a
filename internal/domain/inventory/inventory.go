package inventory

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// Stock is the only writer of product stock.
// Reserve must be a single conditional decrement that never leaves stock negative.
type Stock interface {
	// Reserve decrements stock by qty when at least qty units are available.
	// It reports false, with no change, when stock is short.
	Reserve(ctx context.Context, productID string, qty int) (bool, error)
	// Restore increments stock by qty unconditionally. A missing product yields ErrNotFound.
	Restore(ctx context.Context, productID string, qty int) error
}
