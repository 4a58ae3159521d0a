package payment

import "context"

type Repository interface {
	// Insert stores a new payment; a reused intent id yields ErrDuplicateIntent.
	Insert(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByIntentID(ctx context.Context, intentID string) (*Payment, error)
	// ListByOrder returns every payment of an order, newest first.
	ListByOrder(ctx context.Context, orderID string) ([]*Payment, error)
	// Update persists p if its Version still matches, then bumps Version; otherwise ErrConflict.
	Update(ctx context.Context, p *Payment) error
}
