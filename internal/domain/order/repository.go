package order

import "context"

type Repository interface {
	// Insert stores a new order; a taken order number yields ErrDuplicateNumber.
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	// Update persists order if its Version still matches the stored one, then bumps Version.
	// A mismatch yields ErrConflict.
	Update(ctx context.Context, order *Order) error
}
