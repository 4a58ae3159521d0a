package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
)

// CartRepository keeps carts until their ExpiresAt passes.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
	now   func() time.Time
}

func NewCartRepository() *CartRepository {
	return &CartRepository{
		carts: make(map[string]*domain.Cart),
		now:   time.Now,
	}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !c.ExpiresAt.IsZero() && !r.now().Before(c.ExpiresAt) {
		delete(r.carts, userID)
		return nil, domain.ErrNotFound
	}
	return cloneCart(c), nil
}

func (r *CartRepository) Save(ctx context.Context, c *domain.Cart) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[c.UserID] = cloneCart(c)
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, userID)
	return nil
}

func cloneCart(c *domain.Cart) *domain.Cart {
	clone := *c
	clone.Items = make([]domain.Item, len(c.Items))
	for i, it := range c.Items {
		if it.DiscountPrice != nil {
			d := *it.DiscountPrice
			it.DiscountPrice = &d
		}
		clone.Items[i] = it
	}
	return &clone
}
