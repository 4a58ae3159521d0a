package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

type OrderRepository struct {
	mu      sync.RWMutex
	orders  map[string]*domain.Order
	numbers map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:  make(map[string]*domain.Order),
		numbers: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	if _, taken := r.numbers[order.Number]; taken {
		return domain.ErrDuplicateNumber
	}

	order.Version = 1
	r.orders[order.ID] = order.Clone()
	r.numbers[order.Number] = order.ID
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.numbers[number]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.orders[id].Clone(), nil
}

func (r *OrderRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.numbers[number]
	return ok, nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.orders[order.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if stored.Version != order.Version {
		return domain.ErrConflict
	}
	if order.AmountRefunded.GreaterThan(order.Total) || order.AmountRefunded.IsNegative() {
		return fmt.Errorf("order repository: amount refunded out of range")
	}

	order.Version++
	r.orders[order.ID] = order.Clone()
	return nil
}
