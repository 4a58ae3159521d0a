package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment
	intents  map[string]string
	// seq orders payments created in the same instant.
	seq   map[string]int
	next  int
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		payments: make(map[string]*domain.Payment),
		intents:  make(map[string]string),
		seq:      make(map[string]int),
	}
}

func (r *PaymentRepository) Insert(ctx context.Context, p *domain.Payment) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("payment repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.payments[p.ID]; exists {
		return domain.ErrConflict
	}
	if _, taken := r.intents[p.IntentID]; taken {
		return domain.ErrDuplicateIntent
	}

	p.Version = 1
	r.payments[p.ID] = p.Clone()
	r.intents[p.IntentID] = p.ID
	r.next++
	r.seq[p.ID] = r.next
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *PaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.intents[intentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.payments[id].Clone(), nil
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.seq[out[i].ID] > r.seq[out[j].ID]
	})
	return out, nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("payment repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.payments[p.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if stored.Version != p.Version {
		return domain.ErrConflict
	}
	if p.AmountRefunded.GreaterThan(p.Amount) {
		return domain.ErrRefundExceedsTotal
	}

	p.Version++
	r.payments[p.ID] = p.Clone()
	return nil
}
