package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
)

// ProductStore is the catalog view plus the stock ledger. Every stock change happens under mu.
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]*catalog.Product
}

func NewProductStore(products ...catalog.Product) *ProductStore {
	s := &ProductStore{products: make(map[string]*catalog.Product, len(products))}
	for _, p := range products {
		s.Put(p)
	}
	return s
}

// Put adds or replaces a product.
func (s *ProductStore) Put(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = cloneProduct(&p)
}

func (s *ProductStore) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (s *ProductStore) FindByIDs(ctx context.Context, ids []string) (map[string]*catalog.Product, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*catalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = cloneProduct(p)
		}
	}
	return out, nil
}

func (s *ProductStore) Reserve(ctx context.Context, productID string, qty int) (bool, error) {
	_ = ctx
	if qty <= 0 {
		return false, inventory.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return false, inventory.ErrNotFound
	}
	if p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	return true, nil
}

func (s *ProductStore) Restore(ctx context.Context, productID string, qty int) error {
	_ = ctx
	if qty <= 0 {
		return inventory.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return inventory.ErrNotFound
	}
	p.Stock += qty
	return nil
}

func cloneProduct(p *catalog.Product) *catalog.Product {
	clone := *p
	if p.DiscountPrice != nil {
		d := *p.DiscountPrice
		clone.DiscountPrice = &d
	}
	return &clone
}
