// Package cart manages the shopper's cart; checkout only reads and clears it.
package cart

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const (
	cartService = "cart-service"
	lockStripes = 64
)

type Service struct {
	repo    domcart.Repository
	catalog catalog.Repository
	ttl     time.Duration
	now     func() time.Time
	in      application.Instruments

	sfg   singleflight.Group
	locks [lockStripes]sync.Mutex
}

func NewService(repo domcart.Repository, products catalog.Repository, ttl time.Duration, tel observability.Observability) *Service {
	if ttl <= 0 {
		ttl = domcart.DefaultTTL
	}
	return &Service{
		repo:    repo,
		catalog: products,
		ttl:     ttl,
		now:     time.Now,
		in:      application.NewInstruments(tel, cartService),
	}
}

// Get returns the caller's cart, or an empty one when there is none.
func (s *Service) Get(ctx context.Context, caller application.Caller) (_ *domcart.Cart, err error) {
	ctx, probe := s.in.Begin(ctx, "cart.get", "GetCart", attribute.String("user.id", caller.UserID))
	defer func() { probe.End(err) }()

	if err := requireUser(caller); err != nil {
		return nil, err
	}
	v, err, _ := s.sfg.Do(caller.UserID, func() (any, error) {
		return s.load(ctx, caller.UserID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domcart.Cart), nil
}

func (s *Service) AddItem(ctx context.Context, caller application.Caller, productID string, qty int) (_ *domcart.Cart, err error) {
	ctx, probe := s.in.Begin(ctx, "cart.add_item", "AddCartItem",
		attribute.String("user.id", caller.UserID),
		attribute.String("product.id", productID),
	)
	defer func() { probe.End(err) }()

	if err := requireUser(caller); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, apperror.Classify(domcart.ErrInvalidQuantity)
	}
	p, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		return nil, classifyLookup(err)
	}
	if !p.Active {
		return nil, apperror.Validation("PRODUCT_INACTIVE", p.Name+" is no longer available")
	}

	return s.mutate(ctx, caller.UserID, func(c *domcart.Cart) error {
		inCart := 0
		for _, it := range c.Items {
			if it.ProductID == productID {
				inCart = it.Quantity
			}
		}
		if p.Stock < inCart+qty {
			return apperror.Conflict("INSUFFICIENT_STOCK", "not enough stock for "+p.Name)
		}
		return c.Add(domcart.Item{
			ProductID:     p.ID,
			Quantity:      qty,
			UnitPrice:     p.Price,
			DiscountPrice: p.DiscountPrice,
			StockSnapshot: p.Stock,
			AddedAt:       s.now().UTC(),
		})
	})
}

func (s *Service) UpdateQuantity(ctx context.Context, caller application.Caller, productID string, qty int) (_ *domcart.Cart, err error) {
	ctx, probe := s.in.Begin(ctx, "cart.update_quantity", "UpdateCartItem",
		attribute.String("user.id", caller.UserID),
		attribute.String("product.id", productID),
	)
	defer func() { probe.End(err) }()

	if err := requireUser(caller); err != nil {
		return nil, err
	}
	return s.mutate(ctx, caller.UserID, func(c *domcart.Cart) error {
		return c.SetQuantity(productID, qty)
	})
}

func (s *Service) RemoveItem(ctx context.Context, caller application.Caller, productID string) (_ *domcart.Cart, err error) {
	ctx, probe := s.in.Begin(ctx, "cart.remove_item", "RemoveCartItem",
		attribute.String("user.id", caller.UserID),
		attribute.String("product.id", productID),
	)
	defer func() { probe.End(err) }()

	if err := requireUser(caller); err != nil {
		return nil, err
	}
	return s.mutate(ctx, caller.UserID, func(c *domcart.Cart) error {
		return c.Remove(productID)
	})
}

func (s *Service) Clear(ctx context.Context, caller application.Caller) (err error) {
	ctx, probe := s.in.Begin(ctx, "cart.clear", "ClearCart", attribute.String("user.id", caller.UserID))
	defer func() { probe.End(err) }()

	if err := requireUser(caller); err != nil {
		return err
	}
	mu := s.lock(caller.UserID)
	mu.Lock()
	defer mu.Unlock()
	if err := s.repo.Delete(ctx, caller.UserID); err != nil && !errors.Is(err, domcart.ErrNotFound) {
		return apperror.Internal(err, "delete cart")
	}
	return nil
}

// mutate applies fn to the user's cart under the user's stripe lock and stores the result.
func (s *Service) mutate(ctx context.Context, userID string, fn func(*domcart.Cart) error) (*domcart.Cart, error) {
	mu := s.lock(userID)
	mu.Lock()
	defer mu.Unlock()

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, apperror.Classify(err)
	}
	c.Touch(s.now().UTC(), s.ttl)
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, apperror.Internal(err, "save cart")
	}
	return c, nil
}

func (s *Service) load(ctx context.Context, userID string) (*domcart.Cart, error) {
	c, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domcart.ErrNotFound) {
		return domcart.New(userID), nil
	}
	if err != nil {
		return nil, apperror.Internal(err, "load cart")
	}
	return c, nil
}

func (s *Service) lock(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.locks[h.Sum32()%lockStripes]
}

func requireUser(c application.Caller) error {
	if c.UserID == "" {
		return apperror.New(apperror.KindUnauthorized, "UNAUTHENTICATED", "user identity is required")
	}
	return nil
}

func classifyLookup(err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return apperror.Classify(err)
	}
	return apperror.Internal(err, "load product")
}
