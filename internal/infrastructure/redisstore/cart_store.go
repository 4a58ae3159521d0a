// Package redisstore keeps carts and webhook dedupe keys in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

// CartStore stores one JSON document per user under cart:<userID>, expiring with the cart.
type CartStore struct {
	client *redis.Client
	now    func() time.Time
}

var _ cart.Repository = (*CartStore)(nil)

func NewCartStore(client *redis.Client) *CartStore {
	return &CartStore{client: client, now: time.Now}
}

func (s *CartStore) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &c, nil
}

func (s *CartStore) Save(ctx context.Context, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	ttl := cart.DefaultTTL
	if !c.ExpiresAt.IsZero() {
		ttl = c.ExpiresAt.Sub(s.now())
		if ttl < time.Second {
			ttl = time.Second
		}
	}

	if err := s.client.Set(ctx, cartKey(c.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

func (s *CartStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete cart: %w", err)
	}
	return nil
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}
