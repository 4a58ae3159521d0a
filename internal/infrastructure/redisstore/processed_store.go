package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessedEvents marks webhook event ids with SETNX so each is handled once within ttl.
type ProcessedEvents struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProcessedEvents(client *redis.Client, ttl time.Duration) *ProcessedEvents {
	return &ProcessedEvents{client: client, ttl: ttl}
}

func (p *ProcessedEvents) Seen(ctx context.Context, id string) (bool, error) {
	ok, err := p.client.SetNX(ctx, eventKey(id), "1", p.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx event: %w", err)
	}
	return !ok, nil
}

func (p *ProcessedEvents) Forget(ctx context.Context, id string) error {
	if err := p.client.Del(ctx, eventKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete event: %w", err)
	}
	return nil
}

func eventKey(id string) string {
	return fmt.Sprintf("webhook:evt:%s", id)
}
