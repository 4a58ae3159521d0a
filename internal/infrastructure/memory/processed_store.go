package memory

import (
	"context"
	"sync"
	"time"
)

// ProcessedEvents remembers webhook event ids for ttl.
type ProcessedEvents struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewProcessedEvents(ttl time.Duration) *ProcessedEvents {
	return &ProcessedEvents{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (p *ProcessedEvents) Seen(ctx context.Context, id string) (bool, error) {
	_ = ctx

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if exp, ok := p.seen[id]; ok && (p.ttl <= 0 || now.Before(exp)) {
		return true, nil
	}
	p.seen[id] = now.Add(p.ttl)
	return false, nil
}

func (p *ProcessedEvents) Forget(ctx context.Context, id string) error {
	_ = ctx

	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.seen, id)
	return nil
}
