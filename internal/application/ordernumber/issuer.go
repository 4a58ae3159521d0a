// Package ordernumber hands out human-facing order numbers of the form ORD-YYYYMMDD-XXXX.
package ordernumber

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const (
	prefix      = "ORD"
	suffixLen   = 4
	maxAttempts = 10
	// No I, O, 0 or 1; 32 symbols so a random byte maps without bias.
	alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Checker reports whether an order number is already taken.
type Checker interface {
	NumberExists(ctx context.Context, number string) (bool, error)
}

type Issuer struct {
	checker Checker
	log     observability.Logger
	now     func() time.Time
	rand    io.Reader
}

type Option func(*Issuer)

// WithClock overrides the time source used for the date part.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithRandom overrides the entropy source used for the suffix.
func WithRandom(r io.Reader) Option {
	return func(i *Issuer) { i.rand = r }
}

func NewIssuer(checker Checker, logger observability.Logger, opts ...Option) *Issuer {
	if logger == nil {
		logger = observability.NopLogger()
	}
	i := &Issuer{
		checker: checker,
		log:     logger.With(observability.F("component", "order_number_issuer")),
		now:     time.Now,
		rand:    rand.Reader,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue returns a number no existing order uses. After maxAttempts collisions it falls back to a
// millisecond-suffixed number, which the store's unique constraint still guards.
func (i *Issuer) Issue(ctx context.Context) (string, error) {
	now := i.now().UTC()
	date := now.Format("20060102")

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		suffix, err := i.suffix()
		if err != nil {
			return "", fmt.Errorf("ordernumber: entropy: %w", err)
		}
		number := fmt.Sprintf("%s-%s-%s", prefix, date, suffix)

		taken, err := i.checker.NumberExists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("ordernumber: check %s: %w", number, err)
		}
		if !taken {
			return number, nil
		}
	}

	suffix, err := i.suffix()
	if err != nil {
		return "", fmt.Errorf("ordernumber: entropy: %w", err)
	}
	number := fmt.Sprintf("%s-%s-%s-%d", prefix, date, suffix, now.UnixMilli())
	logctx.FromOr(ctx, i.log).Warn("order_number_fallback",
		observability.F("attempts", maxAttempts),
		observability.F("order_number", number),
	)
	return number, nil
}

func (i *Issuer) suffix() (string, error) {
	buf := make([]byte, suffixLen)
	if _, err := io.ReadFull(i.rand, buf); err != nil {
		return "", err
	}
	for k, b := range buf {
		buf[k] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
