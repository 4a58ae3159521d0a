package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCartStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	store := NewCartStore(client)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	discount := decimal.RequireFromString("8.00")
	c := cart.New("u-1")
	require.NoError(t, c.Add(cart.Item{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), DiscountPrice: &discount, StockSnapshot: 5}))
	c.Touch(now, time.Hour)
	require.NoError(t, store.Save(ctx, c))

	assert.True(t, mr.Exists("cart:u-1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:u-1"))

	got, err := store.Get(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("10")))
	require.NotNil(t, got.Items[0].DiscountPrice)
	assert.True(t, got.Items[0].DiscountPrice.Equal(discount))

	require.NoError(t, store.Delete(ctx, "u-1"))
	_, err = store.Get(ctx, "u-1")
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

func TestCartStore_Expires(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	store := NewCartStore(client)

	c := cart.New("u-2")
	c.Touch(time.Now(), time.Minute)
	require.NoError(t, store.Save(ctx, c))

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, "u-2")
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

func TestCartStore_BackendDown(t *testing.T) {
	mr, client := newClient(t)
	store := NewCartStore(client)
	mr.Close()

	_, err := store.Get(context.Background(), "u-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cart.ErrNotFound)
}

func TestProcessedEvents(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	store := NewProcessedEvents(client, time.Hour)

	seen, err := store.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = store.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, time.Hour, mr.TTL("webhook:evt:evt_1"))

	require.NoError(t, store.Forget(ctx, "evt_1"))
	seen, err = store.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}
