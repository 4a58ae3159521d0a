package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func newOrder(t *testing.T, number string) *domorder.Order {
	t.Helper()
	o, err := domorder.New(gofakeit.UUID(), number, gofakeit.UUID(),
		[]domorder.Item{{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
		domorder.Totals{Currency: currency.USD, Subtotal: decimal.NewFromInt(10)},
		domorder.ShippingAddress{}, "")
	require.NoError(t, err)
	return o
}

func TestOrderRepository_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	o := newOrder(t, "ORD-20260101-AAAA")

	require.NoError(t, repo.Insert(ctx, o))
	assert.Equal(t, int64(1), o.Version)

	byNumber, err := repo.GetByNumber(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, o.ID, byNumber.ID)

	exists, err := repo.NumberExists(ctx, o.Number)
	require.NoError(t, err)
	assert.True(t, exists)

	dup := newOrder(t, o.Number)
	assert.ErrorIs(t, repo.Insert(ctx, dup), domorder.ErrDuplicateNumber)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domorder.ErrNotFound)
}

func TestOrderRepository_UpdateChecksVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	o := newOrder(t, "ORD-20260101-BBBB")
	require.NoError(t, repo.Insert(ctx, o))

	first, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	second, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)

	require.NoError(t, first.Confirm())
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	require.NoError(t, second.Cancel(domorder.ActorUser, "changed my mind"))
	assert.ErrorIs(t, repo.Update(ctx, second), domorder.ErrConflict)

	stored, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusConfirmed, stored.Status)
}

func TestOrderRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	o := newOrder(t, "ORD-20260101-CCCC")
	require.NoError(t, repo.Insert(ctx, o))

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	got.Items[0].Quantity = 99

	again, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
}

func TestProductStore_Reserve(t *testing.T) {
	ctx := context.Background()
	store := NewProductStore(catalog.Product{ID: "p1", Price: decimal.NewFromInt(5), Stock: 3, Active: true})

	ok, err := store.Reserve(ctx, "p1", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Reserve(ctx, "p1", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := store.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)

	_, err = store.Reserve(ctx, "nope", 1)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
	_, err = store.Reserve(ctx, "p1", 0)
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	require.NoError(t, store.Restore(ctx, "p1", 4))
	p, err = store.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestProductStore_ConcurrentReserveNeverOversells(t *testing.T) {
	ctx := context.Background()
	store := NewProductStore(catalog.Product{ID: "p1", Stock: 10, Active: true})

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.Reserve(ctx, "p1", 1); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), wins.Load())
	p, err := store.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, p.Stock)
}

func TestProductStore_FindByIDsSkipsUnknown(t *testing.T) {
	store := NewProductStore(catalog.Product{ID: "p1"}, catalog.Product{ID: "p2"})
	got, err := store.FindByIDs(context.Background(), []string{"p1", "p3"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "p1")
}

func TestPaymentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository()

	older, err := dompayment.New("pay-1", "o-1", "pi_1", decimal.NewFromInt(10), currency.USD)
	require.NoError(t, err)
	newer, err := dompayment.New("pay-2", "o-1", "pi_2", decimal.NewFromInt(10), currency.USD)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, older))
	require.NoError(t, repo.Insert(ctx, newer))

	twin, err := dompayment.New("pay-3", "o-1", "pi_1", decimal.NewFromInt(10), currency.USD)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Insert(ctx, twin), dompayment.ErrDuplicateIntent)

	list, err := repo.ListByOrder(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "pay-2", list[0].ID)

	got, err := repo.GetByIntentID(ctx, "pi_1")
	require.NoError(t, err)
	require.NoError(t, got.MarkPaid(dompayment.Charge{ChargeID: "ch_1"}))
	require.NoError(t, repo.Update(ctx, got))

	stale, err := repo.Get(ctx, "pay-1")
	require.NoError(t, err)
	stale.Version = 1
	assert.ErrorIs(t, repo.Update(ctx, stale), dompayment.ErrConflict)
}

func TestCartRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	c := cart.New("u-1")
	require.NoError(t, c.Add(cart.Item{ProductID: "p1", Quantity: 1}))
	c.Touch(now, time.Hour)
	require.NoError(t, repo.Save(ctx, c))

	got, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	now = now.Add(2 * time.Hour)
	_, err = repo.Get(ctx, "u-1")
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

func TestCustomerDirectory_AddressOwnership(t *testing.T) {
	ctx := context.Background()
	dir := NewCustomerDirectory()
	dir.PutAddress(customer.Address{ID: "a-1", UserID: "u-1"})

	_, err := dir.FindAddress(ctx, "u-1", "a-1")
	require.NoError(t, err)

	_, err = dir.FindAddress(ctx, "u-2", "a-1")
	assert.ErrorIs(t, err, customer.ErrAddressNotFound)

	_, err = dir.FindUser(ctx, "u-1")
	assert.ErrorIs(t, err, customer.ErrUserNotFound)
}

func TestProcessedEvents(t *testing.T) {
	ctx := context.Background()
	store := NewProcessedEvents(time.Hour)

	seen, err := store.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = store.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, store.Forget(ctx, "evt_1"))
	seen, err = store.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}
