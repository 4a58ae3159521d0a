package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/apptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_AddItem(t *testing.T) {
	w := apptest.NewWorld()
	tee := w.Product("19.99", 3)
	retired := w.Product("5.00", 10)
	retired.Active = false
	w.Products.Put(retired)

	tests := []struct {
		name      string
		caller    application.Caller
		productID string
		qty       int
		wantCode  string
	}{
		{name: "add two: ok", caller: application.Caller{UserID: "u-1"}, productID: tee.ID, qty: 2},
		{name: "anonymous: fail", productID: tee.ID, qty: 1, wantCode: "UNAUTHENTICATED"},
		{name: "zero quantity: fail", caller: application.Caller{UserID: "u-1"}, productID: tee.ID, qty: 0, wantCode: "INVALID_QUANTITY"},
		{name: "unknown product: fail", caller: application.Caller{UserID: "u-1"}, productID: "nope", qty: 1, wantCode: "PRODUCT_NOT_FOUND"},
		{name: "inactive product: fail", caller: application.Caller{UserID: "u-1"}, productID: retired.ID, qty: 1, wantCode: "PRODUCT_INACTIVE"},
		{name: "more than in stock: fail", caller: application.Caller{UserID: "u-1"}, productID: tee.ID, qty: 4, wantCode: "INSUFFICIENT_STOCK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(w.Carts, w.Products, 0, nil)
			c, err := svc.AddItem(context.Background(), tt.caller, tt.productID, tt.qty)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, apperror.CodeOf(err))
				return
			}
			require.NoError(t, err)
			require.Len(t, c.Items, 1)
			assert.Equal(t, tt.qty, c.Items[0].Quantity)
			assert.True(t, c.Items[0].UnitPrice.Equal(tee.Price))
			assert.Equal(t, 3, c.Items[0].StockSnapshot)
			assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), c.ExpiresAt, time.Minute)
		})
	}
}

func TestService_Lifecycle(t *testing.T) {
	w := apptest.NewWorld()
	tee, mug := w.Product("19.99", 10), w.Product("8.00", 10)
	svc := NewService(w.Carts, w.Products, time.Hour, nil)
	buyer := application.Caller{UserID: "u-1"}
	ctx := context.Background()

	c, err := svc.Get(ctx, buyer)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	_, err = svc.AddItem(ctx, buyer, tee.ID, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, buyer, mug.ID, 2)
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, buyer, tee.ID, 2)
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Items[0].Quantity, "same product merges into one line")

	c, err = svc.UpdateQuantity(ctx, buyer, mug.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Items[1].Quantity)

	_, err = svc.UpdateQuantity(ctx, buyer, "not-in-cart", 1)
	assert.Equal(t, "CART_ITEM_NOT_FOUND", apperror.CodeOf(err))

	c, err = svc.RemoveItem(ctx, buyer, tee.ID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, mug.ID, c.Items[0].ProductID)

	require.NoError(t, svc.Clear(ctx, buyer))
	require.NoError(t, svc.Clear(ctx, buyer), "clearing an empty cart is fine")
	c, err = svc.Get(ctx, buyer)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestService_ConcurrentAddsAreNotLost(t *testing.T) {
	w := apptest.NewWorld()
	p := w.Product("1.00", 100)
	svc := NewService(w.Carts, w.Products, 0, nil)
	buyer := application.Caller{UserID: "u-1"}

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(context.Background(), buyer, p.ID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := svc.Get(context.Background(), buyer)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 20, c.Items[0].Quantity)
}
