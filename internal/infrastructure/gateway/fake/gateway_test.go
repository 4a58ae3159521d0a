package fake

import (
	"context"
	"testing"

	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_IdempotentCreate(t *testing.T) {
	ctx := context.Background()
	g := New()
	params := dompayment.CreateIntentParams{Amount: 1000, Currency: "USD", OrderID: "o1", IdempotencyKey: "k1"}

	first, err := g.CreateIntent(ctx, params)
	require.NoError(t, err)
	second, err := g.CreateIntent(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGateway_RefundLimits(t *testing.T) {
	ctx := context.Background()
	g := New()
	in, err := g.CreateIntent(ctx, dompayment.CreateIntentParams{Amount: 10000, Currency: "USD"})
	require.NoError(t, err)

	_, err = g.Refund(ctx, dompayment.RefundParams{IntentID: in.ID})
	assert.ErrorIs(t, err, dompayment.ErrGateway)

	g.SetStatus(in.ID, dompayment.IntentSucceeded)
	part := int64(3000)
	r, err := g.Refund(ctx, dompayment.RefundParams{IntentID: in.ID, Amount: &part})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), r.Amount)

	r, err = g.Refund(ctx, dompayment.RefundParams{IntentID: in.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(7000), r.Amount)
	assert.Equal(t, int64(10000), g.Refunded(in.ID))

	_, err = g.Refund(ctx, dompayment.RefundParams{IntentID: in.ID})
	assert.Error(t, err)
}

func TestGateway_FailNext(t *testing.T) {
	g := New()
	boom := &dompayment.GatewayError{Op: "create_intent", Code: "api_error", Temporary: true}
	g.FailNext("create_intent", boom)

	_, err := g.CreateIntent(context.Background(), dompayment.CreateIntentParams{Amount: 1, Currency: "USD"})
	assert.ErrorIs(t, err, boom)

	_, err = g.CreateIntent(context.Background(), dompayment.CreateIntentParams{Amount: 1, Currency: "USD"})
	assert.NoError(t, err)
	assert.Equal(t, 2, g.Calls("create_intent"))
}
