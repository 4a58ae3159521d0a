package payment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/apptest"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func newAdapter(w *apptest.World) *Adapter {
	return NewAdapter(w.Gateway, w.Payments, &apptest.Sequence{Prefix: "pay"}, nil)
}

func pendingOrder(t *testing.T, w *apptest.World) *domorder.Order {
	user, _ := w.Buyer()
	return w.Order(t, user, nil, apptest.Line{Product: w.Product("42.50", 10), Quantity: 2})
}

func TestAdapter_CreateIntentRecordsPayment(t *testing.T) {
	w := apptest.NewWorld()
	a := newAdapter(w)
	o := pendingOrder(t, w)

	intent, err := a.CreateIntent(context.Background(), o, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(8500), intent.Amount)
	assert.Equal(t, o.ID, intent.Metadata["order_id"])

	p, err := w.Payments.GetByIntentID(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, p.OrderID)
	assert.Equal(t, dompayment.StatusPending, p.Status)
	assert.True(t, p.Amount.Equal(o.Total))
}

func TestAdapter_CreateIntentReusesOpenIntent(t *testing.T) {
	w := apptest.NewWorld()
	a := newAdapter(w)
	o := pendingOrder(t, w)
	ctx := context.Background()

	first, err := a.CreateIntent(ctx, o, "")
	require.NoError(t, err)
	again, err := a.CreateIntent(ctx, o, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, w.Gateway.Calls("create_intent"))

	// Once the buyer abandons the intent a fresh attempt is opened.
	w.Gateway.SetStatus(first.ID, dompayment.IntentCanceled)
	next, err := a.CreateIntent(ctx, o, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)
	assert.Equal(t, 2, w.Gateway.Calls("create_intent"))

	payments, err := w.Payments.ListByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, next.ID, payments[0].IntentID, "newest first")
}

func TestAdapter_CreateIntentConcurrentCallersShareOne(t *testing.T) {
	w := apptest.NewWorld()
	a := newAdapter(w)
	o := pendingOrder(t, w)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]struct{}{}
	)
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			intent, err := a.CreateIntent(context.Background(), o, "")
			if assert.NoError(t, err) {
				mu.Lock()
				ids[intent.ID] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, w.Gateway.Calls("create_intent"))
}

func TestAdapter_GatewayErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperror.Kind
		wantCode string
	}{
		{
			name:     "provider code is kept: fail",
			err:      &dompayment.GatewayError{Op: "create_intent", StatusCode: 402, Code: "card_declined"},
			wantKind: apperror.KindGateway,
			wantCode: "PAYMENT_GATEWAY_CARD_DECLINED",
		},
		{
			name:     "transport failure: fail",
			err:      &dompayment.GatewayError{Op: "create_intent", Temporary: true, Err: errors.New("dial tcp: timeout")},
			wantKind: apperror.KindGateway,
			wantCode: "PAYMENT_GATEWAY_ERROR",
		},
		{
			name:     "caller went away: fail",
			err:      context.Canceled,
			wantKind: apperror.KindInternal,
			wantCode: "INTERNAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apptest.NewWorld()
			w.Gateway.FailNext("create_intent", tt.err)

			_, err := newAdapter(w).CreateIntent(context.Background(), pendingOrder(t, w), "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantKind, apperror.KindOf(err))
			assert.Equal(t, tt.wantCode, apperror.CodeOf(err))
		})
	}
}

func TestAdapter_Refunds(t *testing.T) {
	w := apptest.NewWorld()
	a := newAdapter(w)
	o := pendingOrder(t, w)
	ctx := context.Background()

	intent, err := a.CreateIntent(ctx, o, "")
	require.NoError(t, err)
	w.Gateway.SetStatus(intent.ID, dompayment.IntentSucceeded)

	_, err = a.CreatePartialRefund(ctx, intent.ID, decimal.RequireFromString("0.001"), currency.USD, "", "rounding")
	assert.Equal(t, "INVALID_REFUND_AMOUNT", apperror.CodeOf(err))

	r, err := a.CreatePartialRefund(ctx, intent.ID, decimal.RequireFromString("25.10"), currency.USD, "r-1", "damaged")
	require.NoError(t, err)
	assert.Equal(t, int64(2510), r.Amount)

	r, err = a.CreateFullRefund(ctx, intent.ID, "r-2", "returned")
	require.NoError(t, err)
	assert.Equal(t, int64(5990), r.Amount)
	assert.Equal(t, int64(8500), w.Gateway.Refunded(intent.ID))

	replay, err := a.CreatePartialRefund(ctx, intent.ID, decimal.RequireFromString("25.10"), currency.USD, "r-1", "damaged")
	require.NoError(t, err)
	assert.Equal(t, int64(2510), replay.Amount)
	assert.Equal(t, int64(8500), w.Gateway.Refunded(intent.ID), "a repeated key pays out once")

	_, err = a.CreateFullRefund(ctx, intent.ID, "r-3", "again")
	assert.Equal(t, apperror.KindGateway, apperror.KindOf(err))
}

func TestCreateIntentUseCase(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*domorder.Order)
		caller   func(owner string) application.Caller
		wantCode string
	}{
		{
			name:   "owner opens intent: ok",
			caller: func(owner string) application.Caller { return application.Caller{UserID: owner} },
		},
		{
			name:   "admin opens intent: ok",
			caller: func(string) application.Caller { return application.Caller{UserID: "ops", Role: application.RoleAdmin} },
		},
		{
			name:     "another buyer: fail",
			caller:   func(string) application.Caller { return application.Caller{UserID: "stranger"} },
			wantCode: "ORDER_FORBIDDEN",
		},
		{
			name: "already paid: fail",
			mutate: func(o *domorder.Order) {
				_ = o.MarkAwaitingPayment()
				_ = o.MarkPaid()
			},
			caller:   func(owner string) application.Caller { return application.Caller{UserID: owner} },
			wantCode: "ORDER_ALREADY_PAID",
		},
		{
			name: "payment failed: fail",
			mutate: func(o *domorder.Order) {
				_ = o.MarkAwaitingPayment()
				_ = o.MarkPaymentFailed()
			},
			caller:   func(owner string) application.Caller { return application.Caller{UserID: owner} },
			wantCode: "PAYMENT_FAILED",
		},
		{
			name:     "cancelled order: fail",
			mutate:   func(o *domorder.Order) { _ = o.Cancel(domorder.ActorUser, "changed my mind") },
			caller:   func(owner string) application.Caller { return application.Caller{UserID: owner} },
			wantCode: "ORDER_NOT_PAYABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apptest.NewWorld()
			user, _ := w.Buyer()
			o := w.Order(t, user, tt.mutate, apptest.Line{Product: w.Product("10.00", 5), Quantity: 1})
			uc := NewCreateIntentUseCase(w.Orders, w.Customers, newAdapter(w), nil)

			res, err := uc.Execute(context.Background(), CreateIntentInput{Caller: tt.caller(user), OrderNumber: o.Number})
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, apperror.CodeOf(err))
				assert.Zero(t, w.Gateway.Calls("create_intent"))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.ClientSecret)
			assert.Equal(t, "USD", res.Currency)
			assert.Equal(t, domorder.PaymentAwaiting, w.Reload(t, o).PaymentStatus)
		})
	}
}

func TestGetStatusUseCase(t *testing.T) {
	w := apptest.NewWorld()
	o := pendingOrder(t, w)
	a := newAdapter(w)
	uc := NewGetStatusUseCase(w.Orders, w.Payments, nil)
	owner := application.Caller{UserID: o.UserID}
	ctx := context.Background()

	res, err := uc.Execute(ctx, GetStatusInput{Caller: owner, OrderNumber: o.Number})
	require.NoError(t, err)
	assert.Nil(t, res.Latest)
	assert.Empty(t, res.Payments)

	intent, err := a.CreateIntent(ctx, o, "")
	require.NoError(t, err)

	res, err = uc.Execute(ctx, GetStatusInput{Caller: owner, OrderNumber: o.Number})
	require.NoError(t, err)
	require.NotNil(t, res.Latest)
	assert.Equal(t, intent.ID, res.Latest.IntentID)

	_, err = uc.Execute(ctx, GetStatusInput{Caller: owner, OrderNumber: "ORD-19990101-NONE"})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

type subscriberFunc func(name string, h domoutbox.Handler)

func (f subscriberFunc) Subscribe(name string, h domoutbox.Handler) { f(name, h) }

func TestWorker_CancelsOpenIntents(t *testing.T) {
	w := apptest.NewWorld()
	a := newAdapter(w)
	ctx := context.Background()

	handlers := map[string]domoutbox.Handler{}
	NewWorker(subscriberFunc(func(name string, h domoutbox.Handler) { handlers[name] = h }), w.Payments, a, nil).Start()
	handle := handlers["order.cancelled"]
	require.NotNil(t, handle)

	t.Run("open intent is cancelled: ok", func(t *testing.T) {
		o := pendingOrder(t, w)
		intent, err := a.CreateIntent(ctx, o, "")
		require.NoError(t, err)
		require.NoError(t, o.Cancel(domorder.ActorUser, "too slow"))

		require.NoError(t, handle(ctx, domorder.NewCancelledEvent(o)))

		p, err := w.Payments.GetByIntentID(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, dompayment.StatusCancelled, p.Status)
		got, err := w.Gateway.RetrieveIntent(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, dompayment.IntentCanceled, got.Status)
	})

	t.Run("captured intent is left alone: fail", func(t *testing.T) {
		o := pendingOrder(t, w)
		intent, err := a.CreateIntent(ctx, o, "")
		require.NoError(t, err)
		w.Gateway.SetStatus(intent.ID, dompayment.IntentSucceeded)

		err = handle(ctx, domorder.NewCancelledEvent(o))
		assert.Equal(t, apperror.KindGateway, apperror.KindOf(err))

		p, err := w.Payments.GetByIntentID(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, dompayment.StatusPending, p.Status)
	})

	t.Run("other events are ignored: ok", func(t *testing.T) {
		assert.NoError(t, handle(ctx, domorder.PlacedEvent{OrderID: "x"}))
	})
}
