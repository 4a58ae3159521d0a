package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/apptest"
	appinventory "github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	apprefund "github.com/Zhima-Mochi/minishop-checkout/internal/application/refund"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "whsec_test"

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Unix(1_760_000_000, 0)

	tests := []struct {
		name    string
		header  string
		secret  string
		wantErr error
	}{
		{name: "fresh signature: ok", header: Sign(payload, secret, now), secret: secret},
		{name: "one of several v1 entries matches: ok", header: Sign(payload, secret, now) + ",v1=deadbeef", secret: secret},
		{name: "no header: fail", secret: secret, wantErr: ErrMissingSignature},
		{name: "no secret configured: fail", header: Sign(payload, secret, now), wantErr: ErrNoSecret},
		{name: "missing timestamp: fail", header: "v1=abcd", secret: secret, wantErr: ErrMalformedHeader},
		{name: "signed with another secret: fail", header: Sign(payload, "other", now), secret: secret, wantErr: ErrSignatureInvalid},
		{name: "replayed later: fail", header: Sign(payload, secret, now.Add(-6*time.Minute)), secret: secret, wantErr: ErrStaleTimestamp},
		{name: "clock slightly ahead: ok", header: Sign(payload, secret, now.Add(time.Minute)), secret: secret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(payload, tt.header, tt.secret, DefaultTolerance, now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("tampered body: fail", func(t *testing.T) {
		header := Sign(payload, secret, now)
		err := VerifySignature([]byte(`{"id":"evt_2"}`), header, secret, DefaultTolerance, now)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})
}

// flakyOrders fails the next n order updates.
type flakyOrders struct {
	domorder.Repository
	failures atomic.Int32
}

func (f *flakyOrders) Update(ctx context.Context, o *domorder.Order) error {
	if f.failures.Add(-1) >= 0 {
		return errors.New("orders: connection reset")
	}
	return f.Repository.Update(ctx, o)
}

type env struct {
	w       *apptest.World
	orders  *flakyOrders
	proc    *Processor
	product catalog.Product
	order   *domorder.Order
	intent  dompayment.Intent
}

// newEnv places a payment-gated order for qty units of a product with the given stock.
func newEnv(t *testing.T, stock, qty int) *env {
	t.Helper()
	w := apptest.NewWorld()
	user, _ := w.Buyer()
	p := w.Product("25.00", stock)
	o := w.Order(t, user, func(o *domorder.Order) { require.NoError(t, o.MarkAwaitingPayment()) },
		apptest.Line{Product: p, Quantity: qty})

	adapter := apppayment.NewAdapter(w.Gateway, w.Payments, &apptest.Sequence{Prefix: "pay"}, nil)
	intent, err := adapter.CreateIntent(context.Background(), o, "")
	require.NoError(t, err)

	orders := &flakyOrders{Repository: w.Orders}
	proc := NewProcessor(Config{Secret: secret}, w.Payments, orders,
		appinventory.NewLedger(w.Products, nil), w.Processed, w.Events, nil)
	return &env{w: w, orders: orders, proc: proc, product: p, order: o, intent: intent}
}

func (e *env) deliver(t *testing.T, id, typ string, mutate func(*IntentObject)) (*Result, error) {
	t.Helper()
	var evt Event
	evt.ID, evt.Type, evt.Created = id, typ, time.Now().Unix()
	evt.Data.Object = IntentObject{
		ID:       e.intent.ID,
		Amount:   e.intent.Amount,
		Currency: "usd",
		Metadata: map[string]string{"order_id": e.order.ID},
	}
	if mutate != nil {
		mutate(&evt.Data.Object)
	}
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	return e.proc.Execute(context.Background(), Input{Payload: payload, Signature: Sign(payload, secret, time.Now())})
}

func withCharge(o *IntentObject) {
	o.Status = string(dompayment.IntentSucceeded)
	var c ChargeObject
	c.ID = "ch_" + gofakeit.LetterN(10)
	c.ReceiptURL = gofakeit.URL()
	c.PaymentMethodDetails.Card.Brand = "visa"
	c.PaymentMethodDetails.Card.Last4 = "4242"
	o.Charges.Data = []ChargeObject{c}
}

func TestProcessor_Succeeded(t *testing.T) {
	e := newEnv(t, 5, 2)

	res, err := e.deliver(t, "evt_1", TypeIntentSucceeded, withCharge)
	require.NoError(t, err)
	assert.Equal(t, "OK", res.Status)
	assert.Equal(t, "evt_1", res.EventID)

	pay, err := e.w.Payments.GetByIntentID(context.Background(), e.intent.ID)
	require.NoError(t, err)
	assert.Equal(t, dompayment.StatusPaid, pay.Status)
	assert.Equal(t, "4242", pay.CardLast4)
	assert.NotNil(t, pay.PaidAt)

	o := e.w.Reload(t, e.order)
	assert.Equal(t, domorder.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, domorder.StatusConfirmed, o.Status)
	assert.True(t, o.Items[0].StockReserved)
	assert.Equal(t, 3, e.w.StockOf(t, e.product.ID))
	require.Len(t, e.w.Events.Named("order.paid"), 1)

	// The same delivery again is dropped by id.
	res, err = e.deliver(t, "evt_1", TypeIntentSucceeded, withCharge)
	require.NoError(t, err)
	assert.Equal(t, statusDuplicate, res.Status)

	// A second event for the same intent is a no-op.
	res, err = e.deliver(t, "evt_2", TypeIntentSucceeded, withCharge)
	require.NoError(t, err)
	assert.Equal(t, statusAlreadyApplied, res.Status)
	assert.Equal(t, 3, e.w.StockOf(t, e.product.ID))
	assert.Len(t, e.w.Events.Named("order.paid"), 1)
}

func TestProcessor_SucceededWithoutStock(t *testing.T) {
	e := newEnv(t, 1, 2)

	res, err := e.deliver(t, "evt_1", TypeIntentSucceeded, withCharge)
	require.NoError(t, err)
	assert.Equal(t, "PAID_STOCK_SHORT", res.Status)

	o := e.w.Reload(t, e.order)
	assert.Equal(t, domorder.PaymentPaid, o.PaymentStatus)
	assert.False(t, o.Items[0].StockReserved)
	assert.Equal(t, 1, e.w.StockOf(t, e.product.ID))

	failed := e.w.Events.Named("inventory.reservation_failed")
	require.Len(t, failed, 1)
	assert.Equal(t, e.order.ID, failed[0].AggregateID())
	assert.Len(t, e.w.Events.Named("order.paid"), 1)
}

func TestProcessor_SucceededRedeliveredAfterStoreFailure(t *testing.T) {
	e := newEnv(t, 5, 2)
	e.orders.failures.Store(1)

	_, err := e.deliver(t, "evt_1", TypeIntentSucceeded, withCharge)
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.Equal(t, 5, e.w.StockOf(t, e.product.ID), "stock taken for the failed write is handed back")

	res, err := e.deliver(t, "evt_1", TypeIntentSucceeded, withCharge)
	require.NoError(t, err)
	assert.Equal(t, "OK", res.Status)
	assert.Equal(t, 3, e.w.StockOf(t, e.product.ID))
	assert.Equal(t, domorder.PaymentPaid, e.w.Reload(t, e.order).PaymentStatus)
}

func TestProcessor_ConcurrentSuccessDeliveries(t *testing.T) {
	for round := range 20 {
		e := newEnv(t, 16, 2)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			statuses = map[string]int{}
		)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := e.deliver(t, fmt.Sprintf("evt_%d_%d", round, i), TypeIntentSucceeded, withCharge)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				statuses[res.Status]++
				mu.Unlock()
			}()
		}
		wg.Wait()

		require.Equal(t, 1, statuses["OK"], "round %d: %v", round, statuses)
		assert.Equal(t, 7, statuses[statusAlreadyApplied], "round %d: %v", round, statuses)
		assert.Equal(t, 14, e.w.StockOf(t, e.product.ID), "round %d: stock is taken once", round)
		assert.Len(t, e.w.Events.Named("order.paid"), 1)

		o := e.w.Reload(t, e.order)
		assert.Equal(t, domorder.PaymentPaid, o.PaymentStatus)
		assert.True(t, o.Items[0].StockReserved)
	}
}

func TestProcessor_SucceededAfterBuyerCancelled(t *testing.T) {
	e := newEnv(t, 5, 2)
	ctx := context.Background()
	ledger := appinventory.NewLedger(e.w.Products, nil)

	_, err := apporder.NewCancelOrderUseCase(e.w.Orders, ledger, e.w.Events, nil).Execute(ctx, apporder.CancelOrderInput{
		Caller:      application.Caller{UserID: e.order.UserID},
		OrderNumber: e.order.Number,
		Reason:      "found it cheaper",
	})
	require.NoError(t, err)

	// The capture raced the cancellation and won at the gateway.
	e.w.Gateway.SetStatus(e.intent.ID, dompayment.IntentSucceeded)
	res, err := e.deliver(t, "evt_late", TypeIntentSucceeded, withCharge)
	require.NoError(t, err)
	assert.Equal(t, statusPaidAfterCancel, res.Status)

	o := e.w.Reload(t, e.order)
	assert.Equal(t, domorder.StatusCancelled, o.Status)
	assert.Equal(t, domorder.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, 5, e.w.StockOf(t, e.product.ID), "a cancelled order takes no stock")
	assert.Empty(t, e.w.Events.Named("order.paid"))
	require.Len(t, e.w.Events.Named("order.paid_after_cancel"), 1)

	res, err = e.deliver(t, "evt_late_2", TypeIntentSucceeded, withCharge)
	require.NoError(t, err)
	assert.Equal(t, statusAlreadyApplied, res.Status)

	ops := application.Caller{UserID: "ops-1", Role: application.RoleAdmin}
	eligibility, err := apprefund.NewEligibilityUseCase(e.w.Orders, 0, nil).
		Execute(ctx, apprefund.EligibilityInput{Caller: ops, OrderNumber: e.order.Number})
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)

	refund, err := apprefund.NewProcessor(apprefund.Deps{
		Orders:    e.w.Orders,
		Payments:  e.w.Payments,
		Gateway:   apppayment.NewAdapter(e.w.Gateway, e.w.Payments, &apptest.Sequence{Prefix: "pay"}, nil),
		Stock:     ledger,
		Publisher: e.w.Events,
	}, 0, nil).Execute(ctx, apprefund.ProcessInput{Caller: ops, OrderNumber: e.order.Number, Reason: "captured after cancel"})
	require.NoError(t, err)
	assert.True(t, refund.FullyRefunded)
	assert.Equal(t, domorder.StatusCancelled, refund.OrderStatus)
	assert.Equal(t, e.intent.Amount, e.w.Gateway.Refunded(e.intent.ID))
	assert.Equal(t, 5, e.w.StockOf(t, e.product.ID))
}

func TestProcessor_FailedAndCanceled(t *testing.T) {
	t.Run("payment failed: ok", func(t *testing.T) {
		e := newEnv(t, 5, 1)
		res, err := e.deliver(t, "evt_f", TypeIntentFailed, func(o *IntentObject) {
			o.Status = string(dompayment.IntentRequiresPaymentMethod)
			o.LastPaymentError = &PaymentError{Code: "card_declined", Message: "Your card was declined."}
		})
		require.NoError(t, err)
		assert.Equal(t, "OK", res.Status)

		pay, err := e.w.Payments.GetByIntentID(context.Background(), e.intent.ID)
		require.NoError(t, err)
		assert.Equal(t, dompayment.StatusFailed, pay.Status)
		assert.Equal(t, "card_declined", pay.FailureCode)
		assert.Equal(t, domorder.PaymentFailed, e.w.Reload(t, e.order).PaymentStatus)
		assert.Equal(t, 5, e.w.StockOf(t, e.product.ID))
	})

	t.Run("intent canceled: ok", func(t *testing.T) {
		e := newEnv(t, 5, 1)
		res, err := e.deliver(t, "evt_c", TypeIntentCanceled, nil)
		require.NoError(t, err)
		assert.Equal(t, "OK", res.Status)

		pay, err := e.w.Payments.GetByIntentID(context.Background(), e.intent.ID)
		require.NoError(t, err)
		assert.Equal(t, dompayment.StatusCancelled, pay.Status)

		res, err = e.deliver(t, "evt_f", TypeIntentFailed, nil)
		require.NoError(t, err)
		assert.Equal(t, statusAlreadyApplied, res.Status)
	})
}

func TestProcessor_Skips(t *testing.T) {
	tests := []struct {
		name       string
		typ        string
		mutate     func(*IntentObject)
		wantStatus string
	}{
		{
			name:       "intent from another system: ok",
			typ:        TypeIntentSucceeded,
			mutate:     func(o *IntentObject) { o.ID = "pi_elsewhere" },
			wantStatus: statusUnknown,
		},
		{name: "unhandled type: ok", typ: "charge.dispute.created", wantStatus: "IGNORED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, 5, 1)
			res, err := e.deliver(t, "evt_"+gofakeit.LetterN(8), tt.typ, tt.mutate)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, domorder.PaymentAwaiting, e.w.Reload(t, e.order).PaymentStatus)
		})
	}
}

func TestProcessor_Rejects(t *testing.T) {
	e := newEnv(t, 5, 1)
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		wantCode  string
	}{
		{name: "unsigned: fail", payload: body, wantCode: "SIGNATURE_INVALID"},
		{name: "wrong secret: fail", payload: body, signature: Sign(body, "nope", time.Now()), wantCode: "SIGNATURE_INVALID"},
		{name: "not json: fail", payload: []byte("{"), signature: Sign([]byte("{"), secret, time.Now()), wantCode: "EVENT_MALFORMED"},
		{name: "no event id: fail", payload: []byte(`{"type":"x"}`), signature: Sign([]byte(`{"type":"x"}`), secret, time.Now()), wantCode: "EVENT_MALFORMED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.proc.Execute(context.Background(), Input{Payload: tt.payload, Signature: tt.signature})
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
			assert.Equal(t, tt.wantCode, apperror.CodeOf(err))
		})
	}
}
