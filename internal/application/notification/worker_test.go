package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application/apptest"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	template string
	msg      Message
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (n *recordingNotifier) record(template string, m Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sent{template: template, msg: m})
	return nil
}

func (n *recordingNotifier) SendOrderConfirmation(_ context.Context, m Message) error {
	return n.record("confirmation", m)
}

func (n *recordingNotifier) SendOrderCancelled(_ context.Context, m Message) error {
	return n.record("cancelled", m)
}

type handlers map[string]domoutbox.Handler

func (h handlers) Subscribe(name string, fn domoutbox.Handler) { h[name] = fn }

func TestWorker(t *testing.T) {
	w := apptest.NewWorld()
	user, _ := w.Buyer()
	o := w.Order(t, user, func(o *domorder.Order) {
		require.NoError(t, o.MarkPaid())
	}, apptest.Line{Product: w.Product("35.00", 4), Quantity: 2})
	u, err := w.Customers.FindUser(context.Background(), user)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	subs := handlers{}
	NewWorker(subs, w.Customers, notifier, nil).Start()
	require.Contains(t, subs, "order.paid")
	require.Contains(t, subs, "order.cancelled")
	ctx := context.Background()

	require.NoError(t, subs["order.paid"](ctx, domorder.NewPaidEvent(o)))
	require.NoError(t, subs["order.cancelled"](ctx, domorder.CancelledEvent{
		OrderID: o.ID, OrderNumber: o.Number, UserID: user, Reason: "out of stock",
	}))

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "confirmation", notifier.sent[0].template)
	assert.Equal(t, u.Email, notifier.sent[0].msg.To)
	assert.Equal(t, o.Number, notifier.sent[0].msg.OrderNumber)
	assert.True(t, notifier.sent[0].msg.Total.Equal(o.Total))
	assert.Equal(t, "cancelled", notifier.sent[1].template)
	assert.Equal(t, "out of stock", notifier.sent[1].msg.Reason)
}

func TestWorker_NeverFailsTheEvent(t *testing.T) {
	w := apptest.NewWorld()
	user, _ := w.Buyer()
	notifier := &recordingNotifier{err: errors.New("smtp: 421 try later")}
	subs := handlers{}
	NewWorker(subs, w.Customers, notifier, nil).Start()
	ctx := context.Background()

	tests := []struct {
		name  string
		event domoutbox.Event
	}{
		{name: "send fails: ok", event: domorder.CancelledEvent{OrderID: "o-1", UserID: user, Reason: "x"}},
		{name: "unknown buyer: ok", event: domorder.PaidEvent{OrderID: "o-2", UserID: "ghost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, subs[tt.event.EventName()](ctx, tt.event))
		})
	}
	assert.Empty(t, notifier.sent)
}
