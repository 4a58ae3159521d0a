// Package notification sends best-effort buyer emails for order events.
package notification

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const notificationWorker = "notification-worker"

// Message is what a notifier needs to render one email.
type Message struct {
	To          string
	Name        string
	OrderNumber string
	Total       decimal.Decimal
	Currency    string
	Reason      string
}

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, m Message) error
	SendOrderCancelled(ctx context.Context, m Message) error
}

// Worker never fails an event: a lost email must not hold up the order pipeline.
type Worker struct {
	subscriber domoutbox.Subscriber
	customers  customer.Directory
	notifier   Notifier
	in         application.Instruments
}

func NewWorker(subscriber domoutbox.Subscriber, customers customer.Directory, notifier Notifier, tel observability.Observability) *Worker {
	return &Worker{
		subscriber: subscriber,
		customers:  customers,
		notifier:   notifier,
		in:         application.NewInstruments(tel, notificationWorker),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.notifier == nil {
		return
	}
	w.subscriber.Subscribe(domorder.PaidEvent{}.EventName(), w.handleOrderPaid)
	w.subscriber.Subscribe(domorder.CancelledEvent{}.EventName(), w.handleOrderCancelled)
}

func (w *Worker) handleOrderPaid(ctx context.Context, e domoutbox.Event) error {
	const useCase = "notification.worker.order_paid"
	ctx, probe := w.in.Begin(ctx, useCase, "OrderPaid", attribute.String("event", e.EventName()))
	defer probe.End(nil)

	evt, ok := e.(domorder.PaidEvent)
	if !ok {
		probe.Note("IGNORED")
		return nil
	}
	probe.Field("order_id", evt.OrderID)

	m, ok := w.message(ctx, probe, evt.UserID)
	if !ok {
		return nil
	}
	m.OrderNumber, m.Total, m.Currency = evt.OrderNumber, evt.Total, evt.Currency
	if err := w.notifier.SendOrderConfirmation(ctx, m); err != nil {
		probe.Note("SEND_FAILED")
		probe.Logger().Warn("order_confirmation_not_sent", observability.F("error", err.Error()))
	}
	return nil
}

func (w *Worker) handleOrderCancelled(ctx context.Context, e domoutbox.Event) error {
	const useCase = "notification.worker.order_cancelled"
	ctx, probe := w.in.Begin(ctx, useCase, "OrderCancelled", attribute.String("event", e.EventName()))
	defer probe.End(nil)

	evt, ok := e.(domorder.CancelledEvent)
	if !ok {
		probe.Note("IGNORED")
		return nil
	}
	probe.Field("order_id", evt.OrderID)

	m, ok := w.message(ctx, probe, evt.UserID)
	if !ok {
		return nil
	}
	m.OrderNumber, m.Reason = evt.OrderNumber, evt.Reason
	if err := w.notifier.SendOrderCancelled(ctx, m); err != nil {
		probe.Note("SEND_FAILED")
		probe.Logger().Warn("order_cancellation_not_sent", observability.F("error", err.Error()))
	}
	return nil
}

func (w *Worker) message(ctx context.Context, probe *application.Probe, userID string) (Message, bool) {
	u, err := w.customers.FindUser(ctx, userID)
	if err != nil {
		probe.Note("RECIPIENT_UNKNOWN")
		probe.Logger().Warn("notification_recipient_lookup_failed",
			observability.F("user_id", userID),
			observability.F("error", err.Error()),
		)
		return Message{}, false
	}
	if u.Email == "" {
		probe.Note("RECIPIENT_NO_EMAIL")
		return Message{}, false
	}
	return Message{To: u.Email, Name: u.Name}, true
}
