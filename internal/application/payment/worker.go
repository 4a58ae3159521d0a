package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const paymentWorker = "payment-worker"

type IntentCanceller interface {
	CancelIntent(ctx context.Context, intentID string) (dompayment.Intent, error)
}

// Worker cancels the open gateway intents of orders that get cancelled before payment.
type Worker struct {
	subscriber domoutbox.Subscriber
	payments   dompayment.Repository
	gateway    IntentCanceller
	in         application.Instruments
}

func NewWorker(subscriber domoutbox.Subscriber, payments dompayment.Repository, gateway IntentCanceller, tel observability.Observability) *Worker {
	return &Worker{
		subscriber: subscriber,
		payments:   payments,
		gateway:    gateway,
		in:         application.NewInstruments(tel, paymentWorker),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.payments == nil {
		return
	}
	w.subscriber.Subscribe(domorder.CancelledEvent{}.EventName(), w.handleOrderCancelled)
}

func (w *Worker) handleOrderCancelled(ctx context.Context, e domoutbox.Event) (err error) {
	const useCase = "payment.worker.order_cancelled"
	ctx, probe := w.in.Begin(ctx, useCase, "OrderCancelled",
		attribute.String("event", e.EventName()),
	)
	defer func() { probe.End(err) }()

	evt, ok := e.(domorder.CancelledEvent)
	if !ok {
		probe.Note("IGNORED")
		return nil
	}
	probe.Field("order_id", evt.OrderID)

	payments, err := w.payments.ListByOrder(ctx, evt.OrderID)
	if err != nil {
		probe.Fail("PAYMENT_LOAD_FAILED")
		return fmt.Errorf("worker: load payments: %w", err)
	}

	cancelled := 0
	var errs []error
	for _, p := range payments {
		if p.Status != dompayment.StatusPending {
			continue
		}
		if _, err := w.gateway.CancelIntent(ctx, p.IntentID); err != nil {
			// Typically the intent already succeeded; its webhook marks the cancelled order paid
			// and raises order.paid_after_cancel so the capture gets refunded.
			probe.Logger().Warn("payment_intent_cancel_failed",
				observability.F("intent_id", p.IntentID),
				observability.F("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		if err := p.MarkCancelled(); err != nil {
			continue
		}
		if err := w.payments.Update(ctx, p); err != nil && !errors.Is(err, dompayment.ErrConflict) {
			errs = append(errs, fmt.Errorf("worker: update payment %s: %w", p.ID, err))
			continue
		}
		cancelled++
	}

	probe.Field("intents_cancelled", cancelled)
	if len(errs) > 0 {
		probe.Fail("INTENT_CANCEL_FAILED")
		return errors.Join(errs...)
	}
	return nil
}
