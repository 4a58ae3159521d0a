package inventory

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const workerService = "inventory-worker"

// Worker raises an operator alert for every paid order line that could not take stock.
// Nothing is rolled back: the buyer has been charged and an operator decides between
// refunding and backordering.
type Worker struct {
	subscriber domoutbox.Subscriber
	in         application.Instruments
}

func NewWorker(subscriber domoutbox.Subscriber, tel observability.Observability) *Worker {
	return &Worker{
		subscriber: subscriber,
		in:         application.NewInstruments(tel, workerService),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(dominv.ReservationFailedEvent{}.EventName(), w.handleReservationFailed)
}

func (w *Worker) handleReservationFailed(ctx context.Context, e domoutbox.Event) (err error) {
	const useCase = "inventory.worker.reservation_failed"
	ctx, probe := w.in.Begin(ctx, useCase, "ReservationFailed",
		attribute.String("event", e.EventName()),
	)
	defer func() { probe.End(err) }()

	evt, ok := e.(dominv.ReservationFailedEvent)
	if !ok {
		probe.Note("IGNORED")
		return nil
	}
	probe.Field("order_id", evt.OrderID)
	probe.Span().SetAttributes(
		attribute.String("order.id", evt.OrderID),
		attribute.String("product.id", evt.ProductID),
	)

	probe.Logger().Error("paid_order_missing_stock",
		observability.F("order_id", evt.OrderID),
		observability.F("order_number", evt.OrderNumber),
		observability.F("product_id", evt.ProductID),
		observability.F("quantity", evt.Quantity),
		observability.F("reason", evt.Reason),
		observability.F("action", "operator must refund or backorder"),
	)
	return nil
}
