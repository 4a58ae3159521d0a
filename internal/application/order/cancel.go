package order

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const useCaseOrderCancel = "order.cancel"

var _ application.UseCase[CancelOrderInput, *domorder.Order] = (*CancelOrderUseCase)(nil)

type CancelOrderInput struct {
	Caller      application.Caller
	OrderNumber string
	Reason      string
}

// CancelOrderUseCase cancels an order and hands its reserved stock back.
// Buyers may cancel their own orders until processing starts; admins whenever the status table allows.
type CancelOrderUseCase struct {
	repo      domorder.Repository
	stock     StockRestorer
	publisher domoutbox.Publisher
	in        application.Instruments
}

func NewCancelOrderUseCase(repo domorder.Repository, stock StockRestorer, publisher domoutbox.Publisher, tel observability.Observability) *CancelOrderUseCase {
	return &CancelOrderUseCase{
		repo:      repo,
		stock:     stock,
		publisher: publisher,
		in:        application.NewInstruments(tel, orderService),
	}
}

func (uc *CancelOrderUseCase) Execute(ctx context.Context, cmd CancelOrderInput) (_ *domorder.Order, err error) {
	ctx, probe := uc.in.Begin(ctx, useCaseOrderCancel, "CancelOrder",
		attribute.String("order.number", cmd.OrderNumber),
	)
	defer func() { probe.End(err) }()

	if cmd.Reason == "" {
		return nil, apperror.Validation("REASON_REQUIRED", "cancellation reason is required")
	}
	o, err := LoadForCaller(ctx, uc.repo, cmd.OrderNumber, cmd.Caller)
	if err != nil {
		return nil, err
	}
	probe.Field("order_id", o.ID)

	actor := domorder.ActorAdmin
	if !cmd.Caller.IsAdmin() {
		actor = domorder.ActorUser
		if o.Status != domorder.StatusPending && o.Status != domorder.StatusConfirmed {
			return nil, apperror.Conflict("ORDER_NOT_CANCELLABLE", "order can no longer be cancelled, status "+string(o.Status))
		}
	}

	if err := o.Cancel(actor, cmd.Reason); err != nil {
		return nil, apperror.Classify(err)
	}
	if o.PaymentStatus == domorder.PaymentPending || o.PaymentStatus == domorder.PaymentAwaiting {
		if err := o.MarkPaymentCancelled(); err != nil {
			return nil, apperror.Classify(err)
		}
	}
	released := o.ReleaseReservedItems()

	if err := uc.repo.Update(ctx, o); err != nil {
		probe.Fail("ORDER_UPDATE_FAILED")
		return nil, wrapRepositoryError(err, "ORDER_SAVE_FAILED", "save order")
	}

	if err := uc.stock.RestoreItems(ctx, released); err != nil {
		// The order is already cancelled; surface the stock drift to operators instead of failing.
		probe.Note("STOCK_RESTORE_FAILED")
		probe.Logger().Error("stock_restore_failed",
			observability.F("order_id", o.ID),
			observability.F("error", err.Error()),
		)
	}
	probe.Field("released_lines", len(released))

	if uc.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		start := time.Now()
		perr := uc.publisher.Publish(pubCtx, domorder.NewCancelledEvent(o))
		cancel()
		uc.in.External("outbox", "order.cancelled", start, perr)
		if perr != nil {
			probe.Note("EVENT_PUBLISH_FAILED")
			probe.Field("event_publish_error", perr.Error())
		}
	}

	probe.Span().AddEvent("order.cancelled", trace.WithAttributes(attribute.String("order.actor", string(actor))))
	return o, nil
}
