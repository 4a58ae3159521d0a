// Package refund returns captured money to buyers and unwinds the order when it is fully refunded.
package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/currency"
)

const (
	refundService            = "refund-service"
	useCaseRefundProcess     = "refund.process"
	useCaseRefundEligibility = "refund.check_eligibility"
	publishTimeout           = 300 * time.Millisecond
)

var (
	_ application.UseCase[ProcessInput, *ProcessResult]   = (*Processor)(nil)
	_ application.UseCase[EligibilityInput, *Eligibility] = (*EligibilityUseCase)(nil)
)

type Gateway interface {
	CreateFullRefund(ctx context.Context, intentID, key, reason string) (dompayment.Refund, error)
	CreatePartialRefund(ctx context.Context, intentID string, amount decimal.Decimal, cur currency.Unit, key, reason string) (dompayment.Refund, error)
}

type StockRestorer interface {
	RestoreItems(ctx context.Context, items []domorder.Item) error
}

type Deps struct {
	Orders    domorder.Repository
	Payments  dompayment.Repository
	Gateway   Gateway
	Stock     StockRestorer
	Publisher domoutbox.Publisher
}

type ProcessInput struct {
	Caller      application.Caller
	OrderNumber string
	// Amount nil refunds the whole remaining balance.
	Amount       *decimal.Decimal
	Reason       string
	RestoreStock bool
}

type ProcessResult struct {
	OrderNumber    string
	RefundID       string
	Amount         decimal.Decimal
	AmountRefunded decimal.Decimal
	FullyRefunded  bool
	OrderStatus    domorder.Status
	PaymentStatus  domorder.PaymentStatus
	StockRestored  bool
}

type Processor struct {
	deps       Deps
	windowDays int
	now        func() time.Time
	in         application.Instruments
}

func NewProcessor(deps Deps, windowDays int, tel observability.Observability) *Processor {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Processor{
		deps:       deps,
		windowDays: windowDays,
		now:        time.Now,
		in:         application.NewInstruments(tel, refundService),
	}
}

func (p *Processor) Execute(ctx context.Context, cmd ProcessInput) (_ *ProcessResult, err error) {
	ctx, probe := p.in.Begin(ctx, useCaseRefundProcess, "ProcessRefund",
		attribute.String("order.number", cmd.OrderNumber),
		attribute.Bool("refund.restore_stock", cmd.RestoreStock),
	)
	defer func() { probe.End(err) }()

	if !cmd.Caller.IsAdmin() {
		return nil, apperror.Forbidden("ADMIN_REQUIRED", "only admins may issue refunds")
	}
	if cmd.Reason == "" {
		return nil, apperror.Validation("REASON_REQUIRED", "refund reason is required")
	}
	if cmd.Amount != nil {
		rounded := money.Round(*cmd.Amount)
		cmd.Amount = &rounded
	}

	o, err := apporder.LoadForCaller(ctx, p.deps.Orders, cmd.OrderNumber, cmd.Caller)
	if err != nil {
		return nil, err
	}
	probe.Field("order_id", o.ID)

	if e := evaluate(o, cmd.Amount, p.windowDays, p.now()); !e.Eligible {
		return nil, denial(e)
	}

	payments, err := p.deps.Payments.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, apperror.Internal(err, "load payments")
	}
	pay, ok := lo.Find(payments, func(x *dompayment.Payment) bool { return x.Status.Refundable() })
	if !ok {
		return nil, apperror.Conflict("NO_REFUNDABLE_PAYMENT", "order has no captured payment to refund")
	}

	delta := o.RefundableAmount()
	if cmd.Amount != nil {
		delta = *cmd.Amount
	}
	if delta.GreaterThan(pay.Remaining()) {
		return nil, apperror.Conflict(CodeExceedsRemaining, "refund exceeds what remains on the payment")
	}
	full := delta.Equal(pay.Remaining())
	probe.Field("amount", delta.String())
	probe.Field("full", full)

	key := refundKey(pay, delta)
	var r dompayment.Refund
	if full {
		r, err = p.deps.Gateway.CreateFullRefund(ctx, pay.IntentID, key, cmd.Reason)
	} else {
		r, err = p.deps.Gateway.CreatePartialRefund(ctx, pay.IntentID, delta, pay.Currency, key, cmd.Reason)
	}
	if err != nil {
		probe.Fail("GATEWAY_REFUND_FAILED")
		return nil, apperror.Classify(err)
	}
	probe.Field("refund_id", r.ID)

	// Money has moved; from here on local failures are logged loudly and reported as internal.
	if err := p.recordOnPayment(ctx, pay, delta); err != nil {
		probe.Fail("PAYMENT_RECORD_FAILED")
		probe.Logger().Error("refund_not_recorded_on_payment",
			observability.F("payment_id", pay.ID),
			observability.F("refund_id", r.ID),
			observability.F("error", err.Error()),
		)
		return nil, apperror.Internal(err, "record refund on payment")
	}

	wasCancelled := o.Status == domorder.StatusCancelled
	o, released, err := p.recordOnOrder(ctx, o, delta, cmd.Reason, cmd.RestoreStock)
	if err != nil {
		probe.Fail("ORDER_RECORD_FAILED")
		probe.Logger().Error("refund_not_recorded_on_order",
			observability.F("refund_id", r.ID),
			observability.F("error", err.Error()),
		)
		return nil, apperror.Internal(err, "record refund on order")
	}

	restored := false
	if len(released) > 0 {
		if err := p.deps.Stock.RestoreItems(ctx, released); err != nil {
			probe.Note("STOCK_RESTORE_FAILED")
			probe.Logger().Error("stock_restore_failed", observability.F("error", err.Error()))
		} else {
			restored = true
		}
	}

	p.publish(ctx, probe, domorder.NewRefundedEvent(o, delta, cmd.Reason))
	if !wasCancelled && o.Status == domorder.StatusCancelled {
		p.publish(ctx, probe, domorder.NewCancelledEvent(o))
	}

	return &ProcessResult{
		OrderNumber:    o.Number,
		RefundID:       r.ID,
		Amount:         delta,
		AmountRefunded: o.AmountRefunded,
		FullyRefunded:  o.IsFullyRefunded(),
		OrderStatus:    o.Status,
		PaymentStatus:  o.PaymentStatus,
		StockRestored:  restored,
	}, nil
}

func (p *Processor) recordOnPayment(ctx context.Context, pay *dompayment.Payment, delta decimal.Decimal) error {
	for attempt := 0; ; attempt++ {
		if err := pay.RecordRefund(delta); err != nil {
			return err
		}
		err := p.deps.Payments.Update(ctx, pay)
		if err == nil || !errors.Is(err, dompayment.ErrConflict) || attempt > 0 {
			return err
		}
		if pay, err = p.deps.Payments.Get(ctx, pay.ID); err != nil {
			return err
		}
	}
}

// recordOnOrder mirrors the refund onto the order. A fully refunded order is cancelled when the
// status table allows it, a returned one becomes REFUNDED, and shipped or delivered orders keep
// their status. Reserved lines are released only for a full refund with restoreStock.
func (p *Processor) recordOnOrder(ctx context.Context, o *domorder.Order, delta decimal.Decimal, reason string, restoreStock bool) (*domorder.Order, []domorder.Item, error) {
	logger := p.in.LoggerFor(ctx)
	for attempt := 0; ; attempt++ {
		if err := o.RecordRefund(delta); err != nil {
			return nil, nil, err
		}

		var released []domorder.Item
		if o.IsFullyRefunded() {
			switch {
			case domorder.CanTransition(o.Status, domorder.StatusCancelled):
				if err := o.Cancel(domorder.ActorAdmin, reason); err != nil {
					return nil, nil, err
				}
			case o.Status == domorder.StatusReturned:
				if err := o.MarkRefunded(); err != nil {
					return nil, nil, err
				}
			default:
				logger.Info("refunded_order_keeps_status",
					observability.F("order_id", o.ID),
					observability.F("order_status", string(o.Status)),
				)
			}
			if restoreStock {
				released = o.ReleaseReservedItems()
			}
		}

		err := p.deps.Orders.Update(ctx, o)
		if err == nil {
			return o, released, nil
		}
		if !errors.Is(err, domorder.ErrConflict) || attempt > 0 {
			return nil, nil, fmt.Errorf("refund: update order: %w", err)
		}
		if o, err = p.deps.Orders.Get(ctx, o.ID); err != nil {
			return nil, nil, err
		}
	}
}

func (p *Processor) publish(ctx context.Context, probe *application.Probe, e domoutbox.Event) {
	if p.deps.Publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	start := time.Now()
	err := p.deps.Publisher.Publish(pubCtx, e)
	p.in.External("outbox", e.EventName(), start, err)
	if err != nil {
		probe.Note("EVENT_PUBLISH_FAILED")
		probe.Field("event_publish_error", err.Error())
	}
}

// refundKey is stable for one refund attempt: the same payment, balance and delta map to one gateway refund.
func refundKey(pay *dompayment.Payment, delta decimal.Decimal) string {
	return fmt.Sprintf("refund-%s-%s-%s", pay.ID, pay.AmountRefunded.StringFixed(2), delta.StringFixed(2))
}

func denial(e Eligibility) error {
	kind := apperror.KindConflict
	if e.Code == CodeInvalidAmount {
		kind = apperror.KindValidation
	}
	return apperror.New(kind, e.Code, e.Reason).WithDetails(e)
}

type EligibilityInput struct {
	Caller      application.Caller
	OrderNumber string
}

// EligibilityUseCase runs the refund gate without side effects.
type EligibilityUseCase struct {
	orders     domorder.Repository
	windowDays int
	now        func() time.Time
	in         application.Instruments
}

func NewEligibilityUseCase(orders domorder.Repository, windowDays int, tel observability.Observability) *EligibilityUseCase {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &EligibilityUseCase{
		orders:     orders,
		windowDays: windowDays,
		now:        time.Now,
		in:         application.NewInstruments(tel, refundService),
	}
}

func (uc *EligibilityUseCase) Execute(ctx context.Context, cmd EligibilityInput) (_ *Eligibility, err error) {
	ctx, probe := uc.in.Begin(ctx, useCaseRefundEligibility, "CheckRefundEligibility",
		attribute.String("order.number", cmd.OrderNumber),
	)
	defer func() { probe.End(err) }()

	if !cmd.Caller.IsAdmin() {
		return nil, apperror.Forbidden("ADMIN_REQUIRED", "only admins may check refund eligibility")
	}
	o, err := apporder.LoadForCaller(ctx, uc.orders, cmd.OrderNumber, cmd.Caller)
	if err != nil {
		return nil, err
	}
	e := evaluate(o, nil, uc.windowDays, uc.now())
	if !e.Eligible {
		probe.Note(e.Code)
	}
	return &e, nil
}
