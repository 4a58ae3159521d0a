// Package webhook applies the gateway's asynchronous payment notifications to payments and orders.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appinventory "github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	webhookService       = "webhook-service"
	useCaseWebhook       = "webhook.process"
	publishTimeout       = 300 * time.Millisecond
	statusUnknown        = "UNKNOWN_INTENT"
	statusDuplicate      = "DUPLICATE_EVENT"
	statusAlreadyApplied = "ALREADY_APPLIED"

	statusPaidAfterCancel = "PAID_AFTER_CANCEL"
)

// ProcessedStore remembers event ids that were handled.
type ProcessedStore interface {
	// Seen records id and reports whether it had been recorded before.
	Seen(ctx context.Context, id string) (bool, error)
	// Forget drops id so a redelivery is processed again.
	Forget(ctx context.Context, id string) error
}

type Ledger interface {
	ReserveOrder(ctx context.Context, o *domorder.Order, policy appinventory.Policy) ([]appinventory.Shortfall, error)
	RestoreItems(ctx context.Context, items []domorder.Item) error
}

type Config struct {
	Secret    string
	Tolerance time.Duration
}

type Input struct {
	Payload   []byte
	Signature string
}

type Result struct {
	EventID string
	Type    string
	// Status says what happened, e.g. OK, DUPLICATE_EVENT, UNKNOWN_INTENT, IGNORED.
	Status string
}

var _ application.UseCase[Input, *Result] = (*Processor)(nil)

type Processor struct {
	cfg       Config
	payments  dompayment.Repository
	orders    domorder.Repository
	ledger    Ledger
	processed ProcessedStore
	publisher domoutbox.Publisher
	now       func() time.Time

	in     application.Instruments
	events observability.Counter // webhook_events_total{type,outcome}
}

func NewProcessor(
	cfg Config,
	payments dompayment.Repository,
	orders domorder.Repository,
	ledger Ledger,
	processed ProcessedStore,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Processor {
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultTolerance
	}
	in := application.NewInstruments(tel, webhookService)
	return &Processor{
		cfg:       cfg,
		payments:  payments,
		orders:    orders,
		ledger:    ledger,
		processed: processed,
		publisher: publisher,
		now:       time.Now,
		in:        in,
		events:    in.Counter(observability.MWebhookEvents),
	}
}

// Execute verifies, de-duplicates and applies one webhook delivery. A returned error of kind
// Validation means the delivery was rejected; any other error asks the gateway to redeliver.
func (p *Processor) Execute(ctx context.Context, in Input) (_ *Result, err error) {
	ctx, probe := p.in.Begin(ctx, useCaseWebhook, "ProcessWebhook")
	res := &Result{Status: "OK"}
	defer func() {
		outcome := "processed"
		switch {
		case err != nil:
			outcome = "error"
		case res.Status != "OK":
			outcome = "skipped"
		}
		p.events.Add(1, observability.L("type", typeLabel(res.Type)), observability.L("outcome", outcome))
		probe.End(err)
	}()

	if err := VerifySignature(in.Payload, in.Signature, p.cfg.Secret, p.cfg.Tolerance, p.now()); err != nil {
		probe.Fail("SIGNATURE_INVALID")
		probe.Logger().Warn("webhook_signature_rejected", observability.F("error", err.Error()))
		return nil, apperror.Wrap(apperror.KindValidation, "SIGNATURE_INVALID", err, "invalid webhook signature")
	}

	evt, err := ParseEvent(in.Payload)
	if err != nil {
		probe.Fail("EVENT_MALFORMED")
		return nil, apperror.Wrap(apperror.KindValidation, "EVENT_MALFORMED", err, "malformed webhook event")
	}
	res.EventID, res.Type = evt.ID, evt.Type
	probe.Field("event_id", evt.ID)
	probe.Field("event_type", evt.Type)
	probe.Span().SetAttributes(
		attribute.String("webhook.event_id", evt.ID),
		attribute.String("webhook.event_type", evt.Type),
		attribute.String("payment.intent_id", evt.Data.Object.ID),
	)

	if p.processed != nil {
		seen, serr := p.processed.Seen(ctx, evt.ID)
		switch {
		case serr != nil:
			// Fall back to the status guards alone.
			probe.Logger().Warn("webhook_dedupe_unavailable", observability.F("error", serr.Error()))
		case seen:
			res.Status = statusDuplicate
			probe.Note(statusDuplicate)
			return res, nil
		}
	}

	status, err := p.dispatch(ctx, evt)
	if err != nil {
		if p.processed != nil {
			if ferr := p.processed.Forget(context.WithoutCancel(ctx), evt.ID); ferr != nil {
				probe.Logger().Warn("webhook_forget_failed", observability.F("error", ferr.Error()))
			}
		}
		return nil, err
	}
	res.Status = status
	probe.Note(status)
	return res, nil
}

func (p *Processor) dispatch(ctx context.Context, evt Event) (string, error) {
	obj := evt.Data.Object
	switch evt.Type {
	case TypeIntentSucceeded:
		return p.onSucceeded(ctx, obj)
	case TypeIntentFailed:
		return p.onFailed(ctx, obj)
	case TypeIntentCanceled:
		return p.onCanceled(ctx, obj)
	default:
		p.logger(ctx).Info("webhook_event_ignored", observability.F("event_type", evt.Type))
		return "IGNORED", nil
	}
}

func (p *Processor) onSucceeded(ctx context.Context, obj IntentObject) (string, error) {
	logger := p.logger(ctx)

	pay, status, err := p.updatePayment(ctx, obj.ID, func(pay *dompayment.Payment) (bool, error) {
		if pay.Status.Settled() {
			return false, nil
		}
		if pay.Status != dompayment.StatusPending {
			// FAILED and CANCELLED are terminal locally; someone has to look at the captured money.
			logger.Error("payment_succeeded_after_terminal_status",
				observability.F("payment_id", pay.ID),
				observability.F("intent_id", pay.IntentID),
				observability.F("payment_status", string(pay.Status)),
			)
			return false, nil
		}
		return true, pay.MarkPaid(obj.Charge())
	})
	if err != nil || pay == nil {
		return status, err
	}
	if !pay.Status.Settled() {
		return "STALE_TRANSITION", nil
	}

	o, shortfalls, changed, err := p.applyPaidToOrder(ctx, pay.OrderID)
	if err != nil {
		return "", err
	}
	if !changed {
		return statusAlreadyApplied, nil
	}
	if o.Status == domorder.StatusCancelled {
		p.publish(ctx, domorder.NewPaidAfterCancelEvent(o))
		logger.Error("payment_captured_after_cancel",
			observability.F("order_id", o.ID),
			observability.F("order_number", o.Number),
			observability.F("intent_id", pay.IntentID),
			observability.F("action", "refund the capture"),
		)
		return statusPaidAfterCancel, nil
	}

	for _, sf := range shortfalls {
		p.publish(ctx, dominv.NewReservationFailedEvent(o.ID, o.Number, sf.ProductID, sf.Quantity, sf.Reason))
	}
	p.publish(ctx, domorder.NewPaidEvent(o))

	logger.Info("order_paid",
		observability.F("order_id", o.ID),
		observability.F("order_number", o.Number),
		observability.F("order_status", string(o.Status)),
		observability.F("unreserved_lines", len(shortfalls)),
	)
	if len(shortfalls) > 0 {
		return "PAID_STOCK_SHORT", nil
	}
	return "OK", nil
}

// applyPaidToOrder marks the order paid and reserves its stock in one order write.
// A cancelled order keeps its status and takes no stock. On a version conflict it re-reads once
// and re-applies; stock it took and could not record is handed back so a redelivery starts clean.
func (p *Processor) applyPaidToOrder(ctx context.Context, orderID string) (*domorder.Order, []appinventory.Shortfall, bool, error) {
	o, err := p.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("webhook: load order: %w", err)
	}
	if paidFamily(o.PaymentStatus) {
		return o, nil, false, nil
	}
	if !p.markPaid(ctx, o) {
		return o, nil, false, nil
	}

	var (
		shortfalls  []appinventory.Shortfall
		reservedNow []int
	)
	if o.Status != domorder.StatusCancelled {
		open := o.UnreservedItems()
		shortfalls, _ = p.ledger.ReserveOrder(ctx, o, appinventory.ContinueOnShortfall)
		for _, i := range open {
			if o.Items[i].StockReserved {
				reservedNow = append(reservedNow, i)
			}
		}
	}

	for attempt := 0; ; attempt++ {
		err = p.orders.Update(ctx, o)
		if err == nil {
			return o, shortfalls, true, nil
		}
		if !errors.Is(err, domorder.ErrConflict) || attempt > 0 {
			break
		}

		fresh, gerr := p.orders.Get(ctx, orderID)
		if gerr != nil {
			err = gerr
			break
		}
		if paidFamily(fresh.PaymentStatus) {
			// A concurrent delivery won; give back what this one took.
			p.restore(ctx, lines(o, reservedNow))
			return fresh, nil, false, nil
		}
		if !p.markPaid(ctx, fresh) {
			p.restore(ctx, lines(o, reservedNow))
			return fresh, nil, false, nil
		}
		var keep []int
		for _, i := range reservedNow {
			if fresh.Status == domorder.StatusCancelled || fresh.Items[i].StockReserved {
				p.restore(ctx, lines(o, []int{i}))
				continue
			}
			fresh.MarkReserved(i)
			keep = append(keep, i)
		}
		reservedNow, o = keep, fresh
	}

	p.restore(ctx, lines(o, reservedNow))
	return nil, nil, false, fmt.Errorf("webhook: update order: %w", err)
}

// markPaid applies a capture to o. A cancelled order records the capture without reviving it.
func (p *Processor) markPaid(ctx context.Context, o *domorder.Order) bool {
	mark := o.MarkPaid
	if o.Status == domorder.StatusCancelled {
		mark = o.MarkPaidAfterCancel
	}
	if err := mark(); err != nil {
		p.logger(ctx).Error("payment_captured_for_unpayable_order",
			observability.F("order_id", o.ID),
			observability.F("order_status", string(o.Status)),
			observability.F("payment_status", string(o.PaymentStatus)),
			observability.F("error", err.Error()),
		)
		return false
	}
	return true
}

func (p *Processor) onFailed(ctx context.Context, obj IntentObject) (string, error) {
	code, msg := obj.Failure()
	pay, status, err := p.updatePayment(ctx, obj.ID, func(pay *dompayment.Payment) (bool, error) {
		if pay.Status != dompayment.StatusPending {
			return false, nil
		}
		return true, pay.MarkFailed(code, msg)
	})
	if err != nil || pay == nil {
		return status, err
	}
	if pay.Status != dompayment.StatusFailed {
		return statusAlreadyApplied, nil
	}

	changed, err := p.updateOrder(ctx, pay.OrderID, func(o *domorder.Order) (bool, error) {
		if o.PaymentStatus != domorder.PaymentPending && o.PaymentStatus != domorder.PaymentAwaiting {
			return false, nil
		}
		return true, o.MarkPaymentFailed()
	})
	if err != nil {
		return "", err
	}
	p.logger(ctx).Warn("payment_failed",
		observability.F("order_id", pay.OrderID),
		observability.F("intent_id", pay.IntentID),
		observability.F("failure_code", code),
	)
	if !changed {
		return statusAlreadyApplied, nil
	}
	return "OK", nil
}

func (p *Processor) onCanceled(ctx context.Context, obj IntentObject) (string, error) {
	pay, status, err := p.updatePayment(ctx, obj.ID, func(pay *dompayment.Payment) (bool, error) {
		if pay.Status != dompayment.StatusPending {
			return false, nil
		}
		return true, pay.MarkCancelled()
	})
	if err != nil || pay == nil {
		return status, err
	}
	if pay.Status != dompayment.StatusCancelled {
		return statusAlreadyApplied, nil
	}
	return "OK", nil
}

// updatePayment loads the payment of intentID, lets mutate change it and stores it, re-reading once
// on a version conflict. A nil payment with no error means the intent is not ours.
func (p *Processor) updatePayment(ctx context.Context, intentID string, mutate func(*dompayment.Payment) (bool, error)) (*dompayment.Payment, string, error) {
	for attempt := 0; ; attempt++ {
		pay, err := p.payments.GetByIntentID(ctx, intentID)
		if errors.Is(err, dompayment.ErrNotFound) {
			p.logger(ctx).Info("webhook_unknown_intent", observability.F("intent_id", intentID))
			return nil, statusUnknown, nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("webhook: load payment: %w", err)
		}

		changed, err := mutate(pay)
		if err != nil {
			return nil, "", err
		}
		if !changed {
			return pay, "", nil
		}
		err = p.payments.Update(ctx, pay)
		if err == nil {
			return pay, "", nil
		}
		if !errors.Is(err, dompayment.ErrConflict) || attempt > 0 {
			return nil, "", fmt.Errorf("webhook: update payment: %w", err)
		}
	}
}

func (p *Processor) updateOrder(ctx context.Context, orderID string, mutate func(*domorder.Order) (bool, error)) (bool, error) {
	for attempt := 0; ; attempt++ {
		o, err := p.orders.Get(ctx, orderID)
		if err != nil {
			return false, fmt.Errorf("webhook: load order: %w", err)
		}
		changed, err := mutate(o)
		if err != nil || !changed {
			return false, err
		}
		err = p.orders.Update(ctx, o)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, domorder.ErrConflict) || attempt > 0 {
			return false, fmt.Errorf("webhook: update order: %w", err)
		}
	}
}

func (p *Processor) restore(ctx context.Context, items []domorder.Item) {
	if len(items) == 0 {
		return
	}
	if err := p.ledger.RestoreItems(ctx, items); err != nil {
		p.logger(ctx).Error("stock_restore_failed", observability.F("error", err.Error()))
	}
}

func (p *Processor) publish(ctx context.Context, e domoutbox.Event) {
	if p.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	start := time.Now()
	err := p.publisher.Publish(pubCtx, e)
	p.in.External("outbox", e.EventName(), start, err)
	if err != nil {
		p.logger(ctx).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

func (p *Processor) logger(ctx context.Context) observability.Logger {
	return p.in.LoggerFor(ctx)
}

func paidFamily(s domorder.PaymentStatus) bool {
	return s == domorder.PaymentPaid || s == domorder.PaymentPartiallyRefunded || s == domorder.PaymentRefunded
}

func lines(o *domorder.Order, idx []int) []domorder.Item {
	items := make([]domorder.Item, 0, len(idx))
	for _, i := range idx {
		items = append(items, o.Items[i])
	}
	return items
}

func typeLabel(t string) string {
	switch t {
	case TypeIntentSucceeded, TypeIntentFailed, TypeIntentCanceled:
		return t
	case "":
		return "invalid"
	default:
		return "other"
	}
}
