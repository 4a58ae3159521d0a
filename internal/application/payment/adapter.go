// Package payment drives the card gateway on behalf of orders.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/currency"
)

const (
	paymentService = "payment-service"
	gatewayPeer    = "payment_gateway"
)

type IDGenerator interface {
	NewID() string
}

// Adapter is the only component that talks to the gateway. It converts amounts to minor units,
// records Payment rows and turns every gateway failure into a Gateway-kind error.
type Adapter struct {
	gateway  dompayment.Gateway
	payments dompayment.Repository
	ids      IDGenerator
	in       application.Instruments
	group    singleflight.Group
}

func NewAdapter(gateway dompayment.Gateway, payments dompayment.Repository, ids IDGenerator, tel observability.Observability) *Adapter {
	return &Adapter{
		gateway:  gateway,
		payments: payments,
		ids:      ids,
		in:       application.NewInstruments(tel, paymentService),
	}
}

// CreateIntent returns a payment intent for o. An open intent from an earlier attempt is handed back
// instead of creating another, and concurrent calls for the same order share one gateway call.
func (a *Adapter) CreateIntent(ctx context.Context, o *domorder.Order, customerEmail string) (dompayment.Intent, error) {
	v, err, shared := a.group.Do(o.ID, func() (any, error) {
		return a.createIntent(context.WithoutCancel(ctx), o, customerEmail)
	})
	if shared {
		logctx.FromOr(ctx, a.in.Logger()).Debug("payment_intent_shared", observability.F("order_id", o.ID))
	}
	if err != nil {
		return dompayment.Intent{}, err
	}
	return v.(dompayment.Intent), nil
}

func (a *Adapter) createIntent(ctx context.Context, o *domorder.Order, customerEmail string) (dompayment.Intent, error) {
	logger := logctx.FromOr(ctx, a.in.Logger())

	previous, err := a.payments.ListByOrder(ctx, o.ID)
	if err != nil {
		return dompayment.Intent{}, apperror.Internal(err, "load payments")
	}

	if len(previous) > 0 && previous[0].Status == dompayment.StatusPending {
		latest := previous[0]
		intent, err := a.RetrieveIntent(ctx, latest.IntentID)
		if err != nil {
			return dompayment.Intent{}, err
		}
		if intent.Status.Reusable() {
			logger.Info("payment_intent_reused",
				observability.F("order_id", o.ID),
				observability.F("intent_id", intent.ID),
			)
			return intent, nil
		}
	}

	params := dompayment.CreateIntentParams{
		Amount:         money.ToMinor(o.Total, o.Currency),
		Currency:       money.Code(o.Currency),
		OrderID:        o.ID,
		OrderNumber:    o.Number,
		CustomerEmail:  customerEmail,
		IdempotencyKey: fmt.Sprintf("order-%s-attempt-%d", o.ID, len(previous)+1),
	}
	start := time.Now()
	intent, err := a.gateway.CreateIntent(ctx, params)
	a.in.External(gatewayPeer, "create_intent", start, err)
	if err != nil {
		return dompayment.Intent{}, gatewayError(err, "create payment intent")
	}

	p, err := dompayment.New(a.ids.NewID(), o.ID, intent.ID, o.Total, o.Currency)
	if err != nil {
		return dompayment.Intent{}, apperror.Classify(err)
	}
	if err := a.payments.Insert(ctx, p); err != nil && !errors.Is(err, dompayment.ErrDuplicateIntent) {
		return dompayment.Intent{}, apperror.Wrap(apperror.KindInternal, "PAYMENT_SAVE_FAILED", err, "save payment")
	}

	logger.Info("payment_intent_created",
		observability.F("order_id", o.ID),
		observability.F("intent_id", intent.ID),
		observability.F("amount_minor", params.Amount),
	)
	return intent, nil
}

func (a *Adapter) RetrieveIntent(ctx context.Context, intentID string) (dompayment.Intent, error) {
	start := time.Now()
	intent, err := a.gateway.RetrieveIntent(ctx, intentID)
	a.in.External(gatewayPeer, "retrieve_intent", start, err)
	if err != nil {
		return dompayment.Intent{}, gatewayError(err, "retrieve payment intent")
	}
	return intent, nil
}

func (a *Adapter) CancelIntent(ctx context.Context, intentID string) (dompayment.Intent, error) {
	start := time.Now()
	intent, err := a.gateway.CancelIntent(ctx, intentID)
	a.in.External(gatewayPeer, "cancel_intent", start, err)
	if err != nil {
		return dompayment.Intent{}, gatewayError(err, "cancel payment intent")
	}
	return intent, nil
}

// CreateFullRefund refunds whatever remains captured on the intent.
// Repeating a call with the same key returns the first refund.
func (a *Adapter) CreateFullRefund(ctx context.Context, intentID, key, reason string) (dompayment.Refund, error) {
	return a.refund(ctx, dompayment.RefundParams{IntentID: intentID, Reason: reason, IdempotencyKey: key})
}

func (a *Adapter) CreatePartialRefund(ctx context.Context, intentID string, amount decimal.Decimal, cur currency.Unit, key, reason string) (dompayment.Refund, error) {
	minor := money.ToMinor(amount, cur)
	if minor <= 0 {
		return dompayment.Refund{}, apperror.Validation("INVALID_REFUND_AMOUNT", "refund amount must be greater than zero")
	}
	return a.refund(ctx, dompayment.RefundParams{IntentID: intentID, Amount: &minor, Reason: reason, IdempotencyKey: key})
}

func (a *Adapter) refund(ctx context.Context, params dompayment.RefundParams) (dompayment.Refund, error) {
	start := time.Now()
	r, err := a.gateway.Refund(ctx, params)
	a.in.External(gatewayPeer, "refund", start, err)
	if err != nil {
		return dompayment.Refund{}, gatewayError(err, "create refund")
	}
	return r, nil
}

func gatewayError(err error, msg string) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	code := "PAYMENT_GATEWAY_ERROR"
	var ge *dompayment.GatewayError
	if errors.As(err, &ge) && ge.Code != "" {
		code = "PAYMENT_GATEWAY_" + strings.ToUpper(ge.Code)
	}
	return apperror.Wrap(apperror.KindGateway, code, err, msg)
}
