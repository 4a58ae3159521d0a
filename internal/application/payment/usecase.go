package payment

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseCreateIntent = "payment.create_intent"
	useCaseGetStatus    = "payment.get_status"
)

var (
	_ application.UseCase[CreateIntentInput, *CreateIntentResult] = (*CreateIntentUseCase)(nil)
	_ application.UseCase[GetStatusInput, *StatusResult]          = (*GetStatusUseCase)(nil)
)

type IntentCreator interface {
	CreateIntent(ctx context.Context, o *domorder.Order, customerEmail string) (dompayment.Intent, error)
}

type CreateIntentInput struct {
	Caller      application.Caller
	OrderNumber string
}

type CreateIntentResult struct {
	OrderNumber  string
	IntentID     string
	ClientSecret string
	Amount       decimal.Decimal
	Currency     string
}

// CreateIntentUseCase opens (or reopens) a payment intent for an unpaid order.
type CreateIntentUseCase struct {
	orders    domorder.Repository
	customers customer.Directory
	intents   IntentCreator
	in        application.Instruments
}

func NewCreateIntentUseCase(orders domorder.Repository, customers customer.Directory, intents IntentCreator, tel observability.Observability) *CreateIntentUseCase {
	return &CreateIntentUseCase{
		orders:    orders,
		customers: customers,
		intents:   intents,
		in:        application.NewInstruments(tel, paymentService),
	}
}

func (uc *CreateIntentUseCase) Execute(ctx context.Context, cmd CreateIntentInput) (_ *CreateIntentResult, err error) {
	ctx, probe := uc.in.Begin(ctx, useCaseCreateIntent, "CreateIntentForOrder",
		attribute.String("order.number", cmd.OrderNumber),
	)
	defer func() { probe.End(err) }()

	o, err := apporder.LoadForCaller(ctx, uc.orders, cmd.OrderNumber, cmd.Caller)
	if err != nil {
		return nil, err
	}
	probe.Field("order_id", o.ID)

	switch o.PaymentStatus {
	case domorder.PaymentPaid, domorder.PaymentPartiallyRefunded, domorder.PaymentRefunded:
		return nil, apperror.Conflict("ORDER_ALREADY_PAID", "order has already been paid")
	case domorder.PaymentFailed:
		return nil, apperror.Conflict("PAYMENT_FAILED", "payment for this order failed, place a new order")
	case domorder.PaymentCancelled:
		return nil, apperror.Conflict("ORDER_NOT_PAYABLE", "payment for this order was cancelled")
	}
	if o.Status != domorder.StatusPending {
		return nil, apperror.Conflict("ORDER_NOT_PAYABLE", "order is "+string(o.Status)+" and cannot be paid")
	}

	email := ""
	if u, uerr := uc.customers.FindUser(ctx, o.UserID); uerr == nil {
		email = u.Email
	}

	intent, err := uc.intents.CreateIntent(ctx, o, email)
	if err != nil {
		probe.Fail("INTENT_CREATE_FAILED")
		return nil, apperror.Classify(err)
	}

	if o.PaymentStatus == domorder.PaymentPending {
		if err := uc.markAwaiting(ctx, o); err != nil {
			// The intent is usable regardless; the webhook settles the order.
			probe.Note("ORDER_UPDATE_FAILED")
			probe.Logger().Warn("order_mark_awaiting_failed",
				observability.F("order_id", o.ID),
				observability.F("error", err.Error()),
			)
		}
	}

	return &CreateIntentResult{
		OrderNumber:  o.Number,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       o.Total,
		Currency:     o.Currency.String(),
	}, nil
}

// markAwaiting flips the order's payment status, re-reading once on a version conflict.
func (uc *CreateIntentUseCase) markAwaiting(ctx context.Context, o *domorder.Order) error {
	for attempt := 0; attempt < 2; attempt++ {
		if o.PaymentStatus != domorder.PaymentPending {
			return nil
		}
		if err := o.MarkAwaitingPayment(); err != nil {
			return err
		}
		err := uc.orders.Update(ctx, o)
		if !errors.Is(err, domorder.ErrConflict) {
			return err
		}
		if o, err = uc.orders.Get(ctx, o.ID); err != nil {
			return err
		}
	}
	return domorder.ErrConflict
}

type GetStatusInput struct {
	Caller      application.Caller
	OrderNumber string
}

type StatusResult struct {
	Order *domorder.Order
	// Latest is the newest payment attempt, nil when none was made.
	Latest   *dompayment.Payment
	Payments []*dompayment.Payment
}

type GetStatusUseCase struct {
	orders   domorder.Repository
	payments dompayment.Repository
	in       application.Instruments
}

func NewGetStatusUseCase(orders domorder.Repository, payments dompayment.Repository, tel observability.Observability) *GetStatusUseCase {
	return &GetStatusUseCase{orders: orders, payments: payments, in: application.NewInstruments(tel, paymentService)}
}

func (uc *GetStatusUseCase) Execute(ctx context.Context, cmd GetStatusInput) (_ *StatusResult, err error) {
	ctx, probe := uc.in.Begin(ctx, useCaseGetStatus, "GetPaymentStatus",
		attribute.String("order.number", cmd.OrderNumber),
	)
	defer func() { probe.End(err) }()

	o, err := apporder.LoadForCaller(ctx, uc.orders, cmd.OrderNumber, cmd.Caller)
	if err != nil {
		return nil, err
	}
	payments, err := uc.payments.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, apperror.Internal(err, "load payments")
	}

	res := &StatusResult{Order: o, Payments: payments}
	if len(payments) > 0 {
		res.Latest = payments[0]
	}
	return res, nil
}
