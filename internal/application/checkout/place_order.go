package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appinventory "github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	useCasePlaceOrder = "checkout.place_order"
	insertAttempts    = 3
	publishTimeout    = 300 * time.Millisecond
)

var _ application.UseCase[PlaceOrderInput, *PlaceOrderResult] = (*PlaceOrderUseCase)(nil)

type PlaceOrderInput struct {
	Caller    application.Caller
	AddressID string
	Notes     string
}

type PlaceOrderResult struct {
	OrderID       string
	OrderNumber   string
	Status        domorder.Status
	PaymentStatus domorder.PaymentStatus
	Total         decimal.Decimal
	Currency      string
	Flow          Flow
	// Set on the payment-gated flow only.
	IntentID     string
	ClientSecret string
	Warnings     []Issue
}

type PlaceOrderUseCase struct {
	deps   Deps
	policy Policy
	flow   Flow
	in     application.Instruments
}

func NewPlaceOrderUseCase(deps Deps, policy Policy, flow Flow, tel observability.Observability) *PlaceOrderUseCase {
	if flow == "" {
		flow = FlowPaymentGated
	}
	return &PlaceOrderUseCase{
		deps:   deps,
		policy: policy,
		flow:   flow,
		in:     application.NewInstruments(tel, checkoutService),
	}
}

func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	ctx, probe := uc.in.Begin(ctx, useCasePlaceOrder, "PlaceOrder",
		attribute.String("user.id", cmd.Caller.UserID),
		attribute.String("checkout.flow", string(uc.flow)),
	)
	defer func() { probe.End(err) }()
	span := probe.Span()

	if err := requireCaller(cmd.Caller); err != nil {
		return nil, err
	}
	if cmd.AddressID == "" {
		return nil, apperror.Validation("ADDRESS_REQUIRED", "shipping address is required")
	}
	userID := cmd.Caller.UserID

	c, products, err := loadCart(ctx, uc.deps, userID)
	if err != nil {
		return nil, err
	}

	addr, err := uc.deps.Customers.FindAddress(ctx, userID, cmd.AddressID)
	if errors.Is(err, customer.ErrAddressNotFound) {
		return nil, apperror.NotFound("ADDRESS_NOT_FOUND", "shipping address not found")
	}
	if err != nil {
		probe.Fail("ADDRESS_LOOKUP_FAILED")
		return nil, apperror.Internal(err, "load address")
	}

	v := ValidateCart(c, products)
	if !v.Valid() {
		return nil, apperror.Validation("CART_INVALID", "cart has items that cannot be ordered").WithDetails(v.Issues)
	}

	quote := uc.policy.Price(linesFor(c, products))
	o, err := uc.insertOrder(ctx, userID, c, products, quote, addr, cmd.Notes)
	if err != nil {
		return nil, err
	}
	probe.Field("order_number", o.Number)
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("order.number", o.Number))

	res := &PlaceOrderResult{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Flow:        uc.flow,
		Warnings:    v.Warnings(),
	}

	switch uc.flow {
	case FlowImmediate:
		if err := uc.reserveNow(ctx, probe, o); err != nil {
			return nil, err
		}
	default:
		intent, err := uc.deps.Intents.CreateIntent(ctx, o, uc.customerEmail(ctx, userID))
		if err != nil {
			// The order stays AWAITING_PAYMENT; the buyer can retry through create-intent.
			probe.Fail("INTENT_CREATE_FAILED")
			return nil, apperror.Classify(err)
		}
		res.IntentID, res.ClientSecret = intent.ID, intent.ClientSecret
		span.AddEvent("payment.intent_created", trace.WithAttributes(attribute.String("payment.intent_id", intent.ID)))
	}

	if err := uc.deps.Carts.Delete(ctx, userID); err != nil && !errors.Is(err, cart.ErrNotFound) {
		probe.Note("CART_CLEAR_FAILED")
		probe.Logger().Warn("cart_clear_failed",
			observability.F("order_id", o.ID),
			observability.F("error", err.Error()),
		)
	}

	uc.publishPlaced(ctx, probe, o)

	res.Status, res.PaymentStatus = o.Status, o.PaymentStatus
	res.Total, res.Currency = o.Total, o.Currency.String()
	span.AddEvent("order.placed")
	return res, nil
}

// insertOrder assigns an order number and stores the order, drawing a new number if the store
// reports the one issued was taken in the meantime.
func (uc *PlaceOrderUseCase) insertOrder(
	ctx context.Context,
	userID string,
	c *cart.Cart,
	products map[string]*catalog.Product,
	quote Quote,
	addr *customer.Address,
	notes string,
) (*domorder.Order, error) {
	items := make([]domorder.Item, 0, len(c.Items))
	for _, it := range c.Items {
		p := products[it.ProductID]
		line := Line{UnitPrice: p.Price, DiscountPrice: p.DiscountPrice, Quantity: it.Quantity}
		items = append(items, domorder.Item{
			ProductID:     p.ID,
			Name:          p.Name,
			SKU:           p.SKU,
			ImageURL:      p.ImageURL,
			Brand:         p.Brand,
			UnitPrice:     p.Price,
			DiscountPrice: p.DiscountPrice,
			Quantity:      it.Quantity,
			LineTotal:     line.Total(),
		})
	}
	totals := domorder.Totals{
		Currency: quote.Currency,
		Subtotal: quote.Subtotal,
		Tax:      quote.Tax,
		Shipping: quote.Shipping,
		Discount: quote.Discount,
	}
	shipTo := domorder.ShippingAddress{
		FullName:   addr.FullName,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}

	id := uc.deps.IDs.NewID()
	for attempt := 1; ; attempt++ {
		number, err := uc.deps.Numbers.Issue(ctx)
		if err != nil {
			return nil, apperror.Internal(err, "issue order number")
		}
		o, err := domorder.New(id, number, userID, items, totals, shipTo, notes)
		if err != nil {
			return nil, apperror.Classify(err)
		}
		if uc.flow == FlowPaymentGated {
			if err := o.MarkAwaitingPayment(); err != nil {
				return nil, apperror.Classify(err)
			}
		}

		err = uc.deps.Orders.Insert(ctx, o)
		switch {
		case err == nil:
			return o, nil
		case errors.Is(err, domorder.ErrDuplicateNumber) && attempt < insertAttempts:
			continue
		default:
			return nil, apperror.Wrap(apperror.KindInternal, "ORDER_SAVE_FAILED", err, "save order")
		}
	}
}

// reserveNow takes stock for every line. A short line stops the run and is reported as a conflict;
// lines reserved before it keep their stock and the order is kept.
func (uc *PlaceOrderUseCase) reserveNow(ctx context.Context, probe *application.Probe, o *domorder.Order) error {
	shortfalls, rerr := uc.deps.Ledger.ReserveOrder(ctx, o, appinventory.StopOnShortfall)

	if err := uc.deps.Orders.Update(ctx, o); err != nil {
		probe.Fail("ORDER_UPDATE_FAILED")
		return apperror.Wrap(apperror.KindInternal, "ORDER_SAVE_FAILED", err, "save reservations")
	}
	if rerr != nil {
		probe.Fail("STOCK_RESERVE_FAILED")
		return apperror.Internal(rerr, "reserve stock")
	}
	if len(shortfalls) > 0 {
		details := make([]Issue, 0, len(shortfalls))
		for _, sf := range shortfalls {
			details = append(details, Issue{
				ProductID: sf.ProductID,
				Code:      IssueInsufficientStock,
				Severity:  SeverityError,
				Message:   "not enough stock, reduce quantity",
				Requested: sf.Quantity,
			})
		}
		probe.Fail("INSUFFICIENT_STOCK")
		return apperror.Conflict("INSUFFICIENT_STOCK", "not enough stock for order "+o.Number+", reduce quantity and try again").
			WithDetails(details)
	}
	return nil
}

func (uc *PlaceOrderUseCase) customerEmail(ctx context.Context, userID string) string {
	u, err := uc.deps.Customers.FindUser(ctx, userID)
	if err != nil {
		return ""
	}
	return u.Email
}

func (uc *PlaceOrderUseCase) publishPlaced(ctx context.Context, probe *application.Probe, o *domorder.Order) {
	if uc.deps.Publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	start := time.Now()
	err := uc.deps.Publisher.Publish(pubCtx, domorder.NewPlacedEvent(o))
	uc.in.External("outbox", "order.placed", start, err)
	if err != nil {
		probe.Note("EVENT_PUBLISH_FAILED")
		probe.Field("event_publish_error", err.Error())
	}
}
