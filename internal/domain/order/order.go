package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	ErrNotFound            = errors.New("order: not found")
	ErrConflict            = errors.New("order: concurrent modification")
	ErrDuplicateNumber     = errors.New("order: order number already taken")
	ErrInvalidTransition   = errors.New("order: invalid status transition")
	ErrEmptyOrder          = errors.New("order: at least one item is required")
	ErrInvalidQuantity     = errors.New("order: quantity must be greater than zero")
	ErrTrackingRequired    = errors.New("order: tracking number is required to ship")
	ErrReasonRequired      = errors.New("order: cancellation reason is required")
	ErrInvalidRefundAmount = errors.New("order: refund amount must be greater than zero")
	ErrRefundExceedsTotal  = errors.New("order: refund exceeds amount paid")
)

type Actor string

const (
	ActorUser   Actor = "USER"
	ActorAdmin  Actor = "ADMIN"
	ActorSystem Actor = "SYSTEM"
)

// Item is a by-value snapshot of the product at purchase time.
type Item struct {
	ProductID     string
	Name          string
	SKU           string
	ImageURL      string
	Brand         string
	UnitPrice     decimal.Decimal
	DiscountPrice *decimal.Decimal
	Quantity      int
	LineTotal     decimal.Decimal
	// StockReserved is true while this line's quantity is decremented from product stock.
	StockReserved bool
}

type ShippingAddress struct {
	FullName   string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// Totals are the priced amounts of an order before the total is derived.
type Totals struct {
	Currency currency.Unit
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
}

type Order struct {
	ID            string
	Number        string
	UserID        string
	Status        Status
	PaymentStatus PaymentStatus
	Items         []Item

	Currency       currency.Unit
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Shipping       decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	AmountRefunded decimal.Decimal

	ShippingAddress    ShippingAddress
	Notes              string
	TrackingNumber     string
	CancellationReason string
	CancelledBy        Actor

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
	PaidAt      *time.Time

	// Version is the optimistic concurrency token checked on every update.
	Version int64
}

func New(id, number, userID string, items []Item, totals Totals, addr ShippingAddress, notes string) (*Order, error) {
	if id == "" || number == "" || userID == "" {
		return nil, errors.New("order: id, number and user id are required")
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, it.ProductID)
		}
	}

	now := time.Now().UTC()
	o := &Order{
		ID:              id,
		Number:          number,
		UserID:          userID,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		Items:           cloneItems(items),
		Currency:        totals.Currency,
		Subtotal:        money.Round(totals.Subtotal),
		Tax:             money.Round(totals.Tax),
		Shipping:        money.Round(totals.Shipping),
		Discount:        money.Round(totals.Discount),
		AmountRefunded:  decimal.Zero,
		ShippingAddress: addr,
		Notes:           notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.Total = money.Round(o.Subtotal.Add(o.Tax).Add(o.Shipping).Sub(o.Discount))
	return o, nil
}

func (o *Order) transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	o.touch()
	return nil
}

func (o *Order) transitionPayment(to PaymentStatus) error {
	if !CanTransitionPayment(o.PaymentStatus, to) {
		return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, o.PaymentStatus, to)
	}
	o.PaymentStatus = to
	o.touch()
	return nil
}

func (o *Order) Confirm() error {
	if err := o.transition(StatusConfirmed); err != nil {
		return err
	}
	o.ConfirmedAt = timePtr(o.UpdatedAt)
	return nil
}

func (o *Order) StartProcessing() error {
	return o.transition(StatusProcessing)
}

func (o *Order) Ship(trackingNumber string) error {
	if trackingNumber == "" {
		return ErrTrackingRequired
	}
	if err := o.transition(StatusShipped); err != nil {
		return err
	}
	o.TrackingNumber = trackingNumber
	o.ShippedAt = timePtr(o.UpdatedAt)
	return nil
}

func (o *Order) Deliver() error {
	if err := o.transition(StatusDelivered); err != nil {
		return err
	}
	o.DeliveredAt = timePtr(o.UpdatedAt)
	return nil
}

func (o *Order) MarkReturned() error {
	return o.transition(StatusReturned)
}

func (o *Order) MarkRefunded() error {
	return o.transition(StatusRefunded)
}

// Cancel moves the order to CANCELLED. Reserved stock is not touched here; see ReleaseReservedItems.
func (o *Order) Cancel(actor Actor, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}
	if err := o.transition(StatusCancelled); err != nil {
		return err
	}
	o.CancellationReason = reason
	o.CancelledBy = actor
	o.CancelledAt = timePtr(o.UpdatedAt)
	return nil
}

// TransitionTo applies the side effects of moving to target.
// Cancellation must go through Cancel because it needs an actor and a reason.
func (o *Order) TransitionTo(target Status, trackingNumber string) error {
	switch target {
	case StatusConfirmed:
		return o.Confirm()
	case StatusProcessing:
		return o.StartProcessing()
	case StatusShipped:
		return o.Ship(trackingNumber)
	case StatusDelivered:
		return o.Deliver()
	case StatusReturned:
		return o.MarkReturned()
	case StatusRefunded:
		return o.MarkRefunded()
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}
}

// MarkAwaitingPayment records that a payment intent exists for the order.
func (o *Order) MarkAwaitingPayment() error {
	return o.transitionPayment(PaymentAwaiting)
}

// MarkPaid records a captured payment. A PENDING order is confirmed as part of it.
func (o *Order) MarkPaid() error {
	if err := o.transitionPayment(PaymentPaid); err != nil {
		return err
	}
	o.PaidAt = timePtr(o.UpdatedAt)
	if o.Status == StatusPending {
		return o.Confirm()
	}
	return nil
}

// MarkPaidAfterCancel records money the gateway captured for an order that was already cancelled.
// The order stays CANCELLED; its payment status becomes PAID so the capture can be refunded.
func (o *Order) MarkPaidAfterCancel() error {
	if o.Status != StatusCancelled {
		return fmt.Errorf("%w: payment %s -> %s on %s order", ErrInvalidTransition, o.PaymentStatus, PaymentPaid, o.Status)
	}
	switch o.PaymentStatus {
	case PaymentCancelled, PaymentFailed:
		o.PaymentStatus = PaymentPaid
		o.touch()
	default:
		if err := o.transitionPayment(PaymentPaid); err != nil {
			return err
		}
	}
	o.PaidAt = timePtr(o.UpdatedAt)
	return nil
}

func (o *Order) MarkPaymentFailed() error {
	return o.transitionPayment(PaymentFailed)
}

func (o *Order) MarkPaymentCancelled() error {
	return o.transitionPayment(PaymentCancelled)
}

// RecordRefund adds delta to the refunded amount and moves the payment status accordingly.
func (o *Order) RecordRefund(delta decimal.Decimal) error {
	delta = money.Round(delta)
	if !delta.IsPositive() {
		return ErrInvalidRefundAmount
	}
	next := o.AmountRefunded.Add(delta)
	if next.GreaterThan(o.Total) {
		return fmt.Errorf("%w: refunded %s + %s > total %s", ErrRefundExceedsTotal, o.AmountRefunded, delta, o.Total)
	}

	target := PaymentPartiallyRefunded
	if next.Equal(o.Total) {
		target = PaymentRefunded
	}
	if err := o.transitionPayment(target); err != nil {
		return err
	}
	o.AmountRefunded = next
	return nil
}

// RefundableAmount is what remains to be refunded.
func (o *Order) RefundableAmount() decimal.Decimal {
	return o.Total.Sub(o.AmountRefunded)
}

func (o *Order) IsFullyRefunded() bool {
	return o.PaymentStatus == PaymentRefunded
}

// UnreservedItems returns the indexes of lines whose stock is not currently held.
func (o *Order) UnreservedItems() []int {
	var idx []int
	for i := range o.Items {
		if !o.Items[i].StockReserved {
			idx = append(idx, i)
		}
	}
	return idx
}

// MarkReserved flags line i as holding stock. Lines are keyed by position because two lines
// may carry the same product.
func (o *Order) MarkReserved(i int) {
	if i >= 0 && i < len(o.Items) {
		o.Items[i].StockReserved = true
	}
}

// ReleaseReservedItems clears the reservation flag on every reserved line and returns those lines
// so the caller can put their quantities back into stock.
func (o *Order) ReleaseReservedItems() []Item {
	var released []Item
	for i := range o.Items {
		if o.Items[i].StockReserved {
			o.Items[i].StockReserved = false
			released = append(released, o.Items[i])
		}
	}
	if len(released) > 0 {
		o.touch()
	}
	return released
}

// OwnedBy reports whether userID placed the order.
func (o *Order) OwnedBy(userID string) bool {
	return userID != "" && o.UserID == userID
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = cloneItems(o.Items)
	clone.ConfirmedAt = clonePtr(o.ConfirmedAt)
	clone.ShippedAt = clonePtr(o.ShippedAt)
	clone.DeliveredAt = clonePtr(o.DeliveredAt)
	clone.CancelledAt = clonePtr(o.CancelledAt)
	clone.PaidAt = clonePtr(o.PaidAt)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it
		out[i].DiscountPrice = clonePtr(it.DiscountPrice)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func timePtr(t time.Time) *time.Time { return &t }
