package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlacedEvent is emitted once an order row exists.
type PlacedEvent struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func (PlacedEvent) EventName() string     { return "order.placed" }
func (e PlacedEvent) AggregateID() string { return e.OrderID }

func NewPlacedEvent(o *Order) PlacedEvent {
	return PlacedEvent{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Total:       o.Total,
		Currency:    o.Currency.String(),
		OccurredAt:  time.Now().UTC(),
	}
}

// PaidEvent is emitted after a captured payment has been applied to the order.
// It drives the confirmation email.
type PaidEvent struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func (PaidEvent) EventName() string     { return "order.paid" }
func (e PaidEvent) AggregateID() string { return e.OrderID }

func NewPaidEvent(o *Order) PaidEvent {
	return PaidEvent{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Total:       o.Total,
		Currency:    o.Currency.String(),
		OccurredAt:  time.Now().UTC(),
	}
}

// CancelledEvent is emitted when an order reaches CANCELLED.
type CancelledEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	Reason      string    `json:"reason"`
	Actor       Actor     `json:"actor"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (CancelledEvent) EventName() string     { return "order.cancelled" }
func (e CancelledEvent) AggregateID() string { return e.OrderID }

func NewCancelledEvent(o *Order) CancelledEvent {
	return CancelledEvent{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Reason:      o.CancellationReason,
		Actor:       o.CancelledBy,
		OccurredAt:  time.Now().UTC(),
	}
}

// RefundedEvent is emitted for every refund applied to an order.
type RefundedEvent struct {
	OrderID        string          `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	Amount         decimal.Decimal `json:"amount"`
	AmountRefunded decimal.Decimal `json:"amount_refunded"`
	Full           bool            `json:"full"`
	Reason         string          `json:"reason"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

func (RefundedEvent) EventName() string     { return "order.refunded" }
func (e RefundedEvent) AggregateID() string { return e.OrderID }

func NewRefundedEvent(o *Order, amount decimal.Decimal, reason string) RefundedEvent {
	return RefundedEvent{
		OrderID:        o.ID,
		OrderNumber:    o.Number,
		Amount:         amount,
		AmountRefunded: o.AmountRefunded,
		Full:           o.IsFullyRefunded(),
		Reason:         reason,
		OccurredAt:     time.Now().UTC(),
	}
}

// PaidAfterCancelEvent is emitted when a capture lands on an order that was already cancelled.
// Nothing is shipped; an operator refunds the money.
type PaidAfterCancelEvent struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func (PaidAfterCancelEvent) EventName() string     { return "order.paid_after_cancel" }
func (e PaidAfterCancelEvent) AggregateID() string { return e.OrderID }

func NewPaidAfterCancelEvent(o *Order) PaidAfterCancelEvent {
	return PaidAfterCancelEvent{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Total:       o.Total,
		Currency:    o.Currency.String(),
		OccurredAt:  time.Now().UTC(),
	}
}
