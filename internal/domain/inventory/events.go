package inventory

import "time"

const (
	FailureReasonNotFound          = "not_found"
	FailureReasonInsufficientStock = "insufficient_stock"
	FailureReasonStoreError        = "store_error"
)

// ReservationFailedEvent is emitted when a paid order line could not take stock.
// The order stays paid; operators resolve the shortfall.
type ReservationFailedEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	ProductID   string    `json:"product_id"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (ReservationFailedEvent) EventName() string     { return "inventory.reservation_failed" }
func (e ReservationFailedEvent) AggregateID() string { return e.OrderID }

func NewReservationFailedEvent(orderID, orderNumber, productID string, quantity int, reason string) ReservationFailedEvent {
	return ReservationFailedEvent{
		OrderID:     orderID,
		OrderNumber: orderNumber,
		ProductID:   productID,
		Quantity:    quantity,
		Reason:      reason,
		OccurredAt:  time.Now().UTC(),
	}
}
