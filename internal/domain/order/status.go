package order

import (
	"errors"
	"slices"
)

type Status string

// remember to add new statuses to statusTransitions
const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusReturned   Status = "RETURNED"
	StatusRefunded   Status = "REFUNDED"
)

type PaymentStatus string

// remember to add new statuses to paymentTransitions
const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentAwaiting          PaymentStatus = "AWAITING_PAYMENT"
	PaymentPaid              PaymentStatus = "PAID"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
	PaymentCancelled         PaymentStatus = "CANCELLED"
)

// statusTransitions is the order lifecycle adjacency list; terminal statuses map to nil.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusReturned},
	StatusDelivered:  {StatusReturned},
	StatusReturned:   {StatusRefunded},
	StatusCancelled:  nil,
	StatusRefunded:   nil,
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:           {PaymentAwaiting, PaymentPaid, PaymentFailed, PaymentCancelled},
	PaymentAwaiting:          {PaymentPaid, PaymentFailed, PaymentCancelled},
	PaymentPaid:              {PaymentRefunded, PaymentPartiallyRefunded},
	PaymentPartiallyRefunded: {PaymentPartiallyRefunded, PaymentRefunded},
	PaymentFailed:            nil,
	PaymentRefunded:          nil,
	PaymentCancelled:         nil,
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	return slices.Contains(statusTransitions[from], to)
}

// CanTransitionPayment reports whether an order's payment status may move from one value to another.
func CanTransitionPayment(from, to PaymentStatus) bool {
	return slices.Contains(paymentTransitions[from], to)
}

// NextStatuses lists the statuses reachable from s in one step.
func NextStatuses(s Status) []Status {
	return slices.Clone(statusTransitions[s])
}

func (s Status) IsTerminal() bool {
	next, ok := statusTransitions[s]
	return ok && len(next) == 0
}

func (s PaymentStatus) IsTerminal() bool {
	next, ok := paymentTransitions[s]
	return ok && len(next) == 0
}

func ToStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := statusTransitions[status]; ok {
		return status, nil
	}
	return "", errors.New("invalid order status")
}

func ToPaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if _, ok := paymentTransitions[status]; ok {
		return status, nil
	}
	return "", errors.New("invalid payment status")
}

func Statuses() []Status {
	result := make([]Status, 0, len(statusTransitions))
	for status := range statusTransitions {
		result = append(result, status)
	}
	return result
}

func PaymentStatuses() []PaymentStatus {
	result := make([]PaymentStatus, 0, len(paymentTransitions))
	for status := range paymentTransitions {
		result = append(result, status)
	}
	return result
}
