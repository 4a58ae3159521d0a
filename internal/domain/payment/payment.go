package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	ErrNotFound           = errors.New("payment: not found")
	ErrConflict           = errors.New("payment: concurrent modification")
	ErrDuplicateIntent    = errors.New("payment: intent already recorded")
	ErrInvalidTransition  = errors.New("payment: invalid status transition")
	ErrInvalidAmount      = errors.New("payment: amount must be greater than zero")
	ErrRefundExceedsTotal = errors.New("payment: refund exceeds captured amount")
)

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusPaid              Status = "PAID"
	StatusFailed            Status = "FAILED"
	StatusCancelled         Status = "CANCELLED"
	StatusPartiallyRefunded Status = "PARTIALLY_REFUNDED"
	StatusRefunded          Status = "REFUNDED"
)

// Refundable reports whether money captured under this status can still be returned.
func (s Status) Refundable() bool {
	return s == StatusPaid || s == StatusPartiallyRefunded
}

// Settled reports whether the gateway has captured funds at some point.
func (s Status) Settled() bool {
	return s == StatusPaid || s == StatusPartiallyRefunded || s == StatusRefunded
}

// Charge is what the gateway tells us about a captured payment.
type Charge struct {
	ChargeID   string
	ReceiptURL string
	CardBrand  string
	CardLast4  string
}

// Payment is the local record of one gateway payment intent.
type Payment struct {
	ID             string
	OrderID        string
	IntentID       string
	Amount         decimal.Decimal
	Currency       currency.Unit
	Status         Status
	AmountRefunded decimal.Decimal

	ChargeID       string
	ReceiptURL     string
	CardBrand      string
	CardLast4      string
	FailureCode    string
	FailureMessage string

	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

func New(id, orderID, intentID string, amount decimal.Decimal, cur currency.Unit) (*Payment, error) {
	if id == "" || orderID == "" || intentID == "" {
		return nil, errors.New("payment: id, order id and intent id are required")
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	now := time.Now().UTC()
	return &Payment{
		ID:             id,
		OrderID:        orderID,
		IntentID:       intentID,
		Amount:         amount,
		Currency:       cur,
		Status:         StatusPending,
		AmountRefunded: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (p *Payment) MarkPaid(c Charge) error {
	if p.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, StatusPaid)
	}
	p.Status = StatusPaid
	p.ChargeID = c.ChargeID
	p.ReceiptURL = c.ReceiptURL
	p.CardBrand = c.CardBrand
	p.CardLast4 = c.CardLast4
	p.FailureCode, p.FailureMessage = "", ""
	p.touch()
	paidAt := p.UpdatedAt
	p.PaidAt = &paidAt
	return nil
}

func (p *Payment) MarkFailed(code, message string) error {
	if p.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, StatusFailed)
	}
	p.Status = StatusFailed
	p.FailureCode = code
	p.FailureMessage = message
	p.touch()
	return nil
}

func (p *Payment) MarkCancelled() error {
	if p.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, StatusCancelled)
	}
	p.Status = StatusCancelled
	p.touch()
	return nil
}

// RecordRefund adds delta to the refunded amount; it never lets the total exceed Amount.
func (p *Payment) RecordRefund(delta decimal.Decimal) error {
	if !p.Status.Refundable() {
		return fmt.Errorf("%w: cannot refund a %s payment", ErrInvalidTransition, p.Status)
	}
	if !delta.IsPositive() {
		return ErrInvalidAmount
	}
	next := p.AmountRefunded.Add(delta)
	if next.GreaterThan(p.Amount) {
		return fmt.Errorf("%w: refunded %s + %s > amount %s", ErrRefundExceedsTotal, p.AmountRefunded, delta, p.Amount)
	}
	p.AmountRefunded = next
	if next.Equal(p.Amount) {
		p.Status = StatusRefunded
	} else {
		p.Status = StatusPartiallyRefunded
	}
	p.touch()
	return nil
}

func (p *Payment) Remaining() decimal.Decimal {
	return p.Amount.Sub(p.AmountRefunded)
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	if p.PaidAt != nil {
		t := *p.PaidAt
		clone.PaidAt = &t
	}
	return &clone
}

func (p *Payment) touch() {
	p.UpdatedAt = time.Now().UTC()
}
