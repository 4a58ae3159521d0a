package payment

import (
	"context"
	"errors"
	"fmt"
)

var ErrGateway = errors.New("payment: gateway failure")

type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
)

// Reusable reports whether a client can still complete payment on the intent.
func (s IntentStatus) Reusable() bool {
	return s == IntentRequiresPaymentMethod || s == IntentRequiresConfirmation
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
	// Amount is in minor units of Currency.
	Amount   int64
	Currency string
	Metadata map[string]string
}

type CreateIntentParams struct {
	// Amount is in minor units of Currency.
	Amount        int64
	Currency      string
	OrderID       string
	OrderNumber   string
	CustomerEmail string
	// IdempotencyKey is forwarded to the gateway so retried requests do not create twins.
	IdempotencyKey string
}

type RefundParams struct {
	IntentID string
	// Amount in minor units; nil refunds whatever remains on the intent.
	Amount *int64
	Reason string
	// IdempotencyKey lets a timed-out refund be repeated without paying out twice.
	IdempotencyKey string
}

type Refund struct {
	ID     string
	Amount int64
	Status string
}

// Gateway is the outbound port to the card payment provider.
type Gateway interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (Intent, error)
	CancelIntent(ctx context.Context, intentID string) (Intent, error)
	Refund(ctx context.Context, params RefundParams) (Refund, error)
}

// GatewayError describes a failed gateway call.
type GatewayError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	// Temporary marks failures worth one more attempt (timeouts, 5xx, 429).
	Temporary bool
	Err       error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("gateway %s: %s", e.Op, msg)
}

func (e *GatewayError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrGateway, e.Err}
	}
	return []error{ErrGateway}
}

// IsTemporary reports whether err is a gateway failure worth retrying.
func IsTemporary(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Temporary
}
