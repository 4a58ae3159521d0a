package webhook

import (
	"encoding/json"
	"fmt"

	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

const (
	TypeIntentSucceeded = "payment_intent.succeeded"
	TypeIntentFailed    = "payment_intent.payment_failed"
	TypeIntentCanceled  = "payment_intent.canceled"
)

// Event is the gateway's webhook envelope.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object IntentObject `json:"object"`
	} `json:"data"`
}

// IntentObject is the payment intent snapshot embedded in intent events.
type IntentObject struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *PaymentError     `json:"last_payment_error,omitempty"`
	Charges          struct {
		Data []ChargeObject `json:"data"`
	} `json:"charges"`
}

type PaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ChargeObject struct {
	ID                   string `json:"id"`
	ReceiptURL           string `json:"receipt_url"`
	PaymentMethodDetails struct {
		Card struct {
			Brand string `json:"brand"`
			Last4 string `json:"last4"`
		} `json:"card"`
	} `json:"payment_method_details"`
}

func ParseEvent(payload []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Event{}, fmt.Errorf("webhook: decode event: %w", err)
	}
	if evt.ID == "" || evt.Type == "" {
		return Event{}, fmt.Errorf("webhook: event id and type are required")
	}
	return evt, nil
}

// Charge extracts what the latest charge says about the captured payment.
func (o IntentObject) Charge() dompayment.Charge {
	if len(o.Charges.Data) == 0 {
		return dompayment.Charge{}
	}
	c := o.Charges.Data[0]
	return dompayment.Charge{
		ChargeID:   c.ID,
		ReceiptURL: c.ReceiptURL,
		CardBrand:  c.PaymentMethodDetails.Card.Brand,
		CardLast4:  c.PaymentMethodDetails.Card.Last4,
	}
}

func (o IntentObject) Failure() (code, message string) {
	if o.LastPaymentError == nil {
		return "", ""
	}
	return o.LastPaymentError.Code, o.LastPaymentError.Message
}
