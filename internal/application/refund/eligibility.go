package refund

import (
	"time"

	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/shopspring/decimal"
)

// DefaultWindowDays is how long after payment a refund may still be issued.
const DefaultWindowDays = 30

const (
	CodePaymentNotCompleted = "PAYMENT_NOT_COMPLETED"
	CodeWindowExpired       = "REFUND_WINDOW_EXPIRED"
	CodeAlreadyRefunded     = "ALREADY_REFUNDED"
	CodeInvalidAmount       = "INVALID_REFUND_AMOUNT"
	CodeExceedsRemaining    = "REFUND_EXCEEDS_REMAINING"
)

type Eligibility struct {
	Eligible         bool
	Code             string
	Reason           string
	RefundableAmount decimal.Decimal
	AmountRefunded   decimal.Decimal
	DaysSincePayment int
	WindowDays       int
}

// evaluate runs the refund gate in order and stops at the first failing check.
// A nil amount asks for whatever remains refundable.
func evaluate(o *domorder.Order, amount *decimal.Decimal, windowDays int, now time.Time) Eligibility {
	e := Eligibility{
		Eligible:         true,
		RefundableAmount: o.RefundableAmount(),
		AmountRefunded:   o.AmountRefunded,
		WindowDays:       windowDays,
	}
	deny := func(code, reason string) Eligibility {
		e.Eligible, e.Code, e.Reason = false, code, reason
		return e
	}

	switch o.PaymentStatus {
	case domorder.PaymentPaid, domorder.PaymentPartiallyRefunded, domorder.PaymentRefunded:
	default:
		return deny(CodePaymentNotCompleted, "payment not completed")
	}
	if o.PaidAt == nil {
		return deny(CodePaymentNotCompleted, "payment not completed")
	}

	e.DaysSincePayment = int(now.Sub(*o.PaidAt) / (24 * time.Hour))
	if e.DaysSincePayment > windowDays {
		return deny(CodeWindowExpired, "refund window has expired")
	}
	if o.PaymentStatus == domorder.PaymentRefunded {
		return deny(CodeAlreadyRefunded, "order already fully refunded")
	}
	if amount != nil {
		if !amount.IsPositive() {
			return deny(CodeInvalidAmount, "refund amount must be greater than zero")
		}
		if amount.GreaterThan(e.RefundableAmount) {
			return deny(CodeExceedsRemaining, "refund amount exceeds the remaining refundable "+e.RefundableAmount.StringFixed(2))
		}
	}
	return e
}
