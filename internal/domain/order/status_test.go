package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_Table(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusConfirmed, StatusCancelled},
		StatusConfirmed:  {StatusProcessing, StatusCancelled},
		StatusProcessing: {StatusShipped, StatusCancelled},
		StatusShipped:    {StatusDelivered, StatusReturned},
		StatusDelivered:  {StatusReturned},
		StatusReturned:   {StatusRefunded},
	}

	for _, from := range Statuses() {
		for _, to := range Statuses() {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransitionPayment_Table(t *testing.T) {
	allowed := map[PaymentStatus][]PaymentStatus{
		PaymentPending:           {PaymentAwaiting, PaymentPaid, PaymentFailed, PaymentCancelled},
		PaymentAwaiting:          {PaymentPaid, PaymentFailed, PaymentCancelled},
		PaymentPaid:              {PaymentRefunded, PaymentPartiallyRefunded},
		PaymentPartiallyRefunded: {PaymentPartiallyRefunded, PaymentRefunded},
	}

	for _, from := range PaymentStatuses() {
		for _, to := range PaymentStatuses() {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransitionPayment(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	var terminal []Status
	for _, s := range Statuses() {
		if s.IsTerminal() {
			terminal = append(terminal, s)
		}
	}
	assert.ElementsMatch(t, []Status{StatusCancelled, StatusRefunded}, terminal)

	var terminalPayments []PaymentStatus
	for _, s := range PaymentStatuses() {
		if s.IsTerminal() {
			terminalPayments = append(terminalPayments, s)
		}
	}
	assert.ElementsMatch(t, []PaymentStatus{PaymentFailed, PaymentRefunded, PaymentCancelled}, terminalPayments)
}

func TestToStatus(t *testing.T) {
	s, err := ToStatus("SHIPPED")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, s)

	_, err = ToStatus("shipped")
	assert.EqualError(t, err, "invalid order status")

	p, err := ToPaymentStatus("AWAITING_PAYMENT")
	require.NoError(t, err)
	assert.Equal(t, PaymentAwaiting, p)
}
