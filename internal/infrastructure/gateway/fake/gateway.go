// Package fake is an in-process payment gateway for local runs and tests.
package fake

import (
	"context"
	"fmt"
	"sync"

	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/google/uuid"
)

type Gateway struct {
	mu          sync.Mutex
	intents     map[string]*dompayment.Intent
	idempotency map[string]string
	refunded    map[string]int64
	refunds     map[string]dompayment.Refund
	failures    map[string]error
	calls       map[string]int
}

var _ dompayment.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{
		intents:     make(map[string]*dompayment.Intent),
		idempotency: make(map[string]string),
		refunded:    make(map[string]int64),
		refunds:     make(map[string]dompayment.Refund),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
	}
}

// FailNext makes the next call of op ("create_intent", "retrieve_intent", "cancel_intent", "refund") return err.
func (g *Gateway) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = err
}

// SetStatus moves an intent, as a customer completing payment would.
func (g *Gateway) SetStatus(intentID string, status dompayment.IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[intentID]; ok {
		in.Status = status
	}
}

// Calls reports how many times op was invoked.
func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Refunded reports the minor units refunded on an intent.
func (g *Gateway) Refunded(intentID string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunded[intentID]
}

func (g *Gateway) CreateIntent(ctx context.Context, p dompayment.CreateIntentParams) (dompayment.Intent, error) {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.begin("create_intent"); err != nil {
		return dompayment.Intent{}, err
	}
	if id, ok := g.idempotency[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		return *g.intents[id], nil
	}
	if p.Amount <= 0 {
		return dompayment.Intent{}, &dompayment.GatewayError{Op: "create_intent", StatusCode: 400, Code: "amount_too_small", Message: "amount must be positive"}
	}

	id := "pi_" + uuid.NewString()
	in := &dompayment.Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.NewString()[:8],
		Status:       dompayment.IntentRequiresPaymentMethod,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Metadata:     map[string]string{"order_id": p.OrderID, "order_number": p.OrderNumber},
	}
	g.intents[id] = in
	if p.IdempotencyKey != "" {
		g.idempotency[p.IdempotencyKey] = id
	}
	return *in, nil
}

func (g *Gateway) RetrieveIntent(ctx context.Context, intentID string) (dompayment.Intent, error) {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.begin("retrieve_intent"); err != nil {
		return dompayment.Intent{}, err
	}
	in, ok := g.intents[intentID]
	if !ok {
		return dompayment.Intent{}, notFound("retrieve_intent", intentID)
	}
	return *in, nil
}

func (g *Gateway) CancelIntent(ctx context.Context, intentID string) (dompayment.Intent, error) {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.begin("cancel_intent"); err != nil {
		return dompayment.Intent{}, err
	}
	in, ok := g.intents[intentID]
	if !ok {
		return dompayment.Intent{}, notFound("cancel_intent", intentID)
	}
	if in.Status == dompayment.IntentSucceeded {
		return dompayment.Intent{}, &dompayment.GatewayError{Op: "cancel_intent", StatusCode: 400, Code: "payment_intent_unexpected_state", Message: "intent already succeeded"}
	}
	in.Status = dompayment.IntentCanceled
	return *in, nil
}

func (g *Gateway) Refund(ctx context.Context, p dompayment.RefundParams) (dompayment.Refund, error) {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.begin("refund"); err != nil {
		return dompayment.Refund{}, err
	}
	if r, ok := g.refunds[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		return r, nil
	}
	in, ok := g.intents[p.IntentID]
	if !ok {
		return dompayment.Refund{}, notFound("refund", p.IntentID)
	}
	if in.Status != dompayment.IntentSucceeded {
		return dompayment.Refund{}, &dompayment.GatewayError{Op: "refund", StatusCode: 400, Code: "charge_not_captured", Message: "intent has no captured charge"}
	}

	remaining := in.Amount - g.refunded[p.IntentID]
	amount := remaining
	if p.Amount != nil {
		amount = *p.Amount
	}
	if amount <= 0 || amount > remaining {
		return dompayment.Refund{}, &dompayment.GatewayError{Op: "refund", StatusCode: 400, Code: "amount_too_large", Message: "refund exceeds captured amount"}
	}
	g.refunded[p.IntentID] += amount
	r := dompayment.Refund{ID: "re_" + uuid.NewString(), Amount: amount, Status: "succeeded"}
	if p.IdempotencyKey != "" {
		g.refunds[p.IdempotencyKey] = r
	}
	return r, nil
}

func (g *Gateway) begin(op string) error {
	g.calls[op]++
	if err, ok := g.failures[op]; ok {
		delete(g.failures, op)
		return err
	}
	return nil
}

func notFound(op, id string) error {
	return &dompayment.GatewayError{Op: op, StatusCode: 404, Code: "resource_missing", Message: fmt.Sprintf("no such payment_intent: %s", id)}
}
