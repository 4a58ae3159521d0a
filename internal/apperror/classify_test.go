package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
		wantCode string
	}{
		{name: "order not found: ok", err: fmt.Errorf("repo: %w", order.ErrNotFound), wantKind: KindNotFound, wantCode: "ORDER_NOT_FOUND"},
		{name: "invalid transition: ok", err: fmt.Errorf("%w: PENDING -> SHIPPED", order.ErrInvalidTransition), wantKind: KindConflict, wantCode: "INVALID_STATUS_TRANSITION"},
		{name: "insufficient stock: ok", err: inventory.ErrInsufficientStock, wantKind: KindConflict, wantCode: "INSUFFICIENT_STOCK"},
		{name: "gateway: ok", err: &payment.GatewayError{Op: "create_intent", StatusCode: 502}, wantKind: KindGateway, wantCode: "PAYMENT_GATEWAY_ERROR"},
		{name: "refund amount: ok", err: order.ErrInvalidRefundAmount, wantKind: KindValidation, wantCode: "INVALID_REFUND_AMOUNT"},
		{name: "unknown: fail", err: errStore, wantKind: KindInternal, wantCode: "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.Error(t, got)
			assert.Equal(t, tt.wantKind, KindOf(got))
			assert.Equal(t, tt.wantCode, CodeOf(got))
			assert.True(t, errors.Is(got, tt.err))
		})
	}
}

func TestClassify_KeepsExisting(t *testing.T) {
	orig := Validation("CART_EMPTY", "cart is empty")
	assert.Same(t, orig, Classify(orig))
	assert.NoError(t, Classify(nil))
}
