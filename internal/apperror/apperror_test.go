package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errStore = errors.New("store: connection reset")

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil: empty", err: nil, want: ""},
		{name: "plain error: internal", err: errStore, want: KindInternal},
		{name: "classified: ok", err: Validation("CART_EMPTY", "cart is empty"), want: KindValidation},
		{name: "wrapped classified: ok", err: fmt.Errorf("checkout: %w", Conflict("STOCK", "reduce quantity")), want: KindConflict},
		{name: "gateway wrap: ok", err: Wrap(KindGateway, "GATEWAY_ERROR", errStore, "create intent"), want: KindGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_UnwrapAndMessage(t *testing.T) {
	err := Wrap(KindInternal, "ORDER_SAVE_FAILED", errStore, "save order")

	assert.ErrorIs(t, err, errStore)
	assert.Equal(t, "ORDER_SAVE_FAILED: save order: store: connection reset", err.Error())
	assert.Equal(t, "ORDER_SAVE_FAILED", CodeOf(fmt.Errorf("x: %w", err)))
	assert.Equal(t, "INTERNAL", CodeOf(errStore))
}

func TestError_WithDetailsCopies(t *testing.T) {
	base := Validation("CART_INVALID", "cart has blocking issues")
	withDetails := base.WithDetails([]string{"p1"})

	assert.Nil(t, base.Details)
	assert.Equal(t, []string{"p1"}, withDetails.Details)
}
