package apperror

import (
	"errors"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

type rule struct {
	target error
	kind   Kind
	code   string
}

// First match wins, so specific sentinels go before generic ones.
var rules = []rule{
	{order.ErrNotFound, KindNotFound, "ORDER_NOT_FOUND"},
	{payment.ErrNotFound, KindNotFound, "PAYMENT_NOT_FOUND"},
	{catalog.ErrNotFound, KindNotFound, "PRODUCT_NOT_FOUND"},
	{inventory.ErrNotFound, KindNotFound, "PRODUCT_NOT_FOUND"},
	{customer.ErrAddressNotFound, KindNotFound, "ADDRESS_NOT_FOUND"},
	{customer.ErrUserNotFound, KindNotFound, "USER_NOT_FOUND"},
	{cart.ErrNotFound, KindNotFound, "CART_NOT_FOUND"},
	{cart.ErrItemNotFound, KindNotFound, "CART_ITEM_NOT_FOUND"},

	{order.ErrInvalidTransition, KindConflict, "INVALID_STATUS_TRANSITION"},
	{payment.ErrInvalidTransition, KindConflict, "INVALID_PAYMENT_TRANSITION"},
	{order.ErrConflict, KindConflict, "CONCURRENT_MODIFICATION"},
	{payment.ErrConflict, KindConflict, "CONCURRENT_MODIFICATION"},
	{order.ErrDuplicateNumber, KindConflict, "DUPLICATE_ORDER_NUMBER"},
	{payment.ErrDuplicateIntent, KindConflict, "DUPLICATE_PAYMENT_INTENT"},
	{inventory.ErrInsufficientStock, KindConflict, "INSUFFICIENT_STOCK"},
	{order.ErrRefundExceedsTotal, KindConflict, "REFUND_EXCEEDS_TOTAL"},
	{payment.ErrRefundExceedsTotal, KindConflict, "REFUND_EXCEEDS_TOTAL"},

	{order.ErrEmptyOrder, KindValidation, "EMPTY_ORDER"},
	{order.ErrInvalidQuantity, KindValidation, "INVALID_QUANTITY"},
	{cart.ErrInvalidQuantity, KindValidation, "INVALID_QUANTITY"},
	{inventory.ErrInvalidQuantity, KindValidation, "INVALID_QUANTITY"},
	{order.ErrTrackingRequired, KindValidation, "TRACKING_NUMBER_REQUIRED"},
	{order.ErrReasonRequired, KindValidation, "REASON_REQUIRED"},
	{order.ErrInvalidRefundAmount, KindValidation, "INVALID_REFUND_AMOUNT"},
	{payment.ErrInvalidAmount, KindValidation, "INVALID_AMOUNT"},

	{payment.ErrGateway, KindGateway, "PAYMENT_GATEWAY_ERROR"},
}

// Classify maps domain sentinels onto the taxonomy.
// Errors that are already classified, and nil, are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	for _, r := range rules {
		if errors.Is(err, r.target) {
			return Wrap(r.kind, r.code, err, r.target.Error())
		}
	}
	return err
}
