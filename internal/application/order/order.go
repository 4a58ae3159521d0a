// Package order holds the order lifecycle use cases: read, cancel and admin status changes.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

const (
	orderService   = "order-service"
	publishTimeout = 300 * time.Millisecond
)

// StockRestorer returns order lines to stock.
type StockRestorer interface {
	RestoreItems(ctx context.Context, items []domorder.Item) error
}

// LoadForCaller fetches the order by number and checks that the caller may see it.
// Someone else's order is reported as forbidden, not as missing.
func LoadForCaller(ctx context.Context, repo domorder.Repository, number string, caller application.Caller) (*domorder.Order, error) {
	if caller.UserID == "" {
		return nil, apperror.New(apperror.KindUnauthorized, "UNAUTHENTICATED", "user identity is required")
	}
	if number == "" {
		return nil, apperror.Validation("ORDER_NUMBER_REQUIRED", "order number is required")
	}
	o, err := repo.GetByNumber(ctx, number)
	if errors.Is(err, domorder.ErrNotFound) {
		return nil, apperror.NotFound("ORDER_NOT_FOUND", "order "+number+" not found")
	}
	if err != nil {
		return nil, apperror.Internal(err, "load order")
	}
	if !caller.CanAccess(o.UserID) {
		return nil, apperror.Forbidden("ORDER_FORBIDDEN", "order belongs to another account")
	}
	return o, nil
}

func wrapRepositoryError(err error, code, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domorder.ErrConflict) {
		return apperror.Wrap(apperror.KindConflict, "CONCURRENT_MODIFICATION", err, "order was changed concurrently, retry")
	}
	return apperror.Wrap(apperror.KindInternal, code, err, msg)
}
