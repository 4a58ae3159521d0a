// Package notify delivers customer notifications.
package notify

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application/notification"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

// LogNotifier writes each notification as a structured log line instead of sending mail.
type LogNotifier struct {
	log observability.Logger
}

var _ notification.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger observability.Logger) *LogNotifier {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogNotifier{log: logger.With(observability.F("component", "notifier"))}
}

func (n *LogNotifier) SendOrderConfirmation(ctx context.Context, m notification.Message) error {
	logctx.FromOr(ctx, n.log).Info("notification_sent",
		observability.F("template", "order_confirmation"),
		observability.F("to", m.To),
		observability.F("order_number", m.OrderNumber),
		observability.F("total", m.Total.StringFixed(2)),
		observability.F("currency", m.Currency),
	)
	return nil
}

func (n *LogNotifier) SendOrderCancelled(ctx context.Context, m notification.Message) error {
	logctx.FromOr(ctx, n.log).Info("notification_sent",
		observability.F("template", "order_cancelled"),
		observability.F("to", m.To),
		observability.F("order_number", m.OrderNumber),
		observability.F("reason", m.Reason),
	)
	return nil
}
