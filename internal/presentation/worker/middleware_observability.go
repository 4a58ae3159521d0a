package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// EventContext returns a hook that gives every event handler a logger carrying the event name,
// aggregate id, a fresh delivery id and the publisher's trace ids when present.
func EventContext(base observability.Logger) func(ctx context.Context, e domoutbox.Event) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}
	return func(ctx context.Context, e domoutbox.Event) context.Context {
		fields := make([]observability.Field, 0, 5)
		fields = append(fields,
			observability.F("event", e.EventName()),
			observability.F("aggregate_id", e.AggregateID()),
			observability.F("delivery_id", uuid.NewString()),
		)

		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}

		return logctx.With(ctx, base.With(fields...))
	}
}
