package workerpresentation

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type fieldLogger struct {
	observability.Logger
	fields map[string]any
}

func (l *fieldLogger) With(fs ...observability.Field) observability.Logger {
	next := &fieldLogger{Logger: observability.NopLogger(), fields: map[string]any{}}
	for k, v := range l.fields {
		next.fields[k] = v
	}
	for _, f := range fs {
		next.fields[f.Key] = f.Value
	}
	return next
}

type paidEvent struct{}

func (paidEvent) EventName() string   { return "order.paid" }
func (paidEvent) AggregateID() string { return "o-1" }

func TestEventContext(t *testing.T) {
	base := &fieldLogger{Logger: observability.NopLogger(), fields: map[string]any{}}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: trace.TraceID{0xaa}, SpanID: trace.SpanID{0xbb}})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	ctx = EventContext(base)(ctx, paidEvent{})

	logger, ok := logctx.From(ctx).(*fieldLogger)
	require.True(t, ok)
	assert.Equal(t, "order.paid", logger.fields["event"])
	assert.Equal(t, "o-1", logger.fields["aggregate_id"])
	assert.Equal(t, sc.TraceID().String(), logger.fields["trace_id"])
	assert.NotEmpty(t, logger.fields["delivery_id"])
}
