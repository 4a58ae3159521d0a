package prometrics

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CounterRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "")

	c1 := r.Counter(observability.MUsecaseRequests)
	c2 := r.Counter(observability.MUsecaseRequests)

	c1.Add(1, observability.L("use_case", "checkout.place_order"), observability.L("outcome", "success"))
	c2.Add(2, observability.L("use_case", "checkout.place_order"), observability.L("outcome", "success"))

	got := testutil.ToFloat64(r.counters[observability.MUsecaseRequests].WithLabelValues("checkout.place_order", "success"))
	assert.Equal(t, 3.0, got)
}

func TestRegistry_MissingLabelsAreFilled(t *testing.T) {
	r := New(prometheus.NewRegistry(), "")

	require.NotPanics(t, func() {
		r.Counter(observability.MExternalRequests).Add(1, observability.L("peer", "gateway"))
		r.Histogram(observability.MExternalRequestDuration).Observe(0.2, observability.L("unknown", "x"))
	})
}

func TestRegistry_UnknownKeyIsNop(t *testing.T) {
	r := New(prometheus.NewRegistry(), "")

	assert.Equal(t, observability.NopCounter(), r.Counter("nope_total"))
	assert.Equal(t, observability.NopHistogram(), r.Histogram("nope_seconds"))
}

func TestRegistry_SharedRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "")
	b := New(reg, "")

	a.Counter(observability.MWebhookEvents).Add(1, observability.L("type", "payment_intent.succeeded"), observability.L("outcome", "processed"))
	b.Counter(observability.MWebhookEvents).Add(1, observability.L("type", "payment_intent.succeeded"), observability.L("outcome", "processed"))

	got := testutil.ToFloat64(a.counters[observability.MWebhookEvents].WithLabelValues("payment_intent.succeeded", "processed"))
	assert.Equal(t, 2.0, got)
}
