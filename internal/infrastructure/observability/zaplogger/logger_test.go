package zaplogger

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_FieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core), observability.F("service", "checkout"))

	l.With(observability.F("order_number", "ORD-20260101-ABCD")).
		Warn("stock_reservation_failed", observability.F("error", errors.New("insufficient stock")))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "stock_reservation_failed", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "checkout", ctx["service"])
	assert.Equal(t, "ORD-20260101-ABCD", ctx["order_number"])
	assert.Equal(t, "insufficient stock", ctx["error"])
}

func TestLogger_NilFallsBackToNop(t *testing.T) {
	l := New(nil)
	assert.NotPanics(t, func() { l.Info("ok") })
}
