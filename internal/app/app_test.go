package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application/apptest"
	appwebhook "github.com/Zhima-Mochi/minishop-checkout/internal/application/webhook"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

const webhookSecret = "whsec_e2e"

func testConfig() config.Config {
	return config.Config{
		ServiceName:           "minishop-checkout",
		Env:                   "test",
		Storage:               config.StorageMemory,
		CheckoutFlow:          "payment_gated",
		Currency:              currency.USD,
		TaxRate:               decimal.RequireFromString("0.08"),
		FreeShippingThreshold: decimal.NewFromInt(50),
		FlatShippingRate:      decimal.RequireFromString("5.99"),
		RefundWindowDays:      30,
		CartTTL:               time.Hour,
		GatewayMode:           config.GatewayFake,
		WebhookSecret:         webhookSecret,
		WebhookTolerance:      5 * time.Minute,
		WebhookDedupeTTL:      time.Hour,
		ShutdownTimeout:       5 * time.Second,
	}
}

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func (c client) call(method, path string, body any, headers map[string]string, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.srv.URL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

type placed struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Total         string `json:"total"`
	Flow          string `json:"flow"`
	IntentID      string `json:"payment_intent_id"`
	ClientSecret  string `json:"client_secret"`
}

type orderView struct {
	Status         string `json:"status"`
	PaymentStatus  string `json:"payment_status"`
	Total          string `json:"total"`
	AmountRefunded string `json:"amount_refunded"`
}

func TestApp_CheckoutPaymentRefundAndCancel(t *testing.T) {
	w := apptest.NewWorld()
	user, address := w.Buyer()
	jacket, scarf := w.Product("60.00", 5), w.Product("20.00", 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := New(ctx, testConfig(), Options{
		Stores: &Stores{
			Orders:    w.Orders,
			Payments:  w.Payments,
			Catalog:   w.Products,
			Stock:     w.Products,
			Customers: w.Customers,
			Carts:     w.Carts,
			Processed: w.Processed,
		},
		Gateway: w.Gateway,
	})
	require.NoError(t, err)
	a.Start(ctx)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		assert.NoError(t, a.Shutdown(stopCtx))
	}()

	c := client{t: t, srv: srv}
	buyer := map[string]string{"X-User-ID": user}
	ops := map[string]string{"X-User-ID": "ops-1", "X-User-Role": "admin"}

	require.Equal(t, http.StatusOK, c.call(http.MethodGet, "/health", nil, nil, nil))

	// Place a payment-gated order for two jackets.
	require.Equal(t, http.StatusOK, c.call(http.MethodPost, "/cart/items",
		map[string]any{"product_id": jacket.ID, "quantity": 2}, buyer, nil))
	var first placed
	require.Equal(t, http.StatusCreated, c.call(http.MethodPost, "/checkout/place-order",
		map[string]any{"address_id": address}, buyer, &first))
	assert.Equal(t, "PENDING", first.Status)
	assert.Equal(t, "AWAITING_PAYMENT", first.PaymentStatus)
	assert.Equal(t, "payment_gated", first.Flow)
	require.NotEmpty(t, first.IntentID)
	assert.NotEmpty(t, first.ClientSecret)
	assert.Equal(t, 5, w.StockOf(t, jacket.ID), "stock waits for the payment")

	// Someone else cannot read it.
	assert.Equal(t, http.StatusForbidden, c.call(http.MethodGet, "/orders/"+first.OrderNumber, nil,
		map[string]string{"X-User-ID": "intruder"}, nil))

	// The gateway captures the payment and says so.
	w.Gateway.SetStatus(first.IntentID, dompayment.IntentSucceeded)
	intent, err := w.Gateway.RetrieveIntent(ctx, first.IntentID)
	require.NoError(t, err)
	var evt appwebhook.Event
	evt.ID, evt.Type, evt.Created = "evt_e2e_1", appwebhook.TypeIntentSucceeded, time.Now().Unix()
	evt.Data.Object = appwebhook.IntentObject{
		ID:       first.IntentID,
		Status:   string(dompayment.IntentSucceeded),
		Amount:   intent.Amount,
		Currency: "usd",
		Metadata: map[string]string{"order_id": first.OrderID},
	}
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/payment-gateway", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(appwebhook.SignatureHeader, appwebhook.Sign(payload, webhookSecret, time.Now()))
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	var hook struct {
		Received bool   `json:"received"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&hook))
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, hook.Received)
	assert.Equal(t, "OK", hook.Status)

	var got orderView
	require.Equal(t, http.StatusOK, c.call(http.MethodGet, "/orders/"+first.OrderNumber, nil, buyer, &got))
	assert.Equal(t, "CONFIRMED", got.Status)
	assert.Equal(t, "PAID", got.PaymentStatus)
	assert.Equal(t, first.Total, got.Total)
	assert.Equal(t, 3, w.StockOf(t, jacket.ID))

	// Buyers cannot refund; ops can, partially.
	refund := map[string]any{"order_number": first.OrderNumber, "amount": "20.00", "reason": "late delivery"}
	assert.Equal(t, http.StatusForbidden, c.call(http.MethodPost, "/admin/payments/refund", refund, buyer, nil))
	var refunded struct {
		AmountRefunded string `json:"amount_refunded"`
		FullyRefunded  bool   `json:"fully_refunded"`
		PaymentStatus  string `json:"payment_status"`
	}
	require.Equal(t, http.StatusOK, c.call(http.MethodPost, "/admin/payments/refund", refund, ops, &refunded))
	assert.Equal(t, "20.00", refunded.AmountRefunded)
	assert.False(t, refunded.FullyRefunded)
	assert.Equal(t, "PARTIALLY_REFUNDED", refunded.PaymentStatus)
	assert.Equal(t, int64(2000), w.Gateway.Refunded(first.IntentID))

	// A second order is cancelled before payment; its intent gets cancelled in the background.
	require.Equal(t, http.StatusOK, c.call(http.MethodPost, "/cart/items",
		map[string]any{"product_id": scarf.ID, "quantity": 1}, buyer, nil))
	var second placed
	require.Equal(t, http.StatusCreated, c.call(http.MethodPost, "/checkout/place-order",
		map[string]any{"address_id": address}, buyer, &second))
	require.Equal(t, http.StatusOK, c.call(http.MethodPost, "/orders/"+second.OrderNumber+"/cancel",
		map[string]any{"reason": "changed my mind"}, buyer, &got))
	assert.Equal(t, "CANCELLED", got.Status)

	require.Eventually(t, func() bool {
		pay, err := w.Payments.GetByIntentID(context.Background(), second.IntentID)
		return err == nil && pay.Status == dompayment.StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, w.Gateway.Calls("cancel_intent"))
}

func TestNew_RejectsUnknownFlow(t *testing.T) {
	cfg := testConfig()
	cfg.CheckoutFlow = "someday"
	_, err := New(context.Background(), cfg, Options{Stores: &Stores{}, Gateway: apptest.NewWorld().Gateway})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "someday"))
}
