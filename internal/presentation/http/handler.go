package httppresentation

import (
	"context"
	"net/http"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appcheckout "github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	apprefund "github.com/Zhima-Mochi/minishop-checkout/internal/application/refund"
	appwebhook "github.com/Zhima-Mochi/minishop-checkout/internal/application/webhook"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const componentHTTPHandler = "http_server"

// CartService is the cart surface the handlers call.
type CartService interface {
	Get(ctx context.Context, caller application.Caller) (*domcart.Cart, error)
	AddItem(ctx context.Context, caller application.Caller, productID string, qty int) (*domcart.Cart, error)
	UpdateQuantity(ctx context.Context, caller application.Caller, productID string, qty int) (*domcart.Cart, error)
	RemoveItem(ctx context.Context, caller application.Caller, productID string) (*domcart.Cart, error)
	Clear(ctx context.Context, caller application.Caller) error
}

// Services are the use cases exposed over HTTP.
type Services struct {
	Validate      application.UseCase[appcheckout.ValidateInput, *appcheckout.Validation]
	Preview       application.UseCase[appcheckout.PreviewInput, *appcheckout.Preview]
	PlaceOrder    application.UseCase[appcheckout.PlaceOrderInput, *appcheckout.PlaceOrderResult]
	CreateIntent  application.UseCase[apppayment.CreateIntentInput, *apppayment.CreateIntentResult]
	PaymentStatus application.UseCase[apppayment.GetStatusInput, *apppayment.StatusResult]
	Refund        application.UseCase[apprefund.ProcessInput, *apprefund.ProcessResult]
	Eligibility   application.UseCase[apprefund.EligibilityInput, *apprefund.Eligibility]
	Webhook       application.UseCase[appwebhook.Input, *appwebhook.Result]
	GetOrder      application.UseCase[apporder.GetOrderInput, *domorder.Order]
	CancelOrder   application.UseCase[apporder.CancelOrderInput, *domorder.Order]
	UpdateStatus  application.UseCase[apporder.UpdateStatusInput, *domorder.Order]
	Cart          CartService
}

type Handler struct {
	svc     Services
	metrics http.Handler
	log     observability.Logger
	tel     observability.Observability
}

// NewHandler builds the HTTP surface. metrics, when non-nil, is served on /metrics.
func NewHandler(svc Services, metrics http.Handler, tel observability.Observability) *Handler {
	tel = observability.OrNop(tel)
	return &Handler{
		svc:     svc,
		metrics: metrics,
		log:     tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:     tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Trace + request logger + metrics → access log → recoverer → handler
	r.Use(ObservabilityMiddleware(h.log, h.tel))
	r.Use(h.withAccessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Post("/webhooks/payment-gateway", h.handlePaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/validate", h.handleValidate)
			r.Post("/preview", h.handlePreview)
			r.Post("/place-order", h.handlePlaceOrder)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.handleGetCart)
			r.Delete("/", h.handleClearCart)
			r.Post("/items", h.handleAddCartItem)
			r.Patch("/items/{productID}", h.handleUpdateCartItem)
			r.Delete("/items/{productID}", h.handleRemoveCartItem)
		})

		r.Route("/orders/{orderNumber}", func(r chi.Router) {
			r.Get("/", h.handleGetOrder)
			r.Post("/cancel", h.handleCancelOrder)
		})

		r.Post("/payments/create-intent", h.handleCreateIntent)
		r.Get("/payments/{orderNumber}", h.handlePaymentStatus)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAdmin)

		r.Post("/payments/refund", h.handleRefund)
		r.Get("/payments/{orderNumber}/refund-eligibility", h.handleRefundEligibility)
		r.Post("/orders/{orderNumber}/status", h.handleUpdateOrderStatus)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
