package httppresentation

import (
	"net/http"

	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	apprefund "github.com/Zhima-Mochi/minishop-checkout/internal/application/refund"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type createIntentRequest struct {
	OrderNumber string `json:"order_number"`
}

type createIntentResponse struct {
	OrderNumber  string `json:"order_number"`
	IntentID     string `json:"payment_intent_id"`
	ClientSecret string `json:"client_secret"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
}

func (h *Handler) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	res, err := h.svc.CreateIntent.Execute(r.Context(), apppayment.CreateIntentInput{
		Caller:      callerFrom(r.Context()),
		OrderNumber: req.OrderNumber,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createIntentResponse{
		OrderNumber:  res.OrderNumber,
		IntentID:     res.IntentID,
		ClientSecret: res.ClientSecret,
		Amount:       amount(res.Amount),
		Currency:     res.Currency,
	})
}

func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.PaymentStatus.Execute(r.Context(), apppayment.GetStatusInput{
		Caller:      callerFrom(r.Context()),
		OrderNumber: chi.URLParam(r, "orderNumber"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	body := paymentStatusResponse{
		OrderNumber:    res.Order.Number,
		OrderStatus:    string(res.Order.Status),
		PaymentStatus:  string(res.Order.PaymentStatus),
		Total:          amount(res.Order.Total),
		AmountRefunded: amount(res.Order.AmountRefunded),
		Payments: lo.Map(res.Payments, func(p *dompayment.Payment, _ int) paymentResponse {
			return toPaymentResponse(p)
		}),
	}
	if res.Latest != nil {
		body.Latest = lo.ToPtr(toPaymentResponse(res.Latest))
	}
	writeJSON(w, http.StatusOK, body)
}

type refundRequest struct {
	OrderNumber string `json:"order_number"`
	// Amount omitted refunds the remaining balance.
	Amount       *decimal.Decimal `json:"amount"`
	Reason       string           `json:"reason"`
	RestoreStock bool             `json:"restore_stock"`
}

type refundResponse struct {
	OrderNumber    string `json:"order_number"`
	RefundID       string `json:"refund_id"`
	Amount         string `json:"amount"`
	AmountRefunded string `json:"amount_refunded"`
	FullyRefunded  bool   `json:"fully_refunded"`
	OrderStatus    string `json:"order_status"`
	PaymentStatus  string `json:"payment_status"`
	StockRestored  bool   `json:"stock_restored"`
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	res, err := h.svc.Refund.Execute(r.Context(), apprefund.ProcessInput{
		Caller:       callerFrom(r.Context()),
		OrderNumber:  req.OrderNumber,
		Amount:       req.Amount,
		Reason:       req.Reason,
		RestoreStock: req.RestoreStock,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refundResponse{
		OrderNumber:    res.OrderNumber,
		RefundID:       res.RefundID,
		Amount:         amount(res.Amount),
		AmountRefunded: amount(res.AmountRefunded),
		FullyRefunded:  res.FullyRefunded,
		OrderStatus:    string(res.OrderStatus),
		PaymentStatus:  string(res.PaymentStatus),
		StockRestored:  res.StockRestored,
	})
}

type eligibilityResponse struct {
	OrderNumber      string `json:"order_number"`
	Eligible         bool   `json:"eligible"`
	Code             string `json:"code,omitempty"`
	Reason           string `json:"reason,omitempty"`
	RefundableAmount string `json:"refundable_amount"`
	AmountRefunded   string `json:"amount_refunded"`
	DaysSincePayment int    `json:"days_since_payment"`
	WindowDays       int    `json:"window_days"`
}

func (h *Handler) handleRefundEligibility(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "orderNumber")
	e, err := h.svc.Eligibility.Execute(r.Context(), apprefund.EligibilityInput{
		Caller:      callerFrom(r.Context()),
		OrderNumber: number,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eligibilityResponse{
		OrderNumber:      number,
		Eligible:         e.Eligible,
		Code:             e.Code,
		Reason:           e.Reason,
		RefundableAmount: amount(e.RefundableAmount),
		AmountRefunded:   amount(e.AmountRefunded),
		DaysSincePayment: e.DaysSincePayment,
		WindowDays:       e.WindowDays,
	})
}
