package httppresentation

import (
	"net/http"

	appcheckout "github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
)

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Validate.Execute(r.Context(), appcheckout.ValidateInput{Caller: callerFrom(r.Context())})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toValidationResponse(*v))
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Preview.Execute(r.Context(), appcheckout.PreviewInput{Caller: callerFrom(r.Context())})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewResponse(p))
}

type placeOrderRequest struct {
	AddressID string `json:"address_id"`
	Notes     string `json:"notes"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}

	res, err := h.svc.PlaceOrder.Execute(r.Context(), appcheckout.PlaceOrderInput{
		Caller:    callerFrom(r.Context()),
		AddressID: req.AddressID,
		Notes:     req.Notes,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		OrderID:       res.OrderID,
		OrderNumber:   res.OrderNumber,
		Status:        string(res.Status),
		PaymentStatus: string(res.PaymentStatus),
		Total:         amount(res.Total),
		Currency:      res.Currency,
		Flow:          string(res.Flow),
		IntentID:      res.IntentID,
		ClientSecret:  res.ClientSecret,
		Warnings:      res.Warnings,
	})
}
