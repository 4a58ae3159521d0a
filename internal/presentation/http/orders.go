package httppresentation

import (
	"net/http"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/go-chi/chi/v5"
)

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type updateStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetOrder.Execute(r.Context(), apporder.GetOrderInput{
		Caller:      callerFrom(r.Context()),
		OrderNumber: chi.URLParam(r, "orderNumber"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	o, err := h.svc.CancelOrder.Execute(r.Context(), apporder.CancelOrderInput{
		Caller:      callerFrom(r.Context()),
		OrderNumber: chi.URLParam(r, "orderNumber"),
		Reason:      req.Reason,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	target, err := domorder.ToStatus(req.Status)
	if err != nil {
		writeAppError(w, r, apperror.Wrap(apperror.KindValidation, "INVALID_STATUS", err, "unknown order status "+req.Status))
		return
	}
	o, err := h.svc.UpdateStatus.Execute(r.Context(), apporder.UpdateStatusInput{
		Caller:         callerFrom(r.Context()),
		OrderNumber:    chi.URLParam(r, "orderNumber"),
		Target:         target,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
