package httppresentation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Cart.Get(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	c, err := h.svc.Cart.AddItem(r.Context(), callerFrom(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	c, err := h.svc.Cart.UpdateQuantity(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Cart.RemoveItem(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "productID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cart.Clear(r.Context(), callerFrom(r.Context())); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
