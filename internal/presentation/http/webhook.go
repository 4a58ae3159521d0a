package httppresentation

import (
	"io"
	"net/http"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	appwebhook "github.com/Zhima-Mochi/minishop-checkout/internal/application/webhook"
)

type webhookResponse struct {
	Received bool   `json:"received"`
	EventID  string `json:"event_id,omitempty"`
	Type     string `json:"type,omitempty"`
	Status   string `json:"status"`
}

// handlePaymentWebhook needs the raw body: the signature covers its exact bytes.
func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeAppError(w, r, apperror.Wrap(apperror.KindValidation, "INVALID_BODY", err, "unreadable webhook body"))
		return
	}

	res, err := h.svc.Webhook.Execute(r.Context(), appwebhook.Input{
		Payload:   payload,
		Signature: r.Header.Get(appwebhook.SignatureHeader),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		Received: true,
		EventID:  res.EventID,
		Type:     res.Type,
		Status:   res.Status,
	})
}
