package httppresentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation, apperror.KindGateway:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON rejects unknown fields. An empty body leaves dst untouched when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.Wrap(apperror.KindValidation, "INVALID_BODY", err, fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	err = apperror.Classify(err)
	status := statusFor(apperror.KindOf(err))

	payload := errorPayload{Code: apperror.CodeOf(err), Message: "internal error"}
	if ae, ok := apperror.As(err); ok && status < http.StatusInternalServerError {
		payload.Message = ae.Message
		payload.Details = ae.Details
	}
	if status >= http.StatusInternalServerError {
		logctx.FromOr(r.Context(), nil).Error("http_request_failed",
			observability.F("route", routePattern(r)),
			observability.F("error", err.Error()),
		)
	}
	writeJSON(w, status, errorBody{Error: payload})
}
