package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
	"github.com/hackgods/doctor-appointment-booking/internal/payment"
)

// handleError maps a service error to its HTTP response. Unclassified
// errors are logged and reported as 500 without detail.
func (h *Handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs    validator.ValidationErrors
		provider *payment.ProviderError
		domain   *apperr.Error
	)

	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "validation_error",
			Detail: "invalid request",
			Fields: fieldErrors(verrs),
		})
	case errors.As(err, &provider):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:         "payment_provider_error",
			Detail:        "Payment " + provider.Op + " failed.",
			ProviderError: provider.Payload,
		})
	case errors.As(err, &domain):
		writeError(w, statusFor(domain.Kind), domain.Code, err.Error())
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
