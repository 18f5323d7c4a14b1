package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/doctor-appointment-booking/internal/payment"
)

func (h *Handlers) createPayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.handleError(w, r, payment.ErrInvalidAmount)
		return
	}

	pay, approvalURL, err := h.payments.Create(r.Context(), principal(r), payment.CreateInput{
		AppointmentID: uuid.MustParse(req.AppointmentID),
		Amount:        amount,
		Currency:      req.Currency,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreatePaymentResponse{PaymentID: pay.ID, ApprovalURL: approvalURL})
}

func (h *Handlers) executePayment(w http.ResponseWriter, r *http.Request) {
	var req ExecutePaymentRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	pay, err := h.payments.Execute(r.Context(), req.PaymentID, req.PayerID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := newPaymentResponse(pay)
	writeJSON(w, http.StatusOK, DetailResponse{Detail: "Payment executed successfully.", Payment: &resp})
}

// cancelPayment is the provider's cancel redirect target; it carries the
// transaction id in the token query parameter.
func (h *Handlers) cancelPayment(w http.ResponseWriter, r *http.Request) {
	pay, err := h.payments.Cancel(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	out := DetailResponse{Detail: "Payment canceled."}
	if pay != nil {
		resp := newPaymentResponse(pay)
		out.Payment = &resp
	}
	writeJSON(w, http.StatusOK, out)
}
