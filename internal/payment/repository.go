package payment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
)

var (
	ErrPaymentNotFound         = apperr.New(apperr.KindNotFound, "payment_not_found", "payment not found")
	ErrInvalidAmount           = apperr.New(apperr.KindValidation, "invalid_amount", "amount must be greater than zero")
	ErrInvalidCurrency         = apperr.New(apperr.KindValidation, "invalid_currency", "currency must be a three-letter code")
	ErrMissingExecuteParams    = apperr.New(apperr.KindValidation, "missing_execute_params", "Payment ID and Payer ID are required.")
	ErrInvalidStatusTransition = apperr.New(apperr.KindConflict, "invalid_payment_transition", "payment is not in a state that allows this action")
)

type Repository interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error)

	// UpdateStatus moves a payment from one status to another. A payment no
	// longer in from yields ErrInvalidStatusTransition. A non-nil
	// transactionID is stored alongside.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, transactionID *string) (*Payment, error)

	// ListStale returns payments in status last updated before cutoff.
	ListStale(ctx context.Context, status Status, cutoff time.Time, limit int) ([]Payment, error)
}
