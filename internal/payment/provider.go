package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is what the provider is asked to authorize.
type Order struct {
	PaymentID     uuid.UUID
	AppointmentID uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	ReturnURL     string
	CancelURL     string
}

type Authorization struct {
	TransactionID string
	ApprovalURL   string
}

// ProviderState is the provider's view of a transaction, reduced to what the
// payment lifecycle needs.
type ProviderState int

const (
	ProviderPending ProviderState = iota
	ProviderCompleted
	ProviderFailed
)

// Provider is the external payment processor.
type Provider interface {
	Authorize(ctx context.Context, o Order) (Authorization, error)
	Capture(ctx context.Context, transactionID, payerID string) error
	Find(ctx context.Context, transactionID string) (ProviderState, error)
}

// ProviderError carries the provider's error payload back to the caller
// unchanged. It is never retried.
type ProviderError struct {
	Op      string
	Payload any
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DisabledProvider rejects every call. It stands in when no provider
// credentials are configured.
type DisabledProvider struct{}

var errProviderDisabled = fmt.Errorf("payment provider is not configured")

func (DisabledProvider) Authorize(context.Context, Order) (Authorization, error) {
	return Authorization{}, &ProviderError{Op: "authorize", Payload: map[string]string{"message": errProviderDisabled.Error()}, Err: errProviderDisabled}
}

func (DisabledProvider) Capture(context.Context, string, string) error {
	return &ProviderError{Op: "capture", Payload: map[string]string{"message": errProviderDisabled.Error()}, Err: errProviderDisabled}
}

func (DisabledProvider) Find(context.Context, string) (ProviderState, error) {
	return ProviderPending, &ProviderError{Op: "find", Err: errProviderDisabled}
}
