package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/plutov/paypal/v4"
)

// PayPal implements Provider on the PayPal Orders v2 API. A transaction id
// is a PayPal order id.
type PayPal struct {
	client *paypal.Client
}

func NewPayPal(clientID, secret, mode string) (*PayPal, error) {
	base := paypal.APIBaseSandBox
	if mode == "live" {
		base = paypal.APIBaseLive
	}

	c, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	return &PayPal{client: c}, nil
}

func (p *PayPal) Authorize(ctx context.Context, o Order) (Authorization, error) {
	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: o.AppointmentID.String(),
		CustomID:    o.PaymentID.String(),
		Description: fmt.Sprintf("Payment for appointment ID %s", o.AppointmentID),
		Amount: &paypal.PurchaseUnitAmount{
			Currency: o.Currency,
			Value:    o.Amount.StringFixed(2),
		},
	}}
	appCtx := &paypal.ApplicationContext{
		ReturnURL:  o.ReturnURL,
		CancelURL:  o.CancelURL,
		UserAction: "PAY_NOW",
	}

	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return Authorization{}, providerError("authorize", err)
	}

	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return Authorization{TransactionID: order.ID, ApprovalURL: link.Href}, nil
		}
	}
	return Authorization{}, &ProviderError{
		Op:      "authorize",
		Payload: map[string]string{"message": "Approval URL not found."},
		Err:     errors.New("approval url not found"),
	}
}

func (p *PayPal) Capture(ctx context.Context, transactionID, _ string) error {
	resp, err := p.client.CaptureOrder(ctx, transactionID, paypal.CaptureOrderRequest{})
	if err != nil {
		return providerError("capture", err)
	}
	if resp.Status != "COMPLETED" {
		return &ProviderError{
			Op:      "capture",
			Payload: map[string]string{"status": resp.Status},
			Err:     fmt.Errorf("order %s not completed: %s", transactionID, resp.Status),
		}
	}
	return nil
}

func (p *PayPal) Find(ctx context.Context, transactionID string) (ProviderState, error) {
	order, err := p.client.GetOrder(ctx, transactionID)
	if err != nil {
		return ProviderPending, providerError("find", err)
	}
	return orderState(order.Status), nil
}

func orderState(status string) ProviderState {
	switch status {
	case "COMPLETED":
		return ProviderCompleted
	case "VOIDED":
		return ProviderFailed
	default:
		return ProviderPending
	}
}

func providerError(op string, err error) *ProviderError {
	var resp *paypal.ErrorResponse
	if errors.As(err, &resp) {
		return &ProviderError{Op: op, Payload: resp, Err: err}
	}
	return &ProviderError{Op: op, Payload: map[string]string{"message": err.Error()}, Err: err}
}
