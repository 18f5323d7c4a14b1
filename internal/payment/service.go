package payment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/auth"
	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
)

const (
	defaultCurrency    = "USD"
	reconcileBatchSize = 100
)

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Appointments resolves an appointment visible to a principal.
type Appointments interface {
	GetAppointment(ctx context.Context, p auth.Principal, id uuid.UUID) (*appointment.Appointment, error)
}

// Notifier announces completed payments.
type Notifier interface {
	PaymentCompleted(ctx context.Context, paymentID uuid.UUID) error
}

type Service struct {
	repo      Repository
	provider  Provider
	appts     Appointments
	notifier  Notifier
	log       *zap.Logger
	metrics   *metrics.Collector
	returnURL string
	cancelURL string
	now       func() time.Time
}

// NewService builds the payment service. baseURL is the public origin the
// provider redirects the payer back to.
func NewService(repo Repository, provider Provider, appts Appointments, notifier Notifier, baseURL string, log *zap.Logger, m *metrics.Collector) *Service {
	base := strings.TrimRight(baseURL, "/")
	return &Service{
		repo:      repo,
		provider:  provider,
		appts:     appts,
		notifier:  notifier,
		log:       log,
		metrics:   m,
		returnURL: base + "/payments/execute/",
		cancelURL: base + "/payments/cancel/",
		now:       time.Now,
	}
}

// Create records a payment for an appointment the requester takes part in
// and asks the provider to authorize it. It returns the payment and the URL
// the payer must visit to approve it.
func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateInput) (*Payment, string, error) {
	if !in.Amount.GreaterThan(decimal.Zero) {
		return nil, "", ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if !currencyRe.MatchString(currency) {
		return nil, "", ErrInvalidCurrency
	}

	appt, err := s.appts.GetAppointment(ctx, p, in.AppointmentID)
	if err != nil {
		return nil, "", err
	}

	pay := &Payment{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		Amount:        in.Amount.Round(2),
		Currency:      currency,
		Status:        StatusCreated,
	}
	if err := s.repo.CreatePayment(ctx, pay); err != nil {
		return nil, "", err
	}
	s.metrics.PaymentTransition(string(StatusCreated))

	authz, err := s.provider.Authorize(ctx, Order{
		PaymentID:     pay.ID,
		AppointmentID: appt.ID,
		Amount:        pay.Amount,
		Currency:      currency,
		ReturnURL:     s.returnURL,
		CancelURL:     s.cancelURL,
	})
	if err != nil {
		if _, updErr := s.transition(ctx, pay.ID, StatusCreated, StatusFailed, nil); updErr != nil {
			s.log.Error("mark payment failed", zap.Stringer("payment_id", pay.ID), zap.Error(updErr))
		}
		return nil, "", err
	}

	txn := authz.TransactionID
	updated, err := s.transition(ctx, pay.ID, StatusCreated, StatusPending, &txn)
	if err != nil {
		return nil, "", err
	}

	s.log.Info("payment authorized",
		zap.Stringer("payment_id", updated.ID),
		zap.Stringer("appointment_id", appt.ID),
		zap.String("transaction_id", txn),
	)
	return updated, authz.ApprovalURL, nil
}

// Execute captures an approved transaction and completes its payment. A
// payment that is already completed is returned unchanged.
func (s *Service) Execute(ctx context.Context, transactionID, payerID string) (*Payment, error) {
	if transactionID == "" || payerID == "" {
		return nil, ErrMissingExecuteParams
	}

	pay, err := s.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	switch pay.Status {
	case StatusCompleted:
		return pay, nil
	case StatusPending:
	default:
		return nil, ErrInvalidStatusTransition
	}

	if err := s.provider.Capture(ctx, transactionID, payerID); err != nil {
		return nil, err
	}

	return s.complete(ctx, pay)
}

// Cancel handles the provider's cancel redirect. The pending payment behind
// token, if any, is marked FAILED.
func (s *Service) Cancel(ctx context.Context, token string) (*Payment, error) {
	if token == "" {
		return nil, nil
	}

	pay, err := s.repo.GetByTransactionID(ctx, token)
	if err != nil {
		return nil, err
	}
	if pay.Status != StatusPending {
		return pay, nil
	}
	return s.transition(ctx, pay.ID, StatusPending, StatusFailed, nil)
}

// Reconcile asks the provider about PENDING payments untouched since
// olderThan and settles the ones the provider has resolved. It returns the
// number of payments it settled.
func (s *Service) Reconcile(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.repo.ListStale(ctx, StatusPending, s.now().Add(-olderThan), reconcileBatchSize)
	if err != nil {
		return 0, fmt.Errorf("find stale payments: %w", err)
	}

	settled := 0
	for i := range stale {
		pay := &stale[i]
		if pay.TransactionID == nil {
			continue
		}

		state, err := s.provider.Find(ctx, *pay.TransactionID)
		if err != nil {
			s.log.Warn("provider lookup failed", zap.Stringer("payment_id", pay.ID), zap.Error(err))
			continue
		}

		switch state {
		case ProviderCompleted:
			_, err = s.complete(ctx, pay)
		case ProviderFailed:
			_, err = s.transition(ctx, pay.ID, StatusPending, StatusFailed, nil)
		default:
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrInvalidStatusTransition) {
				s.log.Error("reconcile payment", zap.Stringer("payment_id", pay.ID), zap.Error(err))
			}
			continue
		}
		settled++
	}

	return settled, nil
}

func (s *Service) complete(ctx context.Context, pay *Payment) (*Payment, error) {
	updated, err := s.transition(ctx, pay.ID, StatusPending, StatusCompleted, nil)
	if err != nil {
		return nil, err
	}

	if err := s.notifier.PaymentCompleted(ctx, updated.ID); err != nil {
		s.log.Error("enqueue payment confirmation", zap.Stringer("payment_id", updated.ID), zap.Error(err))
	}
	return updated, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to Status, txn *string) (*Payment, error) {
	if !from.CanTransitionTo(to) {
		return nil, ErrInvalidStatusTransition
	}
	updated, err := s.repo.UpdateStatus(ctx, id, from, to, txn)
	if err != nil {
		return nil, err
	}
	s.metrics.PaymentTransition(string(to))
	return updated, nil
}
