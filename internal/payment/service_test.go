package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/auth"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Authorize(ctx context.Context, o Order) (Authorization, error) {
	args := m.Called(ctx, o)
	return args.Get(0).(Authorization), args.Error(1)
}

func (m *mockProvider) Capture(ctx context.Context, transactionID, payerID string) error {
	return m.Called(ctx, transactionID, payerID).Error(0)
}

func (m *mockProvider) Find(ctx context.Context, transactionID string) (ProviderState, error) {
	args := m.Called(ctx, transactionID)
	return args.Get(0).(ProviderState), args.Error(1)
}

type memRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*Payment
}

func (r *memRepo) CreatePayment(_ context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *memRepo) GetPayment(_ context.Context, id uuid.UUID) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) GetByTransactionID(_ context.Context, txn string) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.TransactionID != nil && *p.TransactionID == txn {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (r *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, txn *string) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if p.Status != from {
		return nil, ErrInvalidStatusTransition
	}
	p.Status = to
	if txn != nil {
		p.TransactionID = txn
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) ListStale(_ context.Context, status Status, cutoff time.Time, limit int) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.byID {
		if p.Status == status && p.UpdatedAt.Before(cutoff) && len(out) < limit {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeAppointments map[uuid.UUID]*appointment.Appointment

func (f fakeAppointments) GetAppointment(_ context.Context, p auth.Principal, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := f[id]
	if !ok || !a.HasParticipant(p.UserID) {
		return nil, appointment.ErrAppointmentNotFound
	}
	return a, nil
}

type recordingNotifier struct {
	completed []uuid.UUID
}

func (n *recordingNotifier) PaymentCompleted(_ context.Context, id uuid.UUID) error {
	n.completed = append(n.completed, id)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *memRepo
	provider *mockProvider
	notifier *recordingNotifier
	patient  auth.Principal
	appt     *appointment.Appointment
}

func newFixture() *fixture {
	patient := auth.Principal{UserID: uuid.New(), Role: auth.RolePatient}
	appt := &appointment.Appointment{ID: uuid.New(), DoctorID: uuid.New(), PatientID: patient.UserID}

	f := &fixture{
		repo:     &memRepo{byID: make(map[uuid.UUID]*Payment)},
		provider: &mockProvider{},
		notifier: &recordingNotifier{},
		patient:  patient,
		appt:     appt,
	}
	f.svc = NewService(f.repo, f.provider, fakeAppointments{appt.ID: appt}, f.notifier, "https://clinic.example/", zap.NewNop(), nil)
	return f
}

func TestCreate(t *testing.T) {
	f := newFixture()
	f.provider.On("Authorize", mock.Anything, mock.MatchedBy(func(o Order) bool {
		return o.AppointmentID == f.appt.ID &&
			o.Currency == "EUR" &&
			o.Amount.Equal(decimal.RequireFromString("49.99")) &&
			o.ReturnURL == "https://clinic.example/payments/execute/" &&
			o.CancelURL == "https://clinic.example/payments/cancel/"
	})).Return(Authorization{TransactionID: "ORDER-1", ApprovalURL: "https://pay.example/approve"}, nil)

	pay, url, err := f.svc.Create(context.Background(), f.patient, CreateInput{
		AppointmentID: f.appt.ID,
		Amount:        decimal.RequireFromString("49.99"),
		Currency:      "eur",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, pay.Status)
	require.NotNil(t, pay.TransactionID)
	assert.Equal(t, "ORDER-1", *pay.TransactionID)
	assert.Equal(t, "https://pay.example/approve", url)
	f.provider.AssertExpectations(t)
}

func TestCreate_ProviderFailureMarksFailed(t *testing.T) {
	f := newFixture()
	provErr := &ProviderError{Op: "authorize", Payload: map[string]string{"name": "INVALID_REQUEST"}, Err: errors.New("400")}
	f.provider.On("Authorize", mock.Anything, mock.Anything).Return(Authorization{}, provErr)

	_, _, err := f.svc.Create(context.Background(), f.patient, CreateInput{
		AppointmentID: f.appt.ID,
		Amount:        decimal.NewFromInt(20),
	})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, map[string]string{"name": "INVALID_REQUEST"}, pe.Payload)

	require.Len(t, f.repo.byID, 1)
	for _, p := range f.repo.byID {
		assert.Equal(t, StatusFailed, p.Status)
		assert.Equal(t, "USD", p.Currency)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()

	_, _, err := f.svc.Create(context.Background(), f.patient, CreateInput{AppointmentID: f.appt.ID, Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = f.svc.Create(context.Background(), f.patient, CreateInput{AppointmentID: f.appt.ID, Amount: decimal.NewFromInt(5), Currency: "dollars"})
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	_, _, err = f.svc.Create(context.Background(), f.patient, CreateInput{AppointmentID: uuid.New(), Amount: decimal.NewFromInt(5)})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	f.provider.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
}

func seedPayment(f *fixture, status Status, txn string) *Payment {
	p := &Payment{
		ID:            uuid.New(),
		AppointmentID: f.appt.ID,
		Amount:        decimal.NewFromInt(30),
		Currency:      "USD",
		Status:        status,
		TransactionID: &txn,
	}
	_ = f.repo.CreatePayment(context.Background(), p)
	return p
}

func TestExecute(t *testing.T) {
	f := newFixture()
	p := seedPayment(f, StatusPending, "ORDER-2")
	f.provider.On("Capture", mock.Anything, "ORDER-2", "PAYER").Return(nil).Once()

	got, err := f.svc.Execute(context.Background(), "ORDER-2", "PAYER")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, []uuid.UUID{p.ID}, f.notifier.completed)

	// a second execute is a no-op
	got, err = f.svc.Execute(context.Background(), "ORDER-2", "PAYER")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	f.provider.AssertNumberOfCalls(t, "Capture", 1)
	assert.Len(t, f.notifier.completed, 1)
}

func TestExecute_Rejections(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Execute(context.Background(), "", "PAYER")
	assert.ErrorIs(t, err, ErrMissingExecuteParams)

	_, err = f.svc.Execute(context.Background(), "UNKNOWN", "PAYER")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	seedPayment(f, StatusFailed, "ORDER-3")
	_, err = f.svc.Execute(context.Background(), "ORDER-3", "PAYER")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	seedPayment(f, StatusPending, "ORDER-4")
	f.provider.On("Capture", mock.Anything, "ORDER-4", "PAYER").Return(&ProviderError{Op: "capture", Err: errors.New("declined")})
	_, err = f.svc.Execute(context.Background(), "ORDER-4", "PAYER")
	var pe *ProviderError
	assert.ErrorAs(t, err, &pe)

	stillPending, _ := f.repo.GetByTransactionID(context.Background(), "ORDER-4")
	assert.Equal(t, StatusPending, stillPending.Status)
}

func TestCancel(t *testing.T) {
	f := newFixture()
	seedPayment(f, StatusPending, "ORDER-5")
	seedPayment(f, StatusCompleted, "ORDER-6")

	got, err := f.svc.Cancel(context.Background(), "ORDER-5")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)

	got, err = f.svc.Cancel(context.Background(), "ORDER-6")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	got, err = f.svc.Cancel(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestReconcile(t *testing.T) {
	f := newFixture()
	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	done := seedPayment(f, StatusPending, "ORDER-DONE")
	voided := seedPayment(f, StatusPending, "ORDER-VOID")
	waiting := seedPayment(f, StatusPending, "ORDER-WAIT")
	broken := seedPayment(f, StatusPending, "ORDER-ERR")

	f.provider.On("Find", mock.Anything, "ORDER-DONE").Return(ProviderCompleted, nil)
	f.provider.On("Find", mock.Anything, "ORDER-VOID").Return(ProviderFailed, nil)
	f.provider.On("Find", mock.Anything, "ORDER-WAIT").Return(ProviderPending, nil)
	f.provider.On("Find", mock.Anything, "ORDER-ERR").Return(ProviderPending, errors.New("timeout"))

	n, err := f.svc.Reconcile(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	status := func(p *Payment) Status {
		got, _ := f.repo.GetPayment(context.Background(), p.ID)
		return got.Status
	}
	assert.Equal(t, StatusCompleted, status(done))
	assert.Equal(t, StatusFailed, status(voided))
	assert.Equal(t, StatusPending, status(waiting))
	assert.Equal(t, StatusPending, status(broken))
	assert.Equal(t, []uuid.UUID{done.ID}, f.notifier.completed)
}

func TestStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, StatusCreated.CanTransitionTo(StatusPending))
	assert.True(t, StatusPending.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusFailed))
	assert.False(t, StatusFailed.CanTransitionTo(StatusPending))
	assert.False(t, StatusPending.CanTransitionTo(StatusCreated))
}
