package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/accounts"
	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/auth"
	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
	"github.com/hackgods/doctor-appointment-booking/internal/payment"
	"github.com/hackgods/doctor-appointment-booking/internal/waitlist"
)

type mockAppointments struct {
	mock.Mock
}

func (m *mockAppointments) appt(args mock.Arguments) (*appointment.Appointment, error) {
	a, _ := args.Get(0).(*appointment.Appointment)
	return a, args.Error(1)
}

func (m *mockAppointments) CreateAppointment(ctx context.Context, p auth.Principal, doctorID uuid.UUID, at time.Time) (*appointment.Appointment, error) {
	return m.appt(m.Called(p, doctorID, at))
}

func (m *mockAppointments) CancelByPatient(ctx context.Context, p auth.Principal, id uuid.UUID) (*appointment.Appointment, error) {
	return m.appt(m.Called(p, id))
}

func (m *mockAppointments) CancelByDoctor(ctx context.Context, p auth.Principal, id uuid.UUID) (*appointment.Appointment, error) {
	return m.appt(m.Called(p, id))
}

func (m *mockAppointments) BulkCancelByDoctor(ctx context.Context, p auth.Principal, f appointment.BulkCancelFilter) (int, error) {
	args := m.Called(p, f)
	return args.Int(0), args.Error(1)
}

func (m *mockAppointments) Reschedule(ctx context.Context, p auth.Principal, id uuid.UUID, at time.Time) (*appointment.Appointment, error) {
	return m.appt(m.Called(p, id, at))
}

func (m *mockAppointments) RescheduleByDoctor(ctx context.Context, p auth.Principal, id uuid.UUID, at time.Time) (*appointment.Appointment, error) {
	return m.appt(m.Called(p, id, at))
}

func (m *mockAppointments) GetAppointment(ctx context.Context, p auth.Principal, id uuid.UUID) (*appointment.Appointment, error) {
	return m.appt(m.Called(p, id))
}

func (m *mockAppointments) ListAppointments(ctx context.Context, p auth.Principal, limit, offset int) ([]appointment.Appointment, error) {
	args := m.Called(p, limit, offset)
	list, _ := args.Get(0).([]appointment.Appointment)
	return list, args.Error(1)
}

type stubAccounts struct {
	registered accounts.Registration
}

func (s *stubAccounts) Register(_ context.Context, reg accounts.Registration) (*accounts.Account, error) {
	s.registered = reg
	if reg.Username == "taken" {
		return nil, accounts.ErrUsernameTaken
	}
	return &accounts.Account{
		User:    accounts.User{ID: uuid.New(), Username: reg.Username, Email: reg.Email, Role: reg.Role},
		Doctor:  reg.Doctor,
		Patient: reg.Patient,
	}, nil
}

func (s *stubAccounts) Login(_ context.Context, username, password string) (string, time.Time, error) {
	if password != "correct-horse" {
		return "", time.Time{}, accounts.ErrInvalidCredentials
	}
	return "token-for-" + username, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func (s *stubAccounts) Me(_ context.Context, p auth.Principal) (*accounts.Account, error) {
	return &accounts.Account{User: accounts.User{ID: p.UserID, Username: "me", Role: p.Role}}, nil
}

func (s *stubAccounts) UpdateMe(_ context.Context, p auth.Principal, upd accounts.UserUpdate) (*accounts.Account, error) {
	acc := &accounts.Account{User: accounts.User{ID: p.UserID, Username: "me", Role: p.Role}}
	if upd.Username != nil {
		if *upd.Username == "taken" {
			return nil, accounts.ErrUsernameTaken
		}
		acc.Username = *upd.Username
	}
	if upd.Email != nil {
		acc.Email = *upd.Email
	}
	return acc, nil
}

type stubWaitlist struct{}

func (stubWaitlist) Register(_ context.Context, p auth.Principal, doctorID uuid.UUID, desired time.Time) (*waitlist.Entry, error) {
	if !p.IsPatient() {
		return nil, waitlist.ErrPatientRoleRequired
	}
	return &waitlist.Entry{ID: uuid.New(), DoctorID: doctorID, PatientID: p.UserID, DesiredDate: waitlist.Date(desired)}, nil
}

func (stubWaitlist) ListMine(_ context.Context, p auth.Principal) ([]waitlist.Entry, error) {
	return []waitlist.Entry{{ID: uuid.New(), PatientID: p.UserID, DesiredDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}}, nil
}

type stubPayments struct{}

func (stubPayments) Create(_ context.Context, _ auth.Principal, in payment.CreateInput) (*payment.Payment, string, error) {
	if in.Amount.IntPart() == 13 {
		return nil, "", &payment.ProviderError{Op: "authorize", Payload: map[string]string{"name": "UNPROCESSABLE_ENTITY"}, Err: errors.New("422")}
	}
	return &payment.Payment{ID: uuid.New(), AppointmentID: in.AppointmentID, Amount: in.Amount, Status: payment.StatusPending}, "https://pay.example/approve", nil
}

func (stubPayments) Execute(_ context.Context, txn, payer string) (*payment.Payment, error) {
	if txn == "" || payer == "" {
		return nil, payment.ErrMissingExecuteParams
	}
	return &payment.Payment{ID: uuid.New(), Status: payment.StatusCompleted, TransactionID: &txn}, nil
}

func (stubPayments) Cancel(_ context.Context, token string) (*payment.Payment, error) {
	if token == "" {
		return nil, nil
	}
	return &payment.Payment{ID: uuid.New(), Status: payment.StatusFailed, TransactionID: &token}, nil
}

type testServer struct {
	handler http.Handler
	appts   *mockAppointments
	accts   *stubAccounts
	tokens  *auth.TokenManager
	patient auth.Principal
	doctor  auth.Principal
	loc     *time.Location
}

func newTestServer(t *testing.T, checks ...Check) *testServer {
	t.Helper()

	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	ts := &testServer{
		appts:   &mockAppointments{},
		accts:   &stubAccounts{},
		tokens:  auth.NewTokenManager("test-secret", time.Hour),
		patient: auth.Principal{UserID: uuid.New(), Role: auth.RolePatient},
		doctor:  auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor},
		loc:     loc,
	}

	reg := prometheus.NewRegistry()
	ts.handler = NewRouter(RouterConfig{
		Accounts:     ts.accts,
		Appointments: ts.appts,
		Waitlist:     stubWaitlist{},
		Payments:     stubPayments{},
		Tokens:       ts.tokens,
		Health:       NewHealthHandler("test", "v0", checks...),
		Metrics:      metrics.NewCollector(reg),
		Gatherer:     reg,
		Log:          zap.NewNop(),
		Location:     loc,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, as *auth.Principal, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		token, _, err := ts.tokens.Issue(*as)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("down") }

	ts := newTestServer(t, Check{Name: "postgres", Critical: true, Ping: ok}, Check{Name: "rabbitmq", Ping: down})

	rec := ts.do(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "down", ready.Dependencies["rabbitmq"])

	ts = newTestServer(t, Check{Name: "postgres", Critical: true, Ping: down})
	rec = ts.do(t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/appointments/", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeBody[ErrorResponse](t, rec).Error)
}

func TestCreateAppointment(t *testing.T) {
	ts := newTestServer(t)
	doctorID := uuid.New()
	wantAt := time.Date(2026, 1, 20, 9, 0, 0, 0, ts.loc)

	created := &appointment.Appointment{
		ID:            uuid.New(),
		DoctorID:      doctorID,
		PatientID:     ts.patient.UserID,
		AppointmentAt: wantAt,
		Status:        appointment.StatusConfirmed,
	}
	ts.appts.On("CreateAppointment", ts.patient, doctorID, mock.MatchedBy(wantAt.Equal)).Return(created, nil).Once()

	rec := ts.do(t, http.MethodPost, "/appointments/", &ts.patient, map[string]string{
		"doctor_id":        doctorID.String(),
		"appointment_date": "2026-01-20T09:00:00",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[AppointmentResponse](t, rec)
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, "CONFIRMED", resp.Status)
	ts.appts.AssertExpectations(t)
}

func TestCreateAppointment_BadInput(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/appointments", &ts.patient, map[string]string{"appointment_date": "2026-01-20T09:00:00Z"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "validation_error", resp.Error)
	assert.Contains(t, resp.Fields, "DoctorID")

	rec = ts.do(t, http.MethodPost, "/appointments", &ts.patient, map[string]string{
		"doctor_id":        uuid.NewString(),
		"appointment_date": "next tuesday",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_date", decodeBody[ErrorResponse](t, rec).Error)

	ts.appts.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything, mock.Anything)
}

func TestAppointmentErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"cutoff", appointment.ErrCancellationWindow, http.StatusBadRequest, "cancellation_window"},
		{"not owner", appointment.ErrNotPatientOwner, http.StatusForbidden, "not_appointment_patient"},
		{"canceled", appointment.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
		{"missing", appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
		{"infrastructure", errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			id := uuid.New()
			ts.appts.On("CancelByPatient", ts.patient, id).Return(nil, tt.err)

			rec := ts.do(t, http.MethodPost, "/appointments/"+id.String()+"/cancel/", &ts.patient, nil)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Error)
			assert.NotEmpty(t, resp.Detail)
			assert.NotContains(t, resp.Detail, "connection reset")
		})
	}
}

func TestCancelDetailMessage(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.New()
	ts.appts.On("CancelByPatient", ts.patient, id).Return(nil, appointment.ErrCancellationWindow)

	rec := ts.do(t, http.MethodPost, "/appointments/"+id.String()+"/cancel", &ts.patient, nil)
	assert.Equal(t, "Cannot cancel appointment within 3 days of the scheduled time.", decodeBody[ErrorResponse](t, rec).Detail)
}

func TestDoctorEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.New()
	patientID := uuid.New()

	ts.appts.On("BulkCancelByDoctor", ts.doctor, mock.MatchedBy(func(f appointment.BulkCancelFilter) bool {
		return f.PatientID != nil && *f.PatientID == patientID &&
			f.Date != nil && f.Date.Equal(time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC))
	})).Return(3, nil)
	ts.appts.On("RescheduleByDoctor", ts.doctor, id, mock.Anything).
		Return(&appointment.Appointment{ID: id, Status: appointment.StatusRescheduled}, nil)

	rec := ts.do(t, http.MethodPost, "/appointments/doctor_bulk_cancel/", &ts.doctor, map[string]string{
		"patient_id": patientID.String(),
		"date":       "2026-01-22",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decodeBody[BulkCancelResponse](t, rec).Count)

	rec = ts.do(t, http.MethodPost, "/appointments/"+id.String()+"/doctor_reschedule/", &ts.doctor, map[string]string{
		"appointment_date": "2026-01-23T10:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RESCHEDULED", decodeBody[AppointmentResponse](t, rec).Status)
}

func TestDoctorBulkCancel_CancelDateField(t *testing.T) {
	ts := newTestServer(t)

	ts.appts.On("BulkCancelByDoctor", ts.doctor, mock.MatchedBy(func(f appointment.BulkCancelFilter) bool {
		return f.PatientID == nil && f.Date != nil && f.Date.Equal(time.Date(2026, 1, 24, 0, 0, 0, 0, time.UTC))
	})).Return(2, nil)

	rec := ts.do(t, http.MethodPost, "/appointments/doctor_bulk_cancel", &ts.doctor, map[string]string{
		"cancel_date": "2026-01-24",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decodeBody[BulkCancelResponse](t, rec).Count)

	rec = ts.do(t, http.MethodPost, "/appointments/doctor_bulk_cancel", &ts.doctor, map[string]string{
		"cancel_date": "24/01/2026",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Fields, "CancelDate")
	ts.appts.AssertNumberOfCalls(t, "BulkCancelByDoctor", 1)
}

func TestInvalidPathID(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/appointments/not-a-uuid/", &ts.patient, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", decodeBody[ErrorResponse](t, rec).Error)
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/register/", nil, map[string]any{
		"username":         "dr_who",
		"email":            "who@example.com",
		"password":         "correct-horse",
		"role":             "doctor",
		"specialty":        "cardiology",
		"experience_years": 12,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decodeBody[UserResponse](t, rec)
	assert.Equal(t, "doctor", user.Role)
	require.NotNil(t, user.DoctorProfile)
	assert.Equal(t, "cardiology", user.DoctorProfile.Specialty)
	assert.Nil(t, user.PatientProfile)

	rec = ts.do(t, http.MethodPost, "/auth/register", nil, map[string]any{
		"username": "taken",
		"email":    "t@example.com",
		"password": "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, auth.RolePatient, ts.accts.registered.Role)

	rec = ts.do(t, http.MethodPost, "/auth/login", nil, map[string]string{"username": "dr_who", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/login", nil, map[string]string{"username": "dr_who", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "token-for-dr_who", decodeBody[TokenResponse](t, rec).Token)

	rec = ts.do(t, http.MethodGet, "/users/me/", &ts.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ts.patient.UserID, decodeBody[UserResponse](t, rec).ID)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/register", nil, map[string]any{
		"username": "house",
		"email":    "house@example.com",
		"password": strings.Repeat("vicodin", 12),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "validation_error", resp.Error)
	assert.Contains(t, resp.Fields, "Password")
}

func TestUpdateMe(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPatch, "/users/me/", &ts.patient, map[string]string{
		"username": "cuddy",
		"email":    "cuddy@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decodeBody[UserResponse](t, rec)
	assert.Equal(t, ts.patient.UserID, user.ID)
	assert.Equal(t, "cuddy", user.Username)
	assert.Equal(t, "cuddy@example.com", user.Email)

	rec = ts.do(t, http.MethodPatch, "/users/me", &ts.patient, map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Fields, "Email")

	rec = ts.do(t, http.MethodPatch, "/users/me", &ts.patient, map[string]string{"username": "taken"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/users/me", nil, map[string]string{"username": "cuddy"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWaitlistEndpoints(t *testing.T) {
	ts := newTestServer(t)
	doctorID := uuid.New()

	rec := ts.do(t, http.MethodPost, "/waitlist/", &ts.patient, map[string]string{
		"doctor_id":    doctorID.String(),
		"desired_date": "2026-02-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "2026-02-01", decodeBody[WaitlistResponse](t, rec).DesiredDate)

	rec = ts.do(t, http.MethodPost, "/waitlist/", &ts.doctor, map[string]string{
		"doctor_id":    doctorID.String(),
		"desired_date": "2026-02-01",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/waitlist", &ts.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]WaitlistResponse](t, rec), 1)
}

func TestPaymentEndpoints(t *testing.T) {
	ts := newTestServer(t)
	apptID := uuid.NewString()

	rec := ts.do(t, http.MethodPost, "/payments/create/", &ts.patient, map[string]string{
		"appointment_id": apptID,
		"amount":         "50.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "https://pay.example/approve", decodeBody[CreatePaymentResponse](t, rec).ApprovalURL)

	rec = ts.do(t, http.MethodPost, "/payments/create/", &ts.patient, map[string]string{
		"appointment_id": apptID,
		"amount":         "13",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "payment_provider_error", resp["error"])
	assert.Equal(t, map[string]any{"name": "UNPROCESSABLE_ENTITY"}, resp["provider_error"])

	rec = ts.do(t, http.MethodPost, "/payments/execute/", &ts.patient, map[string]string{"paymentId": "ORDER-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/payments/execute/", &ts.patient, map[string]string{"paymentId": "ORDER-1", "PayerID": "P1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "COMPLETED", decodeBody[DetailResponse](t, rec).Payment.Status)

	rec = ts.do(t, http.MethodGet, "/payments/cancel/?token=ORDER-2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody[DetailResponse](t, rec)
	assert.Equal(t, "Payment canceled.", out.Detail)
	assert.Equal(t, "FAILED", out.Payment.Status)
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("X", 2*3600)

	got, err := parseTimestamp("2026-01-20T09:00:00+00:00", loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)))

	got, err = parseTimestamp("2026-01-20 09:00", loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 1, 20, 7, 0, 0, 0, time.UTC)))

	_, err = parseTimestamp("20/01/2026", loc)
	assert.ErrorIs(t, err, errInvalidDate)
}
