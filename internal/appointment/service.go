package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/accounts"
	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
	"github.com/hackgods/doctor-appointment-booking/internal/auth"
	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
	redisclient "github.com/hackgods/doctor-appointment-booking/internal/redis"
)

const notifyTimeout = 2 * time.Second

var tracer = otel.Tracer("github.com/hackgods/doctor-appointment-booking/internal/appointment")

// Directory resolves the role of a user id.
type Directory interface {
	RoleOf(ctx context.Context, userID uuid.UUID) (auth.Role, error)
}

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	directory Directory
	notifier  Notifier
	rules     Rules
	log       *zap.Logger
	metrics   *metrics.Collector
	now       func() time.Time
}

func NewService(
	repo Repository,
	locker redisclient.Locker,
	directory Directory,
	notifier Notifier,
	rules Rules,
	log *zap.Logger,
	m *metrics.Collector,
) *Service {
	return &Service{
		repo:      repo,
		locker:    locker,
		directory: directory,
		notifier:  notifier,
		rules:     rules,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *Service) Rules() Rules { return s.rules }

// CreateAppointment books a slot for the requesting patient. The capacity
// count and the insert run under the doctor-day lock; the unique slot index
// settles two bookings of the same instant.
func (s *Service) CreateAppointment(ctx context.Context, p auth.Principal, doctorID uuid.UUID, at time.Time) (_ *Appointment, err error) {
	ctx, span := s.start(ctx, "appointment.Create", attribute.String("doctor_id", doctorID.String()))
	defer func() { s.finish(span, err) }()

	if !p.IsPatient() {
		return nil, ErrPatientRoleRequired
	}

	at = at.Truncate(time.Microsecond)
	if err := s.rules.CheckWindow(s.now(), at); err != nil {
		return nil, err
	}

	if err := s.ensureDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	dayStart, dayEnd := s.rules.DayBounds(at)

	var created *Appointment
	err = s.locker.WithDayLock(ctx, doctorID, dayStart, func(lockCtx context.Context) error {
		n, err := s.repo.CountConfirmedForDay(lockCtx, doctorID, dayStart, dayEnd)
		if err != nil {
			return err
		}
		if n >= s.rules.DailyCapacity {
			return ErrCapacityExceeded
		}

		appt := &Appointment{
			ID:            uuid.New(),
			DoctorID:      doctorID,
			PatientID:     p.UserID,
			AppointmentAt: at,
			Status:        StatusConfirmed,
		}
		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			return err
		}
		created = appt

		s.logEvent(lockCtx, appt.ID, LogAppointmentCreated, map[string]any{
			"doctor_id":      doctorID.String(),
			"patient_id":     p.UserID.String(),
			"appointment_at": at,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDayBeingBooked
		}
		return nil, err
	}

	s.metrics.AppointmentTransition(string(StatusConfirmed))
	return created, nil
}

func (s *Service) ensureDoctor(ctx context.Context, doctorID uuid.UUID) error {
	role, err := s.directory.RoleOf(ctx, doctorID)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return ErrDoctorNotFound
		}
		return fmt.Errorf("load doctor: %w", err)
	}
	if role != auth.RoleDoctor {
		return ErrDoctorNotFound
	}
	return nil
}

// CancelByPatient cancels the requester's own appointment if more than the
// cancellation cutoff remains. The freed slot is announced to the waitlist.
func (s *Service) CancelByPatient(ctx context.Context, p auth.Principal, id uuid.UUID) (_ *Appointment, err error) {
	ctx, span := s.start(ctx, "appointment.CancelByPatient", attribute.String("appointment_id", id.String()))
	defer func() { s.finish(span, err) }()

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsPatient() || appt.PatientID != p.UserID {
		return nil, ErrNotPatientOwner
	}
	if !appt.CanTransitionTo(StatusCanceled) {
		return nil, ErrInvalidStatusTransition
	}
	if !s.rules.CanCancel(s.now(), appt.AppointmentAt) {
		return nil, ErrCancellationWindow
	}

	updated, err := s.repo.CancelAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, id, LogAppointmentCanceled, map[string]any{"by": "patient"})
	s.metrics.AppointmentTransition(string(StatusCanceled))
	s.notify(ctx, Event{
		Type:          EventSlotFreed,
		AppointmentID: updated.ID,
		DoctorID:      updated.DoctorID,
		AppointmentAt: updated.AppointmentAt,
	})

	return updated, nil
}

// CancelByDoctor cancels one appointment of the requesting doctor. There is
// no cutoff for doctors.
func (s *Service) CancelByDoctor(ctx context.Context, p auth.Principal, id uuid.UUID) (_ *Appointment, err error) {
	ctx, span := s.start(ctx, "appointment.CancelByDoctor", attribute.String("appointment_id", id.String()))
	defer func() { s.finish(span, err) }()

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsDoctor() || appt.DoctorID != p.UserID {
		return nil, ErrNotDoctorOwner
	}
	if !appt.CanTransitionTo(StatusCanceled) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.CancelAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, id, LogAppointmentCanceled, map[string]any{"by": "doctor"})
	s.metrics.AppointmentTransition(string(StatusCanceled))
	s.notify(ctx, Event{Type: EventDoctorCanceled, AppointmentID: updated.ID, DoctorID: updated.DoctorID})

	return updated, nil
}

// BulkCancelByDoctor cancels every non-canceled appointment of the
// requesting doctor matching the optional filters and returns how many rows
// it changed.
func (s *Service) BulkCancelByDoctor(ctx context.Context, p auth.Principal, f BulkCancelFilter) (_ int, err error) {
	ctx, span := s.start(ctx, "appointment.BulkCancelByDoctor")
	defer func() { s.finish(span, err) }()

	if !p.IsDoctor() {
		return 0, ErrDoctorRoleRequired
	}

	q := bulkCancelQuery{DoctorID: p.UserID, PatientID: f.PatientID}
	if f.Date != nil {
		from, to := s.rules.DateBounds(*f.Date)
		q.From, q.To = &from, &to
	}

	canceled, err := s.repo.BulkCancel(ctx, q)
	if err != nil {
		return 0, err
	}

	for _, a := range canceled {
		s.logEvent(ctx, a.ID, LogAppointmentCanceled, map[string]any{"by": "doctor", "bulk": true})
		s.metrics.AppointmentTransition(string(StatusCanceled))
		s.notify(ctx, Event{Type: EventDoctorCanceled, AppointmentID: a.ID, DoctorID: a.DoctorID})
	}

	span.SetAttributes(attribute.Int("canceled", len(canceled)))
	return len(canceled), nil
}

// Reschedule moves an appointment to a new time. Either participant may
// reschedule.
func (s *Service) Reschedule(ctx context.Context, p auth.Principal, id uuid.UUID, at time.Time) (_ *Appointment, err error) {
	ctx, span := s.start(ctx, "appointment.Reschedule", attribute.String("appointment_id", id.String()))
	defer func() { s.finish(span, err) }()

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.HasParticipant(p.UserID) {
		return nil, ErrNotParticipant
	}
	return s.reschedule(ctx, appt, at, "participant")
}

// RescheduleByDoctor is Reschedule restricted to the assigned doctor.
func (s *Service) RescheduleByDoctor(ctx context.Context, p auth.Principal, id uuid.UUID, at time.Time) (_ *Appointment, err error) {
	ctx, span := s.start(ctx, "appointment.RescheduleByDoctor", attribute.String("appointment_id", id.String()))
	defer func() { s.finish(span, err) }()

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsDoctor() || appt.DoctorID != p.UserID {
		return nil, ErrNotDoctorOwner
	}
	return s.reschedule(ctx, appt, at, "doctor")
}

func (s *Service) reschedule(ctx context.Context, appt *Appointment, at time.Time, by string) (*Appointment, error) {
	at = at.Truncate(time.Microsecond)
	if err := s.rules.CheckWindow(s.now(), at); err != nil {
		return nil, err
	}
	if !appt.CanTransitionTo(StatusRescheduled) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.RescheduleAppointment(ctx, appt.ID, at)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, LogAppointmentRescheduled, map[string]any{
		"by":   by,
		"from": appt.AppointmentAt,
		"to":   at,
	})
	s.metrics.AppointmentTransition(string(StatusRescheduled))
	s.notify(ctx, Event{Type: EventRescheduled, AppointmentID: updated.ID, DoctorID: updated.DoctorID})

	return updated, nil
}

// GetAppointment returns an appointment visible to the requester. Other
// users' appointments are reported as not found.
func (s *Service) GetAppointment(ctx context.Context, p auth.Principal, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.HasParticipant(p.UserID) {
		return nil, ErrAppointmentNotFound
	}
	return appt, nil
}

// ListAppointments lists the requester's appointments: a doctor's schedule
// or a patient's bookings.
func (s *Service) ListAppointments(ctx context.Context, p auth.Principal, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	f := ListFilter{Limit: limit, Offset: offset}
	uid := p.UserID
	switch p.Role {
	case auth.RoleDoctor:
		f.DoctorID = &uid
	case auth.RolePatient:
		f.PatientID = &uid
	default:
		return nil, nil
	}

	appointments, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

// notify hands ev to the notifier. Failures are logged and never reach the
// caller: the state change is already committed.
func (s *Service) notify(ctx context.Context, ev Event) {
	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.notifier.Enqueue(ctx, ev); err != nil {
		s.log.Error("enqueue notification failed",
			zap.String("type", string(ev.Type)),
			zap.Stringer("appointment_id", ev.AppointmentID),
			zap.Error(err),
		)
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error("insert event log",
			zap.String("event_type", eventType),
			zap.Stringer("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) finish(span trace.Span, err error) {
	if err != nil {
		s.metrics.Rejected(apperr.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
