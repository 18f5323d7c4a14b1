package notification

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/accounts"
	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
	"github.com/hackgods/doctor-appointment-booking/internal/payment"
	"github.com/hackgods/doctor-appointment-booking/internal/waitlist"
)

const timeLayout = "2006-01-02 15:04 MST"

// errSkip marks a job that cannot and need not be delivered, such as one
// whose record has since been deleted.
var errSkip = errors.New("skip job")

type Appointments interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type Users interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*accounts.User, error)
}

type Waitlist interface {
	FindInterested(ctx context.Context, doctorID uuid.UUID, date time.Time) iter.Seq2[waitlist.Entry, error]
}

type Payments interface {
	GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
}

type DispatcherDeps struct {
	Appointments Appointments
	Users        Users
	Waitlist     Waitlist
	Payments     Payments
	Mailer       Mailer
	Publisher    Publisher
	Rules        appointment.Rules
	MaxRetries   int
	Log          *zap.Logger
	Metrics      *metrics.Collector
}

// Dispatcher executes notification jobs. Failed jobs are republished with
// an incremented failure count up to MaxRetries times, then dead-lettered.
type Dispatcher struct {
	DispatcherDeps
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.MaxRetries < 0 {
		deps.MaxRetries = 0
	}
	return &Dispatcher{DispatcherDeps: deps}
}

// Process runs job once. A nil return means the delivery can be acked: the
// job was sent, skipped, or handed back to the queue for a retry.
func (d *Dispatcher) Process(ctx context.Context, job Job) error {
	log := d.Log.With(zap.String("job_id", job.ID), zap.String("type", string(job.Type)))

	err := d.handle(ctx, job)
	switch {
	case err == nil:
		d.Metrics.NotificationProcessed(string(job.Type), "sent")
		return nil
	case errors.Is(err, errSkip):
		log.Info("notification skipped", zap.Error(err))
		d.Metrics.NotificationProcessed(string(job.Type), "skipped")
		return nil
	}

	job.FailedCount++
	if job.FailedCount > d.MaxRetries {
		log.Error("notification dead-lettered", zap.Int("failed_count", job.FailedCount), zap.Error(err))
		d.Metrics.NotificationProcessed(string(job.Type), "dead_lettered")
		return d.Publisher.DeadLetter(ctx, job)
	}

	log.Warn("notification failed, retrying", zap.Int("failed_count", job.FailedCount), zap.Error(err))
	d.Metrics.NotificationProcessed(string(job.Type), "retried")
	return d.Publisher.Publish(ctx, job)
}

func (d *Dispatcher) handle(ctx context.Context, job Job) error {
	switch job.Type {
	case JobSlotFreed:
		return d.fanOutSlot(ctx, job)
	case JobWaitlistSlotAvailable:
		return d.sendSlotAvailable(ctx, job)
	case JobDoctorCanceled:
		return d.sendAppointmentNotice(ctx, job, doctorCanceledMessage)
	case JobRescheduled:
		return d.sendAppointmentNotice(ctx, job, rescheduledMessage)
	case JobPaymentCompleted:
		return d.sendPaymentConfirmation(ctx, job)
	default:
		return fmt.Errorf("%w: unknown job type %q", errSkip, job.Type)
	}
}

// fanOutSlot publishes one waitlist_slot_available job per patient waiting
// on the freed slot's doctor and date.
func (d *Dispatcher) fanOutSlot(ctx context.Context, job Job) error {
	if job.DoctorID == nil || job.AppointmentAt == nil {
		return fmt.Errorf("%w: slot_freed without doctor or time", errSkip)
	}

	date := d.Rules.CalendarDate(*job.AppointmentAt)
	for entry, err := range d.Waitlist.FindInterested(ctx, *job.DoctorID, date) {
		if err != nil {
			return fmt.Errorf("find interested: %w", err)
		}

		next := newJob(JobWaitlistSlotAvailable)
		doctorID, patientID, at := entry.DoctorID, entry.PatientID, *job.AppointmentAt
		next.DoctorID, next.PatientID, next.AppointmentAt = &doctorID, &patientID, &at

		if err := d.Publisher.Publish(ctx, next); err != nil {
			return fmt.Errorf("publish waitlist job: %w", err)
		}
		d.Metrics.NotificationPublished(string(next.Type), nil)
	}
	return nil
}

func (d *Dispatcher) sendSlotAvailable(ctx context.Context, job Job) error {
	if job.PatientID == nil || job.AppointmentAt == nil {
		return fmt.Errorf("%w: waitlist job without patient or time", errSkip)
	}

	patient, err := d.user(ctx, *job.PatientID)
	if err != nil {
		return err
	}
	return d.Mailer.Send(ctx, slotAvailableMessage(patient.Email, patient.Username, d.format(*job.AppointmentAt)))
}

func (d *Dispatcher) sendAppointmentNotice(ctx context.Context, job Job, build func(to, doctor, when string) Message) error {
	if job.AppointmentID == nil {
		return fmt.Errorf("%w: job without appointment", errSkip)
	}

	appt, err := d.appointment(ctx, *job.AppointmentID)
	if err != nil {
		return err
	}
	patient, err := d.user(ctx, appt.PatientID)
	if err != nil {
		return err
	}
	doctor, err := d.user(ctx, appt.DoctorID)
	if err != nil {
		return err
	}

	return d.Mailer.Send(ctx, build(patient.Email, doctor.Username, d.format(appt.AppointmentAt)))
}

func (d *Dispatcher) sendPaymentConfirmation(ctx context.Context, job Job) error {
	if job.PaymentID == nil {
		return fmt.Errorf("%w: job without payment", errSkip)
	}

	pay, err := d.Payments.GetPayment(ctx, *job.PaymentID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			return fmt.Errorf("%w: %v", errSkip, err)
		}
		return err
	}
	appt, err := d.appointment(ctx, pay.AppointmentID)
	if err != nil {
		return err
	}
	patient, err := d.user(ctx, appt.PatientID)
	if err != nil {
		return err
	}

	return d.Mailer.Send(ctx, paymentConfirmedMessage(patient.Email, appt.ID))
}

func (d *Dispatcher) appointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := d.Appointments.GetAppointmentByID(ctx, id)
	if errors.Is(err, appointment.ErrAppointmentNotFound) {
		return nil, fmt.Errorf("%w: %v", errSkip, err)
	}
	return appt, err
}

func (d *Dispatcher) user(ctx context.Context, id uuid.UUID) (*accounts.User, error) {
	u, err := d.Users.GetUserByID(ctx, id)
	if errors.Is(err, accounts.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", errSkip, err)
	}
	return u, err
}

func (d *Dispatcher) format(t time.Time) string {
	loc := d.Rules.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(timeLayout)
}
