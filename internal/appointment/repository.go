package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error)

	// CountConfirmedForDay counts CONFIRMED appointments of a doctor in
	// [from, to).
	CountConfirmedForDay(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int, error)

	// CreateAppointment inserts a and fills its timestamps. A taken slot
	// yields ErrSlotConflict.
	CreateAppointment(ctx context.Context, a *Appointment) error

	// CancelAppointment moves a non-canceled appointment to CANCELED. If the
	// row is already canceled it returns ErrInvalidStatusTransition.
	CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// RescheduleAppointment moves a non-canceled appointment to at with
	// status RESCHEDULED.
	RescheduleAppointment(ctx context.Context, id uuid.UUID, at time.Time) (*Appointment, error)

	// BulkCancel cancels every matching non-canceled appointment and returns
	// the rows it changed.
	BulkCancel(ctx context.Context, q bulkCancelQuery) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
