package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSlotFreed      EventType = "slot_freed"
	EventDoctorCanceled EventType = "doctor_canceled"
	EventRescheduled    EventType = "rescheduled"
)

// Event is a committed state change that must reach the notification
// dispatcher. It carries identifiers only.
type Event struct {
	Type          EventType
	AppointmentID uuid.UUID
	DoctorID      uuid.UUID
	AppointmentAt time.Time
}

// Notifier enqueues events for asynchronous delivery. Implementations must
// not wait for delivery.
type Notifier interface {
	Enqueue(ctx context.Context, ev Event) error
}

// Event log types written for every transition.
const (
	LogAppointmentCreated     = "APPOINTMENT_CREATED"
	LogAppointmentCanceled    = "APPOINTMENT_CANCELED"
	LogAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
)
