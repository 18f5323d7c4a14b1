package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status of an appointment.
//
//	PENDING → CONFIRMED → CANCELED
//	                    → RESCHEDULED → RESCHEDULED | CANCELED
//
// CANCELED is terminal.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusConfirmed   Status = "CONFIRMED"
	StatusCanceled    Status = "CANCELED"
	StatusRescheduled Status = "RESCHEDULED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCanceled, StatusRescheduled:
		return true
	}
	return false
}

type Appointment struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	AppointmentAt time.Time
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a *Appointment) CanTransitionTo(next Status) bool {
	allowed := map[Status][]Status{
		StatusPending:     {StatusConfirmed, StatusCanceled},
		StatusConfirmed:   {StatusCanceled, StatusRescheduled},
		StatusRescheduled: {StatusCanceled, StatusRescheduled},
		StatusCanceled:    {},
	}

	for _, s := range allowed[a.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// HasParticipant reports whether userID is the doctor or the patient.
func (a *Appointment) HasParticipant(userID uuid.UUID) bool {
	return a.DoctorID == userID || a.PatientID == userID
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// ListFilter scopes a listing to one doctor or one patient.
type ListFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Limit     int
	Offset    int
}

// BulkCancelFilter narrows a doctor's bulk cancellation. Date is a calendar
// date; only its year, month and day are used.
type BulkCancelFilter struct {
	PatientID *uuid.UUID
	Date      *time.Time
}

// bulkCancelQuery is BulkCancelFilter resolved to instants.
type bulkCancelQuery struct {
	DoctorID  uuid.UUID
	PatientID *uuid.UUID
	From      *time.Time
	To        *time.Time
}
