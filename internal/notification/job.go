package notification

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
)

type JobType string

const (
	JobSlotFreed             JobType = "slot_freed"
	JobWaitlistSlotAvailable JobType = "waitlist_slot_available"
	JobDoctorCanceled        JobType = "doctor_canceled"
	JobRescheduled           JobType = "rescheduled"
	JobPaymentCompleted      JobType = "payment_completed"
)

// Job is the queued message. It carries identifiers and timestamps only;
// the worker reloads everything else.
type Job struct {
	ID            string     `json:"id"`
	Type          JobType    `json:"type"`
	DoctorID      *uuid.UUID `json:"doctor_id,omitempty"`
	PatientID     *uuid.UUID `json:"patient_id,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	PaymentID     *uuid.UUID `json:"payment_id,omitempty"`
	AppointmentAt *time.Time `json:"appointment_at,omitempty"`
	FailedCount   int        `json:"failed_count"`
}

func newJob(t JobType) Job {
	return Job{ID: uuid.NewString(), Type: t}
}

// JobFromEvent maps an appointment event to its job.
func JobFromEvent(ev appointment.Event) (Job, error) {
	switch ev.Type {
	case appointment.EventSlotFreed:
		j := newJob(JobSlotFreed)
		doctorID, at := ev.DoctorID, ev.AppointmentAt.UTC()
		j.DoctorID, j.AppointmentAt = &doctorID, &at
		return j, nil
	case appointment.EventDoctorCanceled:
		j := newJob(JobDoctorCanceled)
		id := ev.AppointmentID
		j.AppointmentID = &id
		return j, nil
	case appointment.EventRescheduled:
		j := newJob(JobRescheduled)
		id := ev.AppointmentID
		j.AppointmentID = &id
		return j, nil
	default:
		return Job{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func (j Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

func DecodeJob(body []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(body, &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	if j.Type == "" {
		return Job{}, fmt.Errorf("decode job: missing type")
	}
	return j, nil
}
