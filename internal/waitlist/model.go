package waitlist

import (
	"time"

	"github.com/google/uuid"
)

// Entry records a patient's interest in a doctor on a calendar date.
// DesiredDate is midnight UTC of that date.
type Entry struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	DesiredDate time.Time
	CreatedAt   time.Time
}

// Date truncates t to its calendar date, as midnight UTC.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
