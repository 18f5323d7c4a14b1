package waitlist

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
)

var (
	ErrDuplicateEntry      = apperr.New(apperr.KindConflict, "duplicate_waitlist_entry", "already on the waitlist for this doctor and date")
	ErrPatientRoleRequired = apperr.New(apperr.KindForbidden, "patient_role_required", "Only patients can join a waitlist.")
	ErrDoctorNotFound      = apperr.New(apperr.KindNotFound, "doctor_not_found", "doctor not found")
	ErrSequenceConsumed    = apperr.New(apperr.KindUnknown, "sequence_consumed", "waitlist sequence already consumed")
)

type Repository interface {
	// CreateEntry inserts e. An existing (doctor, patient, date) yields
	// ErrDuplicateEntry.
	CreateEntry(ctx context.Context, e *Entry) error

	// FindInterested streams entries for doctorID on date. Iteration stops
	// at the first error.
	FindInterested(ctx context.Context, doctorID uuid.UUID, date time.Time) iter.Seq2[Entry, error]

	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Entry, error)
}
