package waitlist

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/accounts"
	"github.com/hackgods/doctor-appointment-booking/internal/auth"
)

type Directory interface {
	RoleOf(ctx context.Context, userID uuid.UUID) (auth.Role, error)
}

type Service struct {
	repo      Repository
	directory Directory
	log       *zap.Logger
}

func NewService(repo Repository, directory Directory, log *zap.Logger) *Service {
	return &Service{repo: repo, directory: directory, log: log}
}

// Register records the requesting patient's interest in doctorID on the
// calendar date of desired.
func (s *Service) Register(ctx context.Context, p auth.Principal, doctorID uuid.UUID, desired time.Time) (*Entry, error) {
	if !p.IsPatient() {
		return nil, ErrPatientRoleRequired
	}

	role, err := s.directory.RoleOf(ctx, doctorID)
	switch {
	case errors.Is(err, accounts.ErrUserNotFound):
		return nil, ErrDoctorNotFound
	case err != nil:
		return nil, fmt.Errorf("load doctor: %w", err)
	case role != auth.RoleDoctor:
		return nil, ErrDoctorNotFound
	}

	e := &Entry{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		PatientID:   p.UserID,
		DesiredDate: Date(desired),
	}
	if err := s.repo.CreateEntry(ctx, e); err != nil {
		return nil, err
	}

	s.log.Info("waitlist entry created",
		zap.Stringer("doctor_id", doctorID),
		zap.Stringer("patient_id", p.UserID),
		zap.String("date", e.DesiredDate.Format(time.DateOnly)),
	)
	return e, nil
}

// FindInterested returns the entries for doctorID on date. The sequence can
// be ranged over once; a second pass yields ErrSequenceConsumed.
func (s *Service) FindInterested(ctx context.Context, doctorID uuid.UUID, date time.Time) iter.Seq2[Entry, error] {
	return singleUse(s.repo.FindInterested(ctx, doctorID, Date(date)))
}

func (s *Service) ListMine(ctx context.Context, p auth.Principal) ([]Entry, error) {
	if !p.IsPatient() {
		return nil, ErrPatientRoleRequired
	}
	return s.repo.ListByPatient(ctx, p.UserID)
}

func singleUse(seq iter.Seq2[Entry, error]) iter.Seq2[Entry, error] {
	var used atomic.Bool
	return func(yield func(Entry, error) bool) {
		if used.Swap(true) {
			yield(Entry{}, ErrSequenceConsumed)
			return
		}
		seq(yield)
	}
}
