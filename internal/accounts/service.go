package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/doctor-appointment-booking/internal/auth"
)

const defaultMaxAppointments = 30

type Service struct {
	repo   Repository
	tokens *auth.TokenManager
	log    *zap.Logger
	cost   int
}

func NewService(repo Repository, tokens *auth.TokenManager, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		log:    log,
		cost:   bcrypt.DefaultCost,
	}
}

// Register creates the user and then its role-specific profile. A missing
// profile is replaced by an empty one for the role.
func (s *Service) Register(ctx context.Context, reg Registration) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, ErrPasswordTooLong
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := &Account{
		User: User{
			ID:           uuid.New(),
			Username:     strings.TrimSpace(reg.Username),
			Email:        strings.TrimSpace(reg.Email),
			PasswordHash: string(hash),
			Role:         reg.Role,
		},
	}

	switch reg.Role {
	case auth.RoleDoctor:
		if reg.Patient != nil {
			return nil, ErrProfileMismatch
		}
		acc.Doctor = reg.Doctor
		if acc.Doctor == nil {
			acc.Doctor = &DoctorProfile{}
		}
		if acc.Doctor.MaxAppointments == 0 {
			acc.Doctor.MaxAppointments = defaultMaxAppointments
		}
	case auth.RolePatient:
		if reg.Doctor != nil {
			return nil, ErrProfileMismatch
		}
		acc.Patient = reg.Patient
		if acc.Patient == nil {
			acc.Patient = &PatientProfile{}
		}
	default:
		return nil, ErrProfileMismatch
	}

	if err := s.repo.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.log.Info("account registered",
		zap.String("user_id", acc.ID.String()),
		zap.String("role", acc.Role.String()),
	)
	return acc, nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", time.Time{}, ErrInvalidCredentials
		}
		return "", time.Time{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(auth.Principal{UserID: u.ID, Role: u.Role})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Me returns the caller's account with its profile.
func (s *Service) Me(ctx context.Context, p auth.Principal) (*Account, error) {
	u, err := s.repo.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	acc := &Account{User: *u}
	switch u.Role {
	case auth.RoleDoctor:
		acc.Doctor, err = s.repo.GetDoctorProfile(ctx, u.ID)
	case auth.RolePatient:
		acc.Patient, err = s.repo.GetPatientProfile(ctx, u.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return acc, nil
}

// UpdateMe changes the caller's username or email and returns the
// refreshed account.
func (s *Service) UpdateMe(ctx context.Context, p auth.Principal, upd UserUpdate) (*Account, error) {
	u, err := s.repo.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	username, email := u.Username, u.Email
	if upd.Username != nil {
		username = strings.TrimSpace(*upd.Username)
	}
	if upd.Email != nil {
		email = strings.TrimSpace(*upd.Email)
	}

	if username != u.Username || email != u.Email {
		if _, err := s.repo.UpdateUser(ctx, u.ID, username, email); err != nil {
			if errors.Is(err, ErrUsernameTaken) {
				return nil, err
			}
			return nil, fmt.Errorf("update user: %w", err)
		}
		s.log.Info("account updated", zap.String("user_id", u.ID.String()))
	}

	return s.Me(ctx, p)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// RoleOf reports the role of a stored user.
func (s *Service) RoleOf(ctx context.Context, id uuid.UUID) (auth.Role, error) {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return u.Role, nil
}
