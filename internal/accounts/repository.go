package accounts

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
)

var (
	ErrUserNotFound       = apperr.New(apperr.KindNotFound, "user_not_found", "user not found")
	ErrUsernameTaken      = apperr.New(apperr.KindConflict, "username_taken", "a user with that username already exists")
	ErrInvalidCredentials = apperr.New(apperr.KindValidation, "invalid_credentials", "unable to log in with provided credentials")
	ErrProfileMismatch    = apperr.New(apperr.KindValidation, "profile_mismatch", "profile does not match the account role")
	ErrPasswordTooLong    = apperr.New(apperr.KindValidation, "password_too_long", "password must be at most 72 bytes")
)

type Repository interface {
	// CreateAccount stores the user and its profile atomically.
	CreateAccount(ctx context.Context, acc *Account) error

	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UpdateUser overwrites the username and email of a stored user.
	UpdateUser(ctx context.Context, id uuid.UUID, username, email string) (*User, error)

	GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error)
	GetPatientProfile(ctx context.Context, userID uuid.UUID) (*PatientProfile, error)
}
