package accounts

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/auth"
)

type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	Role         auth.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type DoctorProfile struct {
	Specialty           string
	ExperienceYears     int
	MaxAppointments     int
	CurrentAppointments int
}

type PatientProfile struct {
	DateOfBirth    *time.Time
	MedicalHistory *string
}

// Account is a user together with its role-specific profile. Exactly one of
// Doctor and Patient is set, matching User.Role.
type Account struct {
	User
	Doctor  *DoctorProfile
	Patient *PatientProfile
}

// UserUpdate carries the editable user fields; nil fields are left as is.
type UserUpdate struct {
	Username *string
	Email    *string
}

type Registration struct {
	Username string
	Email    string
	Password string
	Role     auth.Role
	Doctor   *DoctorProfile
	Patient  *PatientProfile
}
