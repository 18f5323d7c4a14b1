package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointment-booking/internal/auth"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	r, err := auth.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	u.Role = r
	return &u, nil
}

func (r *PgRepository) CreateAccount(ctx context.Context, acc *Account) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING created_at, updated_at
	`, acc.ID, acc.Username, acc.Email, acc.PasswordHash, acc.Role.String()).Scan(&acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "users_username_key") {
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	switch acc.Role {
	case auth.RoleDoctor:
		_, err = tx.Exec(ctx, `
			INSERT INTO doctor_profiles (user_id, specialty, experience_years, max_appointments, current_appointments)
			VALUES ($1, $2, $3, $4, $5)
		`, acc.ID, acc.Doctor.Specialty, acc.Doctor.ExperienceYears, acc.Doctor.MaxAppointments, acc.Doctor.CurrentAppointments)
	case auth.RolePatient:
		_, err = tx.Exec(ctx, `
			INSERT INTO patient_profiles (user_id, date_of_birth, medical_history)
			VALUES ($1, $2, $3)
		`, acc.ID, acc.Patient.DateOfBirth, acc.Patient.MedicalHistory)
	default:
		return fmt.Errorf("create profile: unsupported role %s", acc.Role)
	}
	if err != nil {
		return fmt.Errorf("insert %s profile: %w", acc.Role, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit account: %w", err)
	}
	return nil
}

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PgRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username)
	return scanUser(row)
}

func (r *PgRepository) UpdateUser(ctx context.Context, id uuid.UUID, username, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET username = $2, email = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, username, email, password_hash, role, created_at, updated_at
	`, id, username, email)
	u, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err, "users_username_key") {
			return nil, ErrUsernameTaken
		}
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (r *PgRepository) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	var p DoctorProfile
	err := r.pool.QueryRow(ctx, `
		SELECT specialty, experience_years, max_appointments, current_appointments
		FROM doctor_profiles
		WHERE user_id = $1
	`, userID).Scan(&p.Specialty, &p.ExperienceYears, &p.MaxAppointments, &p.CurrentAppointments)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get doctor profile: %w", err)
	}
	return &p, nil
}

func (r *PgRepository) GetPatientProfile(ctx context.Context, userID uuid.UUID) (*PatientProfile, error) {
	var p PatientProfile
	err := r.pool.QueryRow(ctx, `
		SELECT date_of_birth, medical_history
		FROM patient_profiles
		WHERE user_id = $1
	`, userID).Scan(&p.DateOfBirth, &p.MedicalHistory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get patient profile: %w", err)
	}
	return &p, nil
}
