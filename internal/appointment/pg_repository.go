package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointment-booking/internal/db"
)

const slotConstraint = "appointments_doctor_slot_uniq"

const appointmentColumns = `id, doctor_id, patient_id, appointment_at, status, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.AppointmentAt,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1::uuid IS NULL OR doctor_id = $1)
		  AND ($2::uuid IS NULL OR patient_id = $2)
		ORDER BY appointment_at
		LIMIT $3 OFFSET $4
	`, f.DoctorID, f.PatientID, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CountConfirmedForDay(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE doctor_id = $1
		  AND status = 'CONFIRMED'
		  AND appointment_at >= $2
		  AND appointment_at < $3
	`, doctorID, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count confirmed appointments: %w", err)
	}
	return n, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, appointment_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING created_at, updated_at
	`, a.ID, a.DoctorID, a.PatientID, a.AppointmentAt, a.Status).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, slotConstraint) {
			return ErrSlotConflict
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'CANCELED',
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'CANCELED'
		RETURNING `+appointmentColumns, id)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, r.missOrTransition(ctx, id)
	}
	return a, err
}

func (r *PgRepository) RescheduleAppointment(ctx context.Context, id uuid.UUID, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_at = $2,
		    status = 'RESCHEDULED',
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'CANCELED'
		RETURNING `+appointmentColumns, id, at)

	a, err := scanAppointment(row)
	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, ErrAppointmentNotFound):
		return nil, r.missOrTransition(ctx, id)
	case db.IsUniqueViolation(err, slotConstraint):
		return nil, ErrSlotConflict
	default:
		return nil, fmt.Errorf("reschedule appointment: %w", err)
	}
}

// missOrTransition explains why a conditional update touched no row.
func (r *PgRepository) missOrTransition(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetAppointmentByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidStatusTransition
}

func (r *PgRepository) BulkCancel(ctx context.Context, q bulkCancelQuery) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE appointments
		SET status = 'CANCELED',
		    updated_at = now()
		WHERE doctor_id = $1
		  AND status <> 'CANCELED'
		  AND ($2::uuid IS NULL OR patient_id = $2)
		  AND ($3::timestamptz IS NULL OR appointment_at >= $3)
		  AND ($4::timestamptz IS NULL OR appointment_at < $4)
		RETURNING `+appointmentColumns,
		q.DoctorID, q.PatientID, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("bulk cancel appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
