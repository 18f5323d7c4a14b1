package waitlist

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointment-booking/internal/db"
)

const entryConstraint = "waitlist_entries_uniq"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.DoctorID, &e.PatientID, &e.DesiredDate, &e.CreatedAt)
	return e, err
}

func (r *PgRepository) CreateEntry(ctx context.Context, e *Entry) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO waitlist_entries (id, doctor_id, patient_id, desired_date, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at
	`, e.ID, e.DoctorID, e.PatientID, e.DesiredDate).Scan(&e.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, entryConstraint) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	return nil
}

func (r *PgRepository) FindInterested(ctx context.Context, doctorID uuid.UUID, date time.Time) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		rows, err := r.pool.Query(ctx, `
			SELECT id, doctor_id, patient_id, desired_date, created_at
			FROM waitlist_entries
			WHERE doctor_id = $1 AND desired_date = $2
			ORDER BY created_at
		`, doctorID, date)
		if err != nil {
			yield(Entry{}, fmt.Errorf("query waitlist: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				yield(Entry{}, fmt.Errorf("scan waitlist entry: %w", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Entry{}, err)
		}
	}
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_id, desired_date, created_at
		FROM waitlist_entries
		WHERE patient_id = $1
		ORDER BY desired_date, created_at
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
