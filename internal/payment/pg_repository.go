package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `id, appointment_id, amount, currency, status, transaction_id, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID,
		&p.AppointmentID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.TransactionID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) CreatePayment(ctx context.Context, p *Payment) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payments (id, appointment_id, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING created_at, updated_at
	`, p.ID, p.AppointmentID, p.Amount, p.Currency, p.Status).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PgRepository) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = $1
	`, id))
}

func (r *PgRepository) GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE transaction_id = $1
	`, transactionID))
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, transactionID *string) (*Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `
		UPDATE payments
		SET status = $3,
		    transaction_id = COALESCE($4, transaction_id),
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+paymentColumns,
		id, from, to, transactionID))
	if errors.Is(err, ErrPaymentNotFound) {
		if _, getErr := r.GetPayment(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidStatusTransition
	}
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	return p, nil
}

func (r *PgRepository) ListStale(ctx context.Context, status Status, cutoff time.Time, limit int) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE status = $1
		  AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3
	`, status, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
