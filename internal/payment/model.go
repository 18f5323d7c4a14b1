package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status of a payment. Transitions are monotonic:
//
//	CREATED → PENDING → COMPLETED
//	        ↘         ↘ FAILED
//	          FAILED
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusCreated:
		return next == StatusPending || next == StatusFailed
	case StatusPending:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

type Payment struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Status        Status
	TransactionID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateInput struct {
	AppointmentID uuid.UUID
	Amount        decimal.Decimal
	Currency      string
}
