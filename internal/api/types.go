package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/accounts"
	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/payment"
	"github.com/hackgods/doctor-appointment-booking/internal/waitlist"
)

type RegisterRequest struct {
	Username        string  `json:"username" validate:"required,min=3,max=150"`
	Email           string  `json:"email" validate:"required,email"`
	Password        string  `json:"password" validate:"required,min=8,max=72"`
	Role            string  `json:"role" validate:"omitempty,oneof=doctor patient"`
	Specialty       string  `json:"specialty" validate:"max=100"`
	ExperienceYears int     `json:"experience_years" validate:"gte=0"`
	DateOfBirth     *string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	MedicalHistory  *string `json:"medical_history"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=150"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type DoctorProfileResponse struct {
	Specialty           string `json:"specialty"`
	ExperienceYears     int    `json:"experience_years"`
	MaxAppointments     int    `json:"max_appointments"`
	CurrentAppointments int    `json:"current_appointments"`
}

type PatientProfileResponse struct {
	DateOfBirth    *string `json:"date_of_birth"`
	MedicalHistory *string `json:"medical_history"`
}

type UserResponse struct {
	ID             uuid.UUID               `json:"id"`
	Username       string                  `json:"username"`
	Email          string                  `json:"email"`
	Role           string                  `json:"role"`
	DoctorProfile  *DoctorProfileResponse  `json:"doctor_profile,omitempty"`
	PatientProfile *PatientProfileResponse `json:"patient_profile,omitempty"`
}

func newUserResponse(acc *accounts.Account) UserResponse {
	resp := UserResponse{
		ID:       acc.ID,
		Username: acc.Username,
		Email:    acc.Email,
		Role:     acc.Role.String(),
	}
	if d := acc.Doctor; d != nil {
		resp.DoctorProfile = &DoctorProfileResponse{
			Specialty:           d.Specialty,
			ExperienceYears:     d.ExperienceYears,
			MaxAppointments:     d.MaxAppointments,
			CurrentAppointments: d.CurrentAppointments,
		}
	}
	if p := acc.Patient; p != nil {
		resp.PatientProfile = &PatientProfileResponse{MedicalHistory: p.MedicalHistory}
		if p.DateOfBirth != nil {
			dob := p.DateOfBirth.Format(time.DateOnly)
			resp.PatientProfile.DateOfBirth = &dob
		}
	}
	return resp
}

type CreateAppointmentRequest struct {
	DoctorID        string `json:"doctor_id" validate:"required,uuid"`
	AppointmentDate string `json:"appointment_date" validate:"required"`
}

type RescheduleRequest struct {
	AppointmentDate string `json:"appointment_date" validate:"required"`
}

type BulkCancelRequest struct {
	PatientID  *string `json:"patient_id" validate:"omitempty,uuid"`
	Date       *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	CancelDate *string `json:"cancel_date" validate:"omitempty,datetime=2006-01-02"`
}

// day returns the requested calendar day; date wins over cancel_date.
func (r BulkCancelRequest) day() *string {
	if r.Date != nil {
		return r.Date
	}
	return r.CancelDate
}

type BulkCancelResponse struct {
	Detail string `json:"detail"`
	Count  int    `json:"count"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		DoctorID:        a.DoctorID,
		PatientID:       a.PatientID,
		AppointmentDate: a.AppointmentAt,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type WaitlistRequest struct {
	DoctorID    string `json:"doctor_id" validate:"required,uuid"`
	DesiredDate string `json:"desired_date" validate:"required,datetime=2006-01-02"`
}

type WaitlistResponse struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	DesiredDate string    `json:"desired_date"`
	CreatedAt   time.Time `json:"created_at"`
}

func newWaitlistResponse(e *waitlist.Entry) WaitlistResponse {
	return WaitlistResponse{
		ID:          e.ID,
		DoctorID:    e.DoctorID,
		PatientID:   e.PatientID,
		DesiredDate: e.DesiredDate.Format(time.DateOnly),
		CreatedAt:   e.CreatedAt,
	}
}

type CreatePaymentRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required,uuid"`
	Amount        string `json:"amount" validate:"required,numeric"`
	Currency      string `json:"currency" validate:"omitempty,len=3,alpha"`
}

type CreatePaymentResponse struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	ApprovalURL string    `json:"approval_url"`
}

type ExecutePaymentRequest struct {
	PaymentID string `json:"paymentId"`
	PayerID   string `json:"PayerID"`
}

type PaymentResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	TransactionID *string   `json:"transaction_id"`
}

func newPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		AppointmentID: p.AppointmentID,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
	}
}

type DetailResponse struct {
	Detail  string           `json:"detail"`
	Payment *PaymentResponse `json:"payment,omitempty"`
}

type ErrorResponse struct {
	Error         string            `json:"error"`
	Detail        string            `json:"detail"`
	Fields        map[string]string `json:"fields,omitempty"`
	ProviderError any               `json:"provider_error,omitempty"`
}
