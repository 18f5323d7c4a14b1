package appointment

import "github.com/hackgods/doctor-appointment-booking/internal/apperr"

var (
	ErrAppointmentNotFound = apperr.New(apperr.KindNotFound, "appointment_not_found", "appointment not found")
	ErrDoctorNotFound      = apperr.New(apperr.KindNotFound, "doctor_not_found", "doctor not found")

	ErrOutOfWindow        = apperr.New(apperr.KindValidation, "out_of_window", "appointment is outside the booking window")
	ErrCancellationWindow = apperr.New(apperr.KindValidation, "cancellation_window", "Cannot cancel appointment within 3 days of the scheduled time.")

	ErrSlotConflict            = apperr.New(apperr.KindConflict, "slot_conflict", "doctor already has an appointment at this time")
	ErrCapacityExceeded        = apperr.New(apperr.KindConflict, "capacity_exceeded", "Doctor has reached the maximum number of appointments for this day.")
	ErrInvalidStatusTransition = apperr.New(apperr.KindConflict, "invalid_status_transition", "invalid status transition")
	ErrDayBeingBooked          = apperr.New(apperr.KindConflict, "day_being_booked", "doctor's day is currently being booked, please retry shortly")

	ErrPatientRoleRequired = apperr.New(apperr.KindForbidden, "patient_role_required", "Only patients can book appointments.")
	ErrDoctorRoleRequired  = apperr.New(apperr.KindForbidden, "doctor_role_required", "Only doctors can perform bulk cancellation.")
	ErrNotPatientOwner     = apperr.New(apperr.KindForbidden, "not_appointment_patient", "Only the patient on this appointment can perform this action.")
	ErrNotDoctorOwner      = apperr.New(apperr.KindForbidden, "not_appointment_doctor", "Only the assigned doctor can perform this action.")
	ErrNotParticipant      = apperr.New(apperr.KindForbidden, "not_participant", "Only the patient or the assigned doctor can perform this action.")
)
