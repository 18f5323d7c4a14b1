package notification

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	subjectSlotAvailable    = "Appointment Slot Available"
	subjectRescheduled      = "Appointment Rescheduled"
	subjectDoctorCanceled   = "Appointment Canceled by Doctor"
	subjectPaymentConfirmed = "Payment Confirmation"
)

func slotAvailableMessage(to, patient, when string) Message {
	return Message{
		To:      to,
		Subject: subjectSlotAvailable,
		Body: fmt.Sprintf("Dear %s,\n\nA slot has opened up on %s with your desired doctor. "+
			"Please log in to book your appointment.", patient, when),
	}
}

func rescheduledMessage(to, doctor, when string) Message {
	return Message{
		To:      to,
		Subject: subjectRescheduled,
		Body:    fmt.Sprintf("Your appointment with Dr. %s has been rescheduled to %s.", doctor, when),
	}
}

func doctorCanceledMessage(to, doctor, when string) Message {
	return Message{
		To:      to,
		Subject: subjectDoctorCanceled,
		Body:    fmt.Sprintf("Your appointment with Dr. %s on %s has been canceled by the doctor.", doctor, when),
	}
}

func paymentConfirmedMessage(to string, appointmentID uuid.UUID) Message {
	return Message{
		To:      to,
		Subject: subjectPaymentConfirmed,
		Body:    fmt.Sprintf("Your payment for appointment %s has been completed successfully.", appointmentID),
	}
}
