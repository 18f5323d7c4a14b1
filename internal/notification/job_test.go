package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
)

func TestJobFromEvent_CarriesIdentifiersOnly(t *testing.T) {
	doctorID := uuid.New()
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.FixedZone("CET", 3600))

	job, err := JobFromEvent(appointment.Event{Type: appointment.EventSlotFreed, DoctorID: doctorID, AppointmentAt: at})
	require.NoError(t, err)

	body, err := job.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "`+job.ID+`",
		"type": "slot_freed",
		"doctor_id": "`+doctorID.String()+`",
		"appointment_at": "2026-03-02T08:30:00Z",
		"failed_count": 0
	}`, string(body))

	decoded, err := DecodeJob(body)
	require.NoError(t, err)
	assert.Equal(t, doctorID, *decoded.DoctorID)
	assert.True(t, decoded.AppointmentAt.Equal(at))
	assert.Nil(t, decoded.AppointmentID)
}

func TestJobFromEvent_Unknown(t *testing.T) {
	_, err := JobFromEvent(appointment.Event{Type: "lunch_break"})
	assert.Error(t, err)

	_, err = DecodeJob([]byte(`{"id":"1"}`))
	assert.Error(t, err)
}

func TestNotifier_PublishesJobs(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub, nil)

	apptID := uuid.New()
	require.NoError(t, n.Enqueue(context.Background(), appointment.Event{Type: appointment.EventDoctorCanceled, AppointmentID: apptID}))

	payID := uuid.New()
	require.NoError(t, n.PaymentCompleted(context.Background(), payID))

	require.Len(t, pub.published, 2)
	assert.Equal(t, JobDoctorCanceled, pub.published[0].Type)
	assert.Equal(t, apptID, *pub.published[0].AppointmentID)
	assert.Equal(t, JobPaymentCompleted, pub.published[1].Type)
	assert.Equal(t, payID, *pub.published[1].PaymentID)
}

func TestSMTPMailer_Render(t *testing.T) {
	m := NewSMTPMailer("localhost", 1025, "", "", "clinic@example.com")
	raw := string(m.render(Message{To: "a@example.com", Subject: "Hi", Body: "line1\nline2"}))

	assert.Contains(t, raw, "From: clinic@example.com\r\n")
	assert.Contains(t, raw, "To: a@example.com\r\n")
	assert.Contains(t, raw, "Subject: Hi\r\n")
	assert.Contains(t, raw, "\r\n\r\nline1\r\nline2")
	assert.Nil(t, m.auth)
}
