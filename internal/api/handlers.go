package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/auth"
)

func (h *Handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	doctorID := uuid.MustParse(req.DoctorID)
	at, err := parseTimestamp(req.AppointmentDate, h.loc)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	appt, err := h.appointments.CreateAppointment(r.Context(), principal(r), doctorID, at)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAppointmentResponse(appt))
}

func (h *Handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	list, err := h.appointments.ListAppointments(r.Context(), principal(r), limit, offset)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		resp = append(resp, newAppointmentResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	appt, err := h.appointments.GetAppointment(r.Context(), principal(r), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
}

func (h *Handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.appointments.CancelByPatient)
}

func (h *Handlers) doctorCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.appointments.CancelByDoctor)
}

func (h *Handlers) reschedule(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.appointments.Reschedule)
}

func (h *Handlers) doctorReschedule(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.appointments.RescheduleByDoctor)
}

func (h *Handlers) bulkCancel(w http.ResponseWriter, r *http.Request) {
	var req BulkCancelRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			h.handleError(w, r, err)
			return
		}
	}

	var f appointment.BulkCancelFilter
	if req.PatientID != nil {
		id := uuid.MustParse(*req.PatientID)
		f.PatientID = &id
	}
	if day := req.day(); day != nil {
		d, err := parseDate(*day)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		f.Date = &d
	}

	n, err := h.appointments.BulkCancelByDoctor(r.Context(), principal(r), f)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, BulkCancelResponse{Detail: "Appointments canceled.", Count: n})
}

type transitionFunc func(ctx context.Context, p auth.Principal, id uuid.UUID) (*appointment.Appointment, error)

func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, err := urlID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	appt, err := fn(r.Context(), principal(r), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
}

type moveFunc func(ctx context.Context, p auth.Principal, id uuid.UUID, at time.Time) (*appointment.Appointment, error)

func (h *Handlers) move(w http.ResponseWriter, r *http.Request, fn moveFunc) {
	id, err := urlID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	var req RescheduleRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	at, err := parseTimestamp(req.AppointmentDate, h.loc)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	appt, err := fn(r.Context(), principal(r), id, at)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
}
