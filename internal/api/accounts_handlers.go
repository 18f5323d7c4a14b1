package api

import (
	"net/http"
	"time"

	"github.com/hackgods/doctor-appointment-booking/internal/accounts"
	"github.com/hackgods/doctor-appointment-booking/internal/auth"
)

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	role := auth.RolePatient
	if req.Role != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_role", err.Error())
			return
		}
		role = parsed
	}

	reg := accounts.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	}

	switch role {
	case auth.RoleDoctor:
		reg.Doctor = &accounts.DoctorProfile{
			Specialty:       req.Specialty,
			ExperienceYears: req.ExperienceYears,
		}
	case auth.RolePatient:
		profile := &accounts.PatientProfile{MedicalHistory: req.MedicalHistory}
		if req.DateOfBirth != nil {
			dob, err := parseDate(*req.DateOfBirth)
			if err != nil {
				h.handleError(w, r, err)
				return
			}
			profile.DateOfBirth = &dob
		}
		reg.Patient = profile
	}

	acc, err := h.accounts.Register(r.Context(), reg)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(acc))
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	token, expiresAt, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: expiresAt.UTC().Truncate(time.Second)})
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.Me(r.Context(), principal(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(acc))
}

func (h *Handlers) updateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	acc, err := h.accounts.UpdateMe(r.Context(), principal(r), accounts.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(acc))
}
