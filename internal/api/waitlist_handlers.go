package api

import (
	"net/http"

	"github.com/google/uuid"
)

func (h *Handlers) joinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req WaitlistRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	date, err := parseDate(req.DesiredDate)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	entry, err := h.waitlist.Register(r.Context(), principal(r), uuid.MustParse(req.DoctorID), date)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newWaitlistResponse(entry))
}

func (h *Handlers) listWaitlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.waitlist.ListMine(r.Context(), principal(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := make([]WaitlistResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, newWaitlistResponse(&entries[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}
