package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidBody = apperr.New(apperr.KindValidation, "invalid_request_body", "could not parse JSON")
	errInvalidID   = apperr.New(apperr.KindValidation, "invalid_id", "id must be a valid UUID")
	errInvalidDate = apperr.New(apperr.KindValidation, "invalid_date", "date must be an ISO-8601 timestamp")
)

// naiveLayouts are accepted when the client sends no zone offset; such
// timestamps are read in the clinic's zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{Error: code, Detail: detail})
}

// decode reads a JSON body into dst and validates its tags.
func (h *Handlers) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errInvalidBody
	}
	return h.validate.Struct(dst)
}

func urlID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	return id, nil
}

func parseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errInvalidDate, raw)
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errInvalidDate, raw)
	}
	return t, nil
}

func fieldErrors(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		name := fe.Field()
		switch fe.Tag() {
		case "required":
			out[name] = "This field is required."
		case "uuid":
			out[name] = "Must be a valid UUID."
		case "email":
			out[name] = "Enter a valid email address."
		case "datetime":
			out[name] = "Date has wrong format. Use YYYY-MM-DD."
		case "oneof":
			out[name] = fmt.Sprintf("Must be one of: %s.", fe.Param())
		case "min":
			out[name] = fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
		case "max":
			out[name] = fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		default:
			out[name] = fmt.Sprintf("Failed %q validation.", fe.Tag())
		}
	}
	return out
}
