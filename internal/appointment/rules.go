package appointment

import (
	"fmt"
	"time"
)

// Rules holds the booking policy. The zero value is not usable; start from
// DefaultRules.
type Rules struct {
	BookingWindow      time.Duration
	CancellationCutoff time.Duration
	DailyCapacity      int
	Location           *time.Location
}

func DefaultRules() Rules {
	return Rules{
		BookingWindow:      15 * 24 * time.Hour,
		CancellationCutoff: 3 * 24 * time.Hour,
		DailyCapacity:      30,
		Location:           time.UTC,
	}
}

// CheckWindow enforces now < at <= now+BookingWindow.
func (r Rules) CheckWindow(now, at time.Time) error {
	if !at.After(now) {
		return fmt.Errorf("%w: appointment date must be in the future", ErrOutOfWindow)
	}
	if at.After(now.Add(r.BookingWindow)) {
		return fmt.Errorf("%w: appointment must be within %d days from now", ErrOutOfWindow, int(r.BookingWindow.Hours()/24))
	}
	return nil
}

// CanCancel reports whether a patient may still cancel: strictly more than
// CancellationCutoff must remain.
func (r Rules) CanCancel(now, at time.Time) bool {
	return at.Sub(now) > r.CancellationCutoff
}

// DayBounds returns the half-open clinic calendar day [start, end) that
// contains at.
func (r Rules) DayBounds(at time.Time) (time.Time, time.Time) {
	local := at.In(r.location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.location())
	return start, start.AddDate(0, 0, 1)
}

// DateBounds is DayBounds for a calendar date given as any instant whose
// year, month and day (in its own location) name the date.
func (r Rules) DateBounds(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.location())
	return start, start.AddDate(0, 0, 1)
}

// CalendarDate returns the clinic calendar date of at as midnight UTC, the
// representation used for DATE columns.
func (r Rules) CalendarDate(at time.Time) time.Time {
	local := at.In(r.location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func (r Rules) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}
