package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date, used for departure and
// consult times. Parsing and formatting of the "10h00" wire tokens happens
// at the HTTP boundary through ParseTimeOfDay and Token.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an "HHhMM" token. "HH:MM" is accepted as well since
// older clients submit it. Surrounding whitespace is ignored.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	raw := strings.TrimSpace(s)
	sep := strings.IndexAny(raw, "hH:")
	if sep < 1 || sep > 2 || len(raw)-sep-1 != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: invalid time %q, expected HHhMM", ErrValidation, s)
	}
	h, errH := strconv.Atoi(raw[:sep])
	m, errM := strconv.Atoi(raw[sep+1:])
	if errH != nil || errM != nil {
		return TimeOfDay{}, fmt.Errorf("%w: invalid time %q, expected HHhMM", ErrValidation, s)
	}
	t := TimeOfDay{Hour: h, Minute: m}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("%w: time %q out of range", ErrValidation, s)
	}
	return t, nil
}

// Valid reports whether t lies within 00h00–23h59.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// Token formats t as "HHhMM".
func (t TimeOfDay) Token() string {
	return fmt.Sprintf("%02dh%02d", t.Hour, t.Minute)
}

// Duration returns the offset of t from midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute
}

// TimeOfDayFromDuration is the inverse of Duration; seconds are truncated.
func TimeOfDayFromDuration(d time.Duration) TimeOfDay {
	mins := int(d / time.Minute)
	return TimeOfDay{Hour: mins / 60, Minute: mins % 60}
}

// On combines t with the calendar day of date in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	y, mo, d := date.Date()
	return time.Date(y, mo, d, t.Hour, t.Minute, 0, 0, loc)
}
