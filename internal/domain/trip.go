// Package domain contains the core data types for the patient transport service.
// This package has no dependency on storage or transport and is imported by
// every other internal package (repo, service, handler).
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Trip is one scheduled transport run to a destination on a given date and
// time with a fixed seat count. It owns its assignments and status history.
type Trip struct {
	ID            int64
	Code          string
	Destination   Destination
	Date          time.Time // calendar day, time-of-day part is zero
	DepartureTime TimeOfDay
	SeatCount     int
	Status        Status
	DriverID      *int64
	VehicleID     *int64
	ConfirmedAt   *time.Time
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DepartsAt returns the departure instant of the trip in loc.
func (t Trip) DepartsAt(loc *time.Location) time.Time {
	return t.DepartureTime.On(t.Date, loc)
}

// TripCode derives the human-facing code from a numeric trip id,
// zero-padded to three digits: 42 -> "V042", 1234 -> "V1234".
func TripCode(id int64) string {
	return fmt.Sprintf("V%03d", id)
}

// Destination is either a registered health unit or a free-text place.
// Exactly one variant is held at any time; use a type switch to render it.
type Destination interface {
	isDestination()
}

// UnitDestination points at a health unit registered in the directory.
type UnitDestination struct {
	UnitID int64
}

// FreeTextDestination is a place that is not registered in the directory.
type FreeTextDestination struct {
	Name    string
	Address string
}

func (UnitDestination) isDestination()     {}
func (FreeTextDestination) isDestination() {}

// ValidateDestination checks the shape of d. It does not look the unit up
// in the directory; callers that need existence checks do that separately.
func ValidateDestination(d Destination) error {
	switch v := d.(type) {
	case UnitDestination:
		if v.UnitID < 1 {
			return fmt.Errorf("%w: destination unit id must be positive", ErrValidation)
		}
	case FreeTextDestination:
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("%w: destination name is required", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: destination is required", ErrValidation)
	}
	return nil
}

// TripSummary is a trip row for list screens, carrying its occupancy.
type TripSummary struct {
	Trip
	RosterSize int
}

// Occupancy returns the capacity view of the summary.
func (s TripSummary) Occupancy() Occupancy {
	return Occupancy{SeatCount: s.SeatCount, RosterSize: s.RosterSize}
}

// TripFilter narrows a trip listing. A nil Status lists every status.
type TripFilter struct {
	Status *Status
}
