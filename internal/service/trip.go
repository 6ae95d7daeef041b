package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkordes/patient-transport/internal/domain"
	"github.com/pkordes/patient-transport/internal/repo"
)

// TripService implements the trip aggregate: creation, field-level edits and
// the status workflow. Each edit validates and persists on its own.
type TripService struct {
	Deps
	policy domain.OverCapacityPolicy
}

// NewTripService constructs a TripService. policy decides what a vehicle
// change does when the new capacity is below the current roster.
func NewTripService(d Deps, policy domain.OverCapacityPolicy) *TripService {
	if policy == "" {
		policy = domain.PolicyAllow
	}
	return &TripService{Deps: d.withDefaults(), policy: policy}
}

// Create validates and persists a new trip in status pending.
// The supplied seat count is kept even when a vehicle is given.
// Returns domain.ErrValidation for malformed input and domain.ErrNotFound
// when a referenced unit, driver or vehicle is not in the directory.
func (s *TripService) Create(ctx context.Context, trip domain.Trip) (domain.TripSummary, error) {
	if err := validateTrip(trip); err != nil {
		return domain.TripSummary{}, err
	}
	if err := s.checkDestination(ctx, trip.Destination); err != nil {
		return domain.TripSummary{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	if trip.DriverID != nil {
		if _, err := s.Directory.FindDriver(ctx, *trip.DriverID); err != nil {
			return domain.TripSummary{}, fmt.Errorf("service.TripService.Create: driver %d: %w", *trip.DriverID, err)
		}
	}
	if trip.VehicleID != nil {
		if _, err := s.Directory.FindVehicle(ctx, *trip.VehicleID); err != nil {
			return domain.TripSummary{}, fmt.Errorf("service.TripService.Create: vehicle %d: %w", *trip.VehicleID, err)
		}
	}

	trip.ID = 0
	trip.Code = ""
	trip.Status = domain.StatusPending
	trip.ConfirmedAt = nil

	created, err := s.Store.Trips().Create(ctx, trip)
	if err != nil {
		return domain.TripSummary{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	return domain.TripSummary{Trip: created}, nil
}

// Get returns a trip with its current roster size.
func (s *TripService) Get(ctx context.Context, ref domain.TripRef) (domain.TripSummary, error) {
	var out domain.TripSummary
	err := s.Store.WithinTx(ctx, func(tx repo.Tx) error {
		trip, err := tx.Trips().Get(ctx, ref)
		if err != nil {
			return err
		}
		n, err := tx.Assignments().CountByTripID(ctx, trip.ID)
		if err != nil {
			return err
		}
		out = domain.TripSummary{Trip: trip, RosterSize: n}
		return nil
	})
	if err != nil {
		return domain.TripSummary{}, fmt.Errorf("service.TripService.Get: %w", err)
	}
	return out, nil
}

// List returns one page of trips, most recent departure first.
// Items is never nil so callers can safely range over it.
func (s *TripService) List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) (domain.Page[domain.TripSummary], error) {
	trips, total, err := s.Store.Trips().ListPaged(ctx, f, p)
	if err != nil {
		return domain.Page[domain.TripSummary]{}, fmt.Errorf("service.TripService.List: %w", err)
	}
	if trips == nil {
		trips = []domain.TripSummary{}
	}
	return domain.Page[domain.TripSummary]{Items: trips, Total: total, PaginationParams: p}, nil
}

// History returns the status history of a trip, oldest first.
func (s *TripService) History(ctx context.Context, ref domain.TripRef) ([]domain.StatusHistoryEntry, error) {
	trip, err := s.Store.Trips().Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("service.TripService.History: %w", err)
	}
	entries, err := s.Store.History().ListByTripID(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("service.TripService.History: %w", err)
	}
	if entries == nil {
		return []domain.StatusHistoryEntry{}, nil
	}
	return entries, nil
}

// SetDestination replaces the destination with the given variant.
func (s *TripService) SetDestination(ctx context.Context, ref domain.TripRef, d domain.Destination) (domain.TripSummary, error) {
	if err := domain.ValidateDestination(d); err != nil {
		return domain.TripSummary{}, err
	}
	return s.mutate(ctx, "SetDestination", ref, func(t *domain.Trip, _ int) error {
		if err := s.checkDestination(ctx, d); err != nil {
			return err
		}
		t.Destination = d
		return nil
	})
}

// SetSchedule overwrites the trip date and departure time.
func (s *TripService) SetSchedule(ctx context.Context, ref domain.TripRef, date time.Time, departure domain.TimeOfDay) (domain.TripSummary, error) {
	if date.IsZero() {
		return domain.TripSummary{}, fmt.Errorf("%w: date is required", domain.ErrValidation)
	}
	if !departure.Valid() {
		return domain.TripSummary{}, fmt.Errorf("%w: departure time out of range", domain.ErrValidation)
	}
	return s.mutate(ctx, "SetSchedule", ref, func(t *domain.Trip, _ int) error {
		t.Date = date
		t.DepartureTime = departure
		return nil
	})
}

// SetDriver assigns a driver, or clears it when driverID is nil.
func (s *TripService) SetDriver(ctx context.Context, ref domain.TripRef, driverID *int64) (domain.TripSummary, error) {
	return s.mutate(ctx, "SetDriver", ref, func(t *domain.Trip, _ int) error {
		if driverID != nil {
			if _, err := s.Directory.FindDriver(ctx, *driverID); err != nil {
				return fmt.Errorf("driver %d: %w", *driverID, err)
			}
		}
		t.DriverID = driverID
		return nil
	})
}

// SetVehicle assigns a vehicle, or clears it when vehicleID is nil.
// A vehicle with a rated capacity overwrites the trip's seat count. When the
// new count is below the current roster the policy decides: PolicyAllow
// applies the change and leaves the trip over capacity (negative free
// seats), PolicyReject fails with domain.ErrCapacityExceeded.
// Existing assignments are never touched.
func (s *TripService) SetVehicle(ctx context.Context, ref domain.TripRef, vehicleID *int64) (domain.TripSummary, error) {
	over := false
	out, err := s.mutate(ctx, "SetVehicle", ref, func(t *domain.Trip, roster int) error {
		t.VehicleID = vehicleID
		if vehicleID == nil {
			return nil
		}
		v, err := s.Directory.FindVehicle(ctx, *vehicleID)
		if err != nil {
			return fmt.Errorf("vehicle %d: %w", *vehicleID, err)
		}
		if v.Capacity == nil {
			return nil
		}
		occ := domain.Occupancy{SeatCount: *v.Capacity, RosterSize: roster}
		if occ.OverCapacity() {
			if s.policy == domain.PolicyReject {
				return fmt.Errorf("%w: vehicle %s seats %d but %d patients are assigned",
					domain.ErrCapacityExceeded, v.Plate, *v.Capacity, roster)
			}
			over = true
		}
		t.SeatCount = *v.Capacity
		return nil
	})
	if err != nil {
		return domain.TripSummary{}, err
	}
	if over {
		s.Metrics.OverCapacity()
		s.Logger.WarnContext(ctx, "trip over capacity after vehicle change",
			"trip", out.Code,
			"seat_count", out.SeatCount,
			"roster_size", out.RosterSize,
			"free_seats", out.Occupancy().FreeSeats(),
		)
	}
	return out, nil
}

// SetNotes overwrites the free-text notes.
func (s *TripService) SetNotes(ctx context.Context, ref domain.TripRef, notes string) (domain.TripSummary, error) {
	return s.mutate(ctx, "SetNotes", ref, func(t *domain.Trip, _ int) error {
		t.Notes = strings.TrimSpace(notes)
		return nil
	})
}

// Confirm moves a pending trip to confirmed, stamps the confirmation time and
// appends one history entry. Returns domain.ErrInvalidStateTransition from
// any other status.
func (s *TripService) Confirm(ctx context.Context, ref domain.TripRef, actor, note string) (domain.TripSummary, error) {
	return s.transition(ctx, "Confirm", ref, domain.StatusConfirmed, actor, note)
}

// Cancel moves a pending trip to cancelled and appends one history entry.
// Assignments are kept; the trip itself is never deleted.
func (s *TripService) Cancel(ctx context.Context, ref domain.TripRef, actor, note string) (domain.TripSummary, error) {
	return s.transition(ctx, "Cancel", ref, domain.StatusCancelled, actor, note)
}

func (s *TripService) transition(ctx context.Context, op string, ref domain.TripRef, to domain.Status, actor, note string) (domain.TripSummary, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return domain.TripSummary{}, fmt.Errorf("%w: actor is required", domain.ErrValidation)
	}

	var from domain.Status
	out, err := s.mutateTx(ctx, op, ref, func(tx repo.Tx, t *domain.Trip, _ int) error {
		if err := domain.CheckTransition(t.Status, to); err != nil {
			return err
		}
		from = t.Status
		t.Status = to
		if to == domain.StatusConfirmed {
			now := s.Now().UTC()
			t.ConfirmedAt = &now
		}
		_, err := tx.History().Append(ctx, domain.StatusHistoryEntry{
			TripID: t.ID,
			From:   from,
			To:     to,
			Note:   strings.TrimSpace(note),
			Actor:  actor,
		})
		return err
	})
	if err != nil {
		return domain.TripSummary{}, err
	}
	s.Metrics.StatusChanged(from, to)
	s.Logger.InfoContext(ctx, "trip status changed", "trip", out.Code, "from", from, "to", to, "actor", actor)
	return out, nil
}

// mutate applies fn to a locked trip and persists the result.
func (s *TripService) mutate(ctx context.Context, op string, ref domain.TripRef, fn func(t *domain.Trip, roster int) error) (domain.TripSummary, error) {
	return s.mutateTx(ctx, op, ref, func(_ repo.Tx, t *domain.Trip, roster int) error {
		return fn(t, roster)
	})
}

// mutateTx locks the trip row, counts its roster, lets fn change the trip
// (and write through tx), then saves the trip, all in one transaction.
// Any error from fn leaves the trip untouched.
func (s *TripService) mutateTx(ctx context.Context, op string, ref domain.TripRef, fn func(tx repo.Tx, t *domain.Trip, roster int) error) (domain.TripSummary, error) {
	var out domain.TripSummary
	err := s.Store.WithinTx(ctx, func(tx repo.Tx) error {
		trip, err := tx.Trips().GetForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		roster, err := tx.Assignments().CountByTripID(ctx, trip.ID)
		if err != nil {
			return err
		}
		if err := fn(tx, &trip, roster); err != nil {
			return err
		}
		updated, err := tx.Trips().Update(ctx, trip)
		if err != nil {
			return err
		}
		out = domain.TripSummary{Trip: updated, RosterSize: roster}
		return nil
	})
	if err != nil {
		return domain.TripSummary{}, fmt.Errorf("service.TripService.%s: %w", op, err)
	}
	return out, nil
}

// checkDestination verifies that a unit destination exists in the directory.
func (s *TripService) checkDestination(ctx context.Context, d domain.Destination) error {
	if u, ok := d.(domain.UnitDestination); ok {
		if _, err := s.Directory.FindHealthUnit(ctx, u.UnitID); err != nil {
			return fmt.Errorf("health unit %d: %w", u.UnitID, err)
		}
	}
	return nil
}

// validateTrip enforces the rules for a new trip.
//   - Destination must be a unit reference or a non-empty free-text name.
//   - Date must be set and the departure time must be a valid time of day.
//   - SeatCount must be at least one.
func validateTrip(t domain.Trip) error {
	if err := domain.ValidateDestination(t.Destination); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: date is required", domain.ErrValidation)
	}
	if !t.DepartureTime.Valid() {
		return fmt.Errorf("%w: departure time out of range", domain.ErrValidation)
	}
	if t.SeatCount < 1 {
		return fmt.Errorf("%w: seat count must be at least 1", domain.ErrValidation)
	}
	return nil
}
