package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pkordes/patient-transport/internal/domain"
	"github.com/pkordes/patient-transport/internal/repo"
)

// AssignmentService implements the assignment ledger. Every roster change
// holds the trip's row lock, so the capacity check and the insert it guards
// commit together and concurrent adds cannot overbook a trip.
type AssignmentService struct {
	Deps
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(d Deps) *AssignmentService {
	return &AssignmentService{Deps: d.withDefaults()}
}

// Add puts a patient on a trip. Rules are checked in this order:
//  1. domain.ErrCapacityExceeded when no seat is free;
//  2. domain.ErrDuplicateAssignment when the patient is already on the trip;
//  3. domain.ErrValidation for an empty reason or an invalid consult time;
//  4. domain.ErrNotFound when the patient or physician is not registered.
//
// Cancelled trips accept no new passengers (domain.ErrTripClosed).
// The new assignment starts with attendance false.
func (s *AssignmentService) Add(ctx context.Context, ref domain.TripRef, a domain.Assignment) (domain.Assignment, error) {
	var out domain.Assignment
	err := s.Store.WithinTx(ctx, func(tx repo.Tx) error {
		trip, err := tx.Trips().GetForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if trip.Status == domain.StatusCancelled {
			return fmt.Errorf("%w: trip %s is cancelled", domain.ErrTripClosed, trip.Code)
		}

		roster, err := tx.Assignments().CountByTripID(ctx, trip.ID)
		if err != nil {
			return err
		}
		occ := domain.Occupancy{SeatCount: trip.SeatCount, RosterSize: roster}
		if !occ.CanAssign() {
			return fmt.Errorf("%w: trip %s has no seats available (%d of %d taken)",
				domain.ErrCapacityExceeded, trip.Code, roster, trip.SeatCount)
		}

		dup, err := tx.Assignments().Exists(ctx, trip.ID, a.PatientID)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: patient %d is already on trip %s", domain.ErrDuplicateAssignment, a.PatientID, trip.Code)
		}

		a.Reason = strings.TrimSpace(a.Reason)
		a.Notes = strings.TrimSpace(a.Notes)
		if err := validateVisit(a.Reason, a.ConsultTime); err != nil {
			return err
		}
		if _, err := s.Directory.FindPatient(ctx, a.PatientID); err != nil {
			return fmt.Errorf("patient %d: %w", a.PatientID, err)
		}
		if err := s.checkPhysician(ctx, a.PhysicianID); err != nil {
			return err
		}

		a.ID = 0
		a.TripID = trip.ID
		a.Attended = false
		out, err = tx.Assignments().Create(ctx, a)
		return err
	})
	if err != nil {
		s.recordRejection(err)
		return domain.Assignment{}, fmt.Errorf("service.AssignmentService.Add: %w", err)
	}
	return out, nil
}

// Remove deletes an assignment regardless of trip status: manifests change
// up to departure. It frees the seat.
func (s *AssignmentService) Remove(ctx context.Context, id int64) error {
	err := s.Store.WithinTx(ctx, func(tx repo.Tx) error {
		a, err := tx.Assignments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Trips().GetForUpdate(ctx, domain.IDRef(a.TripID)); err != nil {
			return err
		}
		return tx.Assignments().Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("service.AssignmentService.Remove: %w", err)
	}
	return nil
}

// SetAttendance records whether the patient boarded. It is idempotent and
// does not free the seat: a no-show still held the manifest slot.
func (s *AssignmentService) SetAttendance(ctx context.Context, id int64, attended bool) (domain.Assignment, error) {
	out, err := s.Store.Assignments().SetAttendance(ctx, id, attended)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("service.AssignmentService.SetAttendance: %w", err)
	}
	return out, nil
}

// Update edits the visit metadata of an assignment. Once the trip has
// departed only attendance may change, so this fails with domain.ErrTripClosed.
func (s *AssignmentService) Update(ctx context.Context, id int64, u domain.AssignmentUpdate) (domain.Assignment, error) {
	u.Reason = strings.TrimSpace(u.Reason)
	u.Notes = strings.TrimSpace(u.Notes)
	if err := validateVisit(u.Reason, u.ConsultTime); err != nil {
		return domain.Assignment{}, err
	}

	var out domain.Assignment
	err := s.Store.WithinTx(ctx, func(tx repo.Tx) error {
		a, err := tx.Assignments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		trip, err := tx.Trips().GetForUpdate(ctx, domain.IDRef(a.TripID))
		if err != nil {
			return err
		}
		if !s.Now().Before(trip.DepartsAt(s.Location)) {
			return fmt.Errorf("%w: trip %s has departed, only attendance can change", domain.ErrTripClosed, trip.Code)
		}
		if err := s.checkPhysician(ctx, u.PhysicianID); err != nil {
			return err
		}

		a.Reason = u.Reason
		a.ConsultTime = u.ConsultTime
		a.PhysicianID = u.PhysicianID
		a.Notes = u.Notes
		out, err = tx.Assignments().Update(ctx, a)
		return err
	})
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("service.AssignmentService.Update: %w", err)
	}
	return out, nil
}

// List returns the roster of a trip ordered by patient name, each entry
// enriched with patient and physician display fields.
func (s *AssignmentService) List(ctx context.Context, ref domain.TripRef) ([]domain.RosterEntry, error) {
	trip, err := s.Store.Trips().Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("service.AssignmentService.List: %w", err)
	}
	list, err := s.Store.Assignments().ListByTripID(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("service.AssignmentService.List: %w", err)
	}
	roster, err := enrichRoster(ctx, s.Directory, list)
	if err != nil {
		return nil, fmt.Errorf("service.AssignmentService.List: %w", err)
	}
	return roster, nil
}

func (s *AssignmentService) checkPhysician(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := s.Directory.FindPhysician(ctx, *id); err != nil {
		return fmt.Errorf("physician %d: %w", *id, err)
	}
	return nil
}

func (s *AssignmentService) recordRejection(err error) {
	switch {
	case errors.Is(err, domain.ErrCapacityExceeded):
		s.Metrics.AssignmentRejected("capacity_exceeded")
	case errors.Is(err, domain.ErrDuplicateAssignment):
		s.Metrics.AssignmentRejected("duplicate_assignment")
	case errors.Is(err, domain.ErrValidation):
		s.Metrics.AssignmentRejected("validation_error")
	case errors.Is(err, domain.ErrTripClosed):
		s.Metrics.AssignmentRejected("trip_closed")
	}
}

// validateVisit enforces the rules on visit metadata.
//   - Reason must be non-empty (whitespace-only reasons are rejected).
//   - ConsultTime, if set, must be a valid time of day.
func validateVisit(reason string, consult *domain.TimeOfDay) error {
	if reason == "" {
		return fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}
	if consult != nil && !consult.Valid() {
		return fmt.Errorf("%w: consult time out of range", domain.ErrValidation)
	}
	return nil
}
