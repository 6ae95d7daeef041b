package service

import (
	"context"
	"fmt"

	"github.com/pkordes/patient-transport/internal/domain"
	"github.com/pkordes/patient-transport/internal/repo"
)

// ManifestService assembles the read-only projection of a trip used by
// document generation and summary screens. It performs no writes.
type ManifestService struct {
	Deps
}

// NewManifestService constructs a ManifestService.
func NewManifestService(d Deps) *ManifestService {
	return &ManifestService{Deps: d.withDefaults()}
}

// Build returns the manifest of a trip. Trip, roster and history are read in
// one transaction so the counts match the passenger list.
func (s *ManifestService) Build(ctx context.Context, ref domain.TripRef) (domain.Manifest, error) {
	var (
		trip        domain.Trip
		assignments []domain.Assignment
		history     []domain.StatusHistoryEntry
	)
	err := s.Store.WithinTx(ctx, func(tx repo.Tx) error {
		var err error
		if trip, err = tx.Trips().Get(ctx, ref); err != nil {
			return err
		}
		if assignments, err = tx.Assignments().ListByTripID(ctx, trip.ID); err != nil {
			return err
		}
		history, err = tx.History().ListByTripID(ctx, trip.ID)
		return err
	})
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("service.ManifestService.Build: %w", err)
	}

	m := domain.Manifest{Trip: trip, History: history}
	if m.History == nil {
		m.History = []domain.StatusHistoryEntry{}
	}

	if m.Destination, err = s.destinationView(ctx, trip.Destination); err != nil {
		return domain.Manifest{}, fmt.Errorf("service.ManifestService.Build: %w", err)
	}
	if trip.DriverID != nil {
		d, err := s.Directory.FindDriver(ctx, *trip.DriverID)
		if err != nil {
			return domain.Manifest{}, fmt.Errorf("service.ManifestService.Build: driver %d: %w", *trip.DriverID, err)
		}
		m.Driver = &d
	}
	if trip.VehicleID != nil {
		v, err := s.Directory.FindVehicle(ctx, *trip.VehicleID)
		if err != nil {
			return domain.Manifest{}, fmt.Errorf("service.ManifestService.Build: vehicle %d: %w", *trip.VehicleID, err)
		}
		m.Vehicle = &v
	}

	if m.Passengers, err = enrichRoster(ctx, s.Directory, assignments); err != nil {
		return domain.Manifest{}, fmt.Errorf("service.ManifestService.Build: %w", err)
	}
	m.Summary = domain.Summarize(trip.SeatCount, m.Passengers)
	return m, nil
}

// destinationView renders whichever destination variant the trip holds.
func (s *ManifestService) destinationView(ctx context.Context, d domain.Destination) (domain.DestinationView, error) {
	switch v := d.(type) {
	case domain.UnitDestination:
		u, err := s.Directory.FindHealthUnit(ctx, v.UnitID)
		if err != nil {
			return domain.DestinationView{}, fmt.Errorf("health unit %d: %w", v.UnitID, err)
		}
		id := u.ID
		return domain.DestinationView{UnitID: &id, Name: u.Name, Address: u.Address}, nil
	case domain.FreeTextDestination:
		return domain.DestinationView{Name: v.Name, Address: v.Address}, nil
	default:
		return domain.DestinationView{}, fmt.Errorf("trip has no destination")
	}
}
