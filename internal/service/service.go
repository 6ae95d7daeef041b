// Package service contains the business logic for the patient transport API.
// Services validate inputs, enforce the capacity and workflow rules, and
// orchestrate repo calls inside transactions.
// No SQL lives here; services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkordes/patient-transport/internal/domain"
	"github.com/pkordes/patient-transport/internal/repo"
)

// Directory is the read-only registry the core consults for reference data.
// It is always injected; services never reach for a global directory.
type Directory interface {
	FindDriver(ctx context.Context, id int64) (domain.Driver, error)
	FindVehicle(ctx context.Context, id int64) (domain.Vehicle, error)
	FindHealthUnit(ctx context.Context, id int64) (domain.HealthUnit, error)
	FindPhysician(ctx context.Context, id int64) (domain.Physician, error)
	FindPatient(ctx context.Context, id int64) (domain.Patient, error)
}

// Recorder receives business events worth counting.
type Recorder interface {
	AssignmentRejected(reason string)
	StatusChanged(from, to domain.Status)
	OverCapacity()
}

// Deps bundles the collaborators shared by every service.
// Metrics, Logger, Now and Location are optional.
type Deps struct {
	Store     repo.Store
	Directory Directory
	Metrics   Recorder
	Logger    *slog.Logger
	Now       func() time.Time
	// Location is the time zone trip dates and departure times are expressed in.
	Location *time.Location
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Metrics == nil {
		d.Metrics = nopRecorder{}
	}
	return d
}

type nopRecorder struct{}

func (nopRecorder) AssignmentRejected(string)        {}
func (nopRecorder) StatusChanged(_, _ domain.Status) {}
func (nopRecorder) OverCapacity()                    {}
