// Package handler implements the HTTP handlers for the patient transport API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, assignment.go, manifest.go) but share the same
// Server struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pkordes/patient-transport/internal/domain"
)

// TripServicer defines the business operations the trip handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type TripServicer interface {
	Create(ctx context.Context, trip domain.Trip) (domain.TripSummary, error)
	Get(ctx context.Context, ref domain.TripRef) (domain.TripSummary, error)
	List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) (domain.Page[domain.TripSummary], error)
	History(ctx context.Context, ref domain.TripRef) ([]domain.StatusHistoryEntry, error)
	SetDestination(ctx context.Context, ref domain.TripRef, d domain.Destination) (domain.TripSummary, error)
	SetSchedule(ctx context.Context, ref domain.TripRef, date time.Time, departure domain.TimeOfDay) (domain.TripSummary, error)
	SetDriver(ctx context.Context, ref domain.TripRef, driverID *int64) (domain.TripSummary, error)
	SetVehicle(ctx context.Context, ref domain.TripRef, vehicleID *int64) (domain.TripSummary, error)
	SetNotes(ctx context.Context, ref domain.TripRef, notes string) (domain.TripSummary, error)
	Confirm(ctx context.Context, ref domain.TripRef, actor, note string) (domain.TripSummary, error)
	Cancel(ctx context.Context, ref domain.TripRef, actor, note string) (domain.TripSummary, error)
}

// AssignmentServicer defines the roster operations.
type AssignmentServicer interface {
	Add(ctx context.Context, ref domain.TripRef, a domain.Assignment) (domain.Assignment, error)
	Remove(ctx context.Context, id int64) error
	SetAttendance(ctx context.Context, id int64, attended bool) (domain.Assignment, error)
	Update(ctx context.Context, id int64, u domain.AssignmentUpdate) (domain.Assignment, error)
	List(ctx context.Context, ref domain.TripRef) ([]domain.RosterEntry, error)
}

// ManifestServicer builds the read-only manifest projection.
type ManifestServicer interface {
	Build(ctx context.Context, ref domain.TripRef) (domain.Manifest, error)
}

// ActorHeader carries the identity of the user performing a status change.
const ActorHeader = "X-Actor-ID"

// Server holds the dependencies of every handler.
// Wire it in main.go via Routes on a chi router.
type Server struct {
	trips       TripServicer
	assignments AssignmentServicer
	manifests   ManifestServicer
	logger      *slog.Logger
	validate    *validator.Validate
}

// NewServer constructs the Server with all its dependencies.
// A nil logger falls back to slog.Default().
func NewServer(trips TripServicer, assignments AssignmentServicer, manifests ManifestServicer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		trips:       trips,
		assignments: assignments,
		manifests:   manifests,
		logger:      logger,
		validate:    newValidator(),
	}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(nil, nil, nil, nil)
}

// Routes registers every API endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/trips", func(r chi.Router) {
		r.Post("/", s.CreateTrip)
		r.Get("/", s.ListTrips)

		r.Route("/{ref}", func(r chi.Router) {
			r.Get("/", s.GetTrip)
			r.Put("/destination", s.SetTripDestination)
			r.Put("/schedule", s.SetTripSchedule)
			r.Put("/driver", s.SetTripDriver)
			r.Put("/vehicle", s.SetTripVehicle)
			r.Put("/notes", s.SetTripNotes)
			r.Post("/confirm", s.ConfirmTrip)
			r.Post("/cancel", s.CancelTrip)
			r.Get("/history", s.GetTripHistory)
			r.Get("/assignments", s.ListAssignments)
			r.Post("/assignments", s.AddAssignment)
			r.Get("/manifest", s.GetManifest)
		})
	})

	r.Route("/assignments/{id}", func(r chi.Router) {
		r.Put("/", s.UpdateAssignment)
		r.Delete("/", s.RemoveAssignment)
		r.Put("/attendance", s.SetAttendance)
	})
}

// Handler returns a chi router serving every endpoint, for tests and for
// mounting under a parent router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}
