package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/patient-transport/internal/domain"
)

// --- request bodies ---------------------------------------------------------

// DestinationRequest is either a unit reference or a free-text place.
type DestinationRequest struct {
	UnitID  *int64 `json:"unit_id,omitempty" validate:"omitempty,gt=0"`
	Name    string `json:"name,omitempty" validate:"max=200"`
	Address string `json:"address,omitempty" validate:"max=300"`
}

// CreateTripRequest is the body of POST /trips.
type CreateTripRequest struct {
	Destination   DestinationRequest `json:"destination"`
	Date          openapi_types.Date `json:"date" validate:"required"`
	DepartureTime string             `json:"departure_time" validate:"required,timetoken"`
	SeatCount     int                `json:"seat_count" validate:"required,min=1"`
	DriverID      *int64             `json:"driver_id,omitempty" validate:"omitempty,gt=0"`
	VehicleID     *int64             `json:"vehicle_id,omitempty" validate:"omitempty,gt=0"`
	Notes         string             `json:"notes,omitempty" validate:"max=2000"`
}

// ScheduleRequest is the body of PUT /trips/{ref}/schedule.
type ScheduleRequest struct {
	Date          openapi_types.Date `json:"date" validate:"required"`
	DepartureTime string             `json:"departure_time" validate:"required,timetoken"`
}

// DriverRequest is the body of PUT /trips/{ref}/driver. A null id clears the driver.
type DriverRequest struct {
	DriverID *int64 `json:"driver_id" validate:"omitempty,gt=0"`
}

// VehicleRequest is the body of PUT /trips/{ref}/vehicle. A null id clears the vehicle.
type VehicleRequest struct {
	VehicleID *int64 `json:"vehicle_id" validate:"omitempty,gt=0"`
}

// NotesRequest is the body of PUT /trips/{ref}/notes.
type NotesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// TransitionRequest is the optional body of the confirm and cancel endpoints.
type TransitionRequest struct {
	Note string `json:"note,omitempty" validate:"max=500"`
}

// --- responses --------------------------------------------------------------

// DestinationResponse renders the destination variant the trip holds.
// Type is "unit" or "free_text".
type DestinationResponse struct {
	Type    string `json:"type"`
	UnitID  *int64 `json:"unit_id,omitempty"`
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// TripResponse is a trip with its current occupancy.
type TripResponse struct {
	ID            int64               `json:"id"`
	Code          string              `json:"code"`
	Destination   DestinationResponse `json:"destination"`
	Date          openapi_types.Date  `json:"date"`
	DepartureTime string              `json:"departure_time"`
	SeatCount     int                 `json:"seat_count"`
	RosterSize    int                 `json:"roster_size"`
	FreeSeats     int                 `json:"free_seats"`
	OverCapacity  bool                `json:"over_capacity"`
	Status        domain.Status       `json:"status"`
	DriverID      *int64              `json:"driver_id,omitempty"`
	VehicleID     *int64              `json:"vehicle_id,omitempty"`
	ConfirmedAt   *time.Time          `json:"confirmed_at,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// TripListResponse is one page of trips.
type TripListResponse struct {
	Data       []TripResponse `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// Pagination describes the page returned and the total row count.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// HistoryEntryResponse is one status transition.
type HistoryEntryResponse struct {
	ID        uuid.UUID     `json:"id"`
	From      domain.Status `json:"from"`
	To        domain.Status `json:"to"`
	Note      string        `json:"note,omitempty"`
	Actor     string        `json:"actor"`
	CreatedAt time.Time     `json:"created_at"`
}

// --- handlers ---------------------------------------------------------------

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var body CreateTripRequest
	if err := s.decodeJSON(r, &body, false); err != nil {
		requestError(w, err)
		return
	}
	trip, err := requestToTrip(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.trips.Create(r.Context(), trip)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tripToResponse(created))
}

// ListTrips handles GET /trips.
// Supports ?page=, ?limit= (defaults: page=1, limit=20, max=100) and ?status=.
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	var (
		page, limit *int
		status      *string
	)
	q := r.URL.Query()
	for name, dest := range map[string]any{"page": &page, "limit": &limit, "status": &status} {
		if err := runtime.BindQueryParameter("form", true, false, name, q, dest); err != nil {
			requestError(w, err)
			return
		}
	}

	var filter domain.TripFilter
	if status != nil {
		st, err := domain.ParseStatus(*status)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.Status = &st
	}

	result, err := s.trips.List(r.Context(), filter, domain.NewPaginationParams(page, limit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data := make([]TripResponse, len(result.Items))
	for i, t := range result.Items {
		data[i] = tripToResponse(t)
	}
	writeJSON(w, http.StatusOK, TripListResponse{
		Data: data,
		Pagination: Pagination{
			Page:  result.Page,
			Limit: result.Limit,
			Total: result.Total,
		},
	})
}

// GetTrip handles GET /trips/{ref}. ref is a numeric id or a code like V042.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	ref, err := tripRef(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	trip, err := s.trips.Get(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// SetTripDestination handles PUT /trips/{ref}/destination.
func (s *Server) SetTripDestination(w http.ResponseWriter, r *http.Request) {
	var body DestinationRequest
	s.editTrip(w, r, &body, func(ref domain.TripRef) (domain.TripSummary, error) {
		d, err := requestToDestination(body)
		if err != nil {
			return domain.TripSummary{}, err
		}
		return s.trips.SetDestination(r.Context(), ref, d)
	})
}

// SetTripSchedule handles PUT /trips/{ref}/schedule.
func (s *Server) SetTripSchedule(w http.ResponseWriter, r *http.Request) {
	var body ScheduleRequest
	s.editTrip(w, r, &body, func(ref domain.TripRef) (domain.TripSummary, error) {
		dep, err := domain.ParseTimeOfDay(body.DepartureTime)
		if err != nil {
			return domain.TripSummary{}, err
		}
		return s.trips.SetSchedule(r.Context(), ref, body.Date.Time, dep)
	})
}

// SetTripDriver handles PUT /trips/{ref}/driver.
func (s *Server) SetTripDriver(w http.ResponseWriter, r *http.Request) {
	var body DriverRequest
	s.editTrip(w, r, &body, func(ref domain.TripRef) (domain.TripSummary, error) {
		return s.trips.SetDriver(r.Context(), ref, body.DriverID)
	})
}

// SetTripVehicle handles PUT /trips/{ref}/vehicle.
// The response reports free_seats, which is negative when the new vehicle
// seats fewer patients than are already assigned.
func (s *Server) SetTripVehicle(w http.ResponseWriter, r *http.Request) {
	var body VehicleRequest
	s.editTrip(w, r, &body, func(ref domain.TripRef) (domain.TripSummary, error) {
		return s.trips.SetVehicle(r.Context(), ref, body.VehicleID)
	})
}

// SetTripNotes handles PUT /trips/{ref}/notes.
func (s *Server) SetTripNotes(w http.ResponseWriter, r *http.Request) {
	var body NotesRequest
	s.editTrip(w, r, &body, func(ref domain.TripRef) (domain.TripSummary, error) {
		return s.trips.SetNotes(r.Context(), ref, body.Notes)
	})
}

// ConfirmTrip handles POST /trips/{ref}/confirm. The actor comes from the
// X-Actor-ID header.
func (s *Server) ConfirmTrip(w http.ResponseWriter, r *http.Request) {
	var body TransitionRequest
	s.transitionTrip(w, r, &body, func(ref domain.TripRef, actor string) (domain.TripSummary, error) {
		return s.trips.Confirm(r.Context(), ref, actor, body.Note)
	})
}

// CancelTrip handles POST /trips/{ref}/cancel.
func (s *Server) CancelTrip(w http.ResponseWriter, r *http.Request) {
	var body TransitionRequest
	s.transitionTrip(w, r, &body, func(ref domain.TripRef, actor string) (domain.TripSummary, error) {
		return s.trips.Cancel(r.Context(), ref, actor, body.Note)
	})
}

// GetTripHistory handles GET /trips/{ref}/history.
func (s *Server) GetTripHistory(w http.ResponseWriter, r *http.Request) {
	ref, err := tripRef(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.trips.History(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyToResponse(entries))
}

// editTrip decodes body, then runs apply against the trip in the URL.
func (s *Server) editTrip(w http.ResponseWriter, r *http.Request, body any, apply func(domain.TripRef) (domain.TripSummary, error)) {
	ref, err := tripRef(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.decodeJSON(r, body, false); err != nil {
		requestError(w, err)
		return
	}
	trip, err := apply(ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

func (s *Server) transitionTrip(w http.ResponseWriter, r *http.Request, body *TransitionRequest, apply func(domain.TripRef, string) (domain.TripSummary, error)) {
	ref, err := tripRef(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.decodeJSON(r, body, true); err != nil {
		requestError(w, err)
		return
	}
	trip, err := apply(ref, r.Header.Get(ActorHeader))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// --- mapping helpers --------------------------------------------------------

// requestToTrip converts a CreateTripRequest body into a domain.Trip.
func requestToTrip(body CreateTripRequest) (domain.Trip, error) {
	d, err := requestToDestination(body.Destination)
	if err != nil {
		return domain.Trip{}, err
	}
	dep, err := domain.ParseTimeOfDay(body.DepartureTime)
	if err != nil {
		return domain.Trip{}, err
	}
	return domain.Trip{
		Destination:   d,
		Date:          body.Date.Time,
		DepartureTime: dep,
		SeatCount:     body.SeatCount,
		DriverID:      body.DriverID,
		VehicleID:     body.VehicleID,
		Notes:         strings.TrimSpace(body.Notes),
	}, nil
}

// requestToDestination picks the variant. Supplying both a unit and a name is
// ambiguous and rejected rather than silently preferring one.
func requestToDestination(body DestinationRequest) (domain.Destination, error) {
	switch {
	case body.UnitID != nil && body.Name != "":
		return nil, fmt.Errorf("%w: destination takes either unit_id or name, not both", domain.ErrValidation)
	case body.UnitID != nil:
		return domain.UnitDestination{UnitID: *body.UnitID}, nil
	default:
		return domain.FreeTextDestination{
			Name:    strings.TrimSpace(body.Name),
			Address: strings.TrimSpace(body.Address),
		}, nil
	}
}

func destinationToResponse(d domain.Destination) DestinationResponse {
	switch v := d.(type) {
	case domain.UnitDestination:
		id := v.UnitID
		return DestinationResponse{Type: "unit", UnitID: &id}
	case domain.FreeTextDestination:
		return DestinationResponse{Type: "free_text", Name: v.Name, Address: v.Address}
	default:
		return DestinationResponse{}
	}
}

// tripToResponse converts a domain.TripSummary into its wire form.
func tripToResponse(t domain.TripSummary) TripResponse {
	occ := t.Occupancy()
	return TripResponse{
		ID:            t.ID,
		Code:          t.Code,
		Destination:   destinationToResponse(t.Destination),
		Date:          openapi_types.Date{Time: t.Date},
		DepartureTime: t.DepartureTime.Token(),
		SeatCount:     t.SeatCount,
		RosterSize:    t.RosterSize,
		FreeSeats:     occ.FreeSeats(),
		OverCapacity:  occ.OverCapacity(),
		Status:        t.Status,
		DriverID:      t.DriverID,
		VehicleID:     t.VehicleID,
		ConfirmedAt:   t.ConfirmedAt,
		Notes:         t.Notes,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func historyToResponse(entries []domain.StatusHistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntryResponse{
			ID:        e.ID,
			From:      e.From,
			To:        e.To,
			Note:      e.Note,
			Actor:     e.Actor,
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}
