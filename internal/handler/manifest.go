package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/patient-transport/internal/domain"
)

// ManifestResponse is the JSON form of a trip manifest.
type ManifestResponse struct {
	Trip        TripResponse           `json:"trip"`
	Destination ManifestDestination    `json:"destination"`
	Driver      *DriverResponse        `json:"driver,omitempty"`
	Vehicle     *VehicleResponse       `json:"vehicle,omitempty"`
	Passengers  []RosterEntryResponse  `json:"passengers"`
	History     []HistoryEntryResponse `json:"history"`
	Summary     ManifestSummary        `json:"summary"`
}

// ManifestDestination is the rendered destination; unit_id is absent for
// free-text places.
type ManifestDestination struct {
	UnitID  *int64 `json:"unit_id,omitempty"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// DriverResponse carries the driver display fields.
type DriverResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	License string `json:"license,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// VehicleResponse carries the vehicle display fields.
type VehicleResponse struct {
	ID       int64  `json:"id"`
	Plate    string `json:"plate"`
	Model    string `json:"model,omitempty"`
	Capacity *int   `json:"capacity,omitempty"`
}

// ManifestSummary holds the manifest counts. free_seats is negative when
// the trip is over capacity.
type ManifestSummary struct {
	SeatCount    int  `json:"seat_count"`
	RosterSize   int  `json:"roster_size"`
	FreeSeats    int  `json:"free_seats"`
	OverCapacity bool `json:"over_capacity"`
	Attended     int  `json:"attended"`
	Absent       int  `json:"absent"`
}

// csvHeaders defines the column names written as the first row of a CSV manifest.
var csvHeaders = []string{
	"trip_code", "date", "departure_time", "destination", "status",
	"patient_name", "patient_cpf", "reason", "consult_time", "physician",
	"attended", "notes",
}

// GetManifest handles GET /trips/{ref}/manifest.
// Use ?format=csv to receive one CSV line per passenger; default is JSON.
func (s *Server) GetManifest(w http.ResponseWriter, r *http.Request) {
	ref, err := tripRef(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var format *string
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		requestError(w, err)
		return
	}

	m, err := s.manifests.Build(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if format != nil && *format == "csv" {
		writeManifestCSV(w, m)
		return
	}
	writeJSON(w, http.StatusOK, manifestToResponse(m))
}

// writeManifestCSV encodes the passenger list as CSV, trip columns repeated
// on every line so each row stands alone in a spreadsheet.
func writeManifestCSV(w http.ResponseWriter, m domain.Manifest) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer.Write never returns an error.
	cw.Write(csvHeaders)
	for _, p := range m.Passengers {
		//nolint:errcheck
		cw.Write(passengerToCSVRecord(m, p))
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="manifest-`+m.Trip.Code+`.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck
	w.Write(buf.Bytes())
}

func passengerToCSVRecord(m domain.Manifest, p domain.RosterEntry) []string {
	var consult, physician string
	if p.ConsultTime != nil {
		consult = p.ConsultTime.Token()
	}
	if p.Physician != nil {
		physician = p.Physician.Name
	}
	return []string{
		m.Trip.Code,
		m.Trip.Date.Format(openapi_types.DateFormat),
		m.Trip.DepartureTime.Token(),
		m.Destination.Name,
		string(m.Trip.Status),
		p.Patient.Name,
		p.Patient.CPF,
		p.Reason,
		consult,
		physician,
		strconv.FormatBool(p.Attended),
		p.Notes,
	}
}

func manifestToResponse(m domain.Manifest) ManifestResponse {
	resp := ManifestResponse{
		Trip: tripToResponse(domain.TripSummary{Trip: m.Trip, RosterSize: m.Summary.RosterSize}),
		Destination: ManifestDestination{
			UnitID:  m.Destination.UnitID,
			Name:    m.Destination.Name,
			Address: m.Destination.Address,
		},
		Passengers: rosterToResponse(m.Passengers),
		History:    historyToResponse(m.History),
		Summary:    ManifestSummary(m.Summary),
	}
	if m.Driver != nil {
		resp.Driver = &DriverResponse{ID: m.Driver.ID, Name: m.Driver.Name, License: m.Driver.License, Phone: m.Driver.Phone}
	}
	if m.Vehicle != nil {
		resp.Vehicle = &VehicleResponse{ID: m.Vehicle.ID, Plate: m.Vehicle.Plate, Model: m.Vehicle.Model, Capacity: m.Vehicle.Capacity}
	}
	return resp
}
