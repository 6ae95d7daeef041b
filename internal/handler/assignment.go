package handler

import (
	"net/http"
	"time"

	"github.com/pkordes/patient-transport/internal/domain"
)

// AssignmentRequest is the body of POST /trips/{ref}/assignments.
// An empty reason reaches the service so the rejection is counted.
type AssignmentRequest struct {
	PatientID   int64   `json:"patient_id" validate:"required,gt=0"`
	Reason      string  `json:"reason" validate:"max=500"`
	ConsultTime *string `json:"consult_time,omitempty" validate:"omitempty,timetoken"`
	PhysicianID *int64  `json:"physician_id,omitempty" validate:"omitempty,gt=0"`
	Notes       string  `json:"notes,omitempty" validate:"max=2000"`
}

// AssignmentUpdateRequest is the body of PUT /assignments/{id}.
type AssignmentUpdateRequest struct {
	Reason      string  `json:"reason" validate:"max=500"`
	ConsultTime *string `json:"consult_time,omitempty" validate:"omitempty,timetoken"`
	PhysicianID *int64  `json:"physician_id,omitempty" validate:"omitempty,gt=0"`
	Notes       string  `json:"notes,omitempty" validate:"max=2000"`
}

// AttendanceRequest is the body of PUT /assignments/{id}/attendance.
type AttendanceRequest struct {
	Attended *bool `json:"attended" validate:"required"`
}

// AssignmentResponse is an assignment as stored.
type AssignmentResponse struct {
	ID          int64     `json:"id"`
	TripID      int64     `json:"trip_id"`
	PatientID   int64     `json:"patient_id"`
	Reason      string    `json:"reason"`
	ConsultTime *string   `json:"consult_time,omitempty"`
	PhysicianID *int64    `json:"physician_id,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Attended    bool      `json:"attended"`
	CreatedAt   time.Time `json:"created_at"`
}

// PatientResponse carries the patient display fields of a roster entry.
type PatientResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	CPF   string `json:"cpf,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// PhysicianResponse carries the physician display fields of a roster entry.
type PhysicianResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CRM       string `json:"crm,omitempty"`
	Specialty string `json:"specialty,omitempty"`
}

// RosterEntryResponse is an assignment with directory display fields.
type RosterEntryResponse struct {
	AssignmentResponse
	Patient   PatientResponse    `json:"patient"`
	Physician *PhysicianResponse `json:"physician,omitempty"`
}

// AddAssignment handles POST /trips/{ref}/assignments.
func (s *Server) AddAssignment(w http.ResponseWriter, r *http.Request) {
	ref, err := tripRef(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body AssignmentRequest
	if err := s.decodeJSON(r, &body, false); err != nil {
		requestError(w, err)
		return
	}
	consult, err := parseTimeToken(body.ConsultTime)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.assignments.Add(r.Context(), ref, domain.Assignment{
		PatientID:   body.PatientID,
		Reason:      body.Reason,
		ConsultTime: consult,
		PhysicianID: body.PhysicianID,
		Notes:       body.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, assignmentToResponse(created))
}

// ListAssignments handles GET /trips/{ref}/assignments.
// Entries are ordered by patient name.
func (s *Server) ListAssignments(w http.ResponseWriter, r *http.Request) {
	ref, err := tripRef(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	roster, err := s.assignments.List(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rosterToResponse(roster))
}

// UpdateAssignment handles PUT /assignments/{id}.
func (s *Server) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body AssignmentUpdateRequest
	if err := s.decodeJSON(r, &body, false); err != nil {
		requestError(w, err)
		return
	}
	consult, err := parseTimeToken(body.ConsultTime)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.assignments.Update(r.Context(), id, domain.AssignmentUpdate{
		Reason:      body.Reason,
		ConsultTime: consult,
		PhysicianID: body.PhysicianID,
		Notes:       body.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentToResponse(updated))
}

// RemoveAssignment handles DELETE /assignments/{id}.
func (s *Server) RemoveAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.assignments.Remove(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAttendance handles PUT /assignments/{id}/attendance.
func (s *Server) SetAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body AttendanceRequest
	if err := s.decodeJSON(r, &body, false); err != nil {
		requestError(w, err)
		return
	}
	updated, err := s.assignments.SetAttendance(r.Context(), id, *body.Attended)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentToResponse(updated))
}

// --- mapping helpers --------------------------------------------------------

func assignmentToResponse(a domain.Assignment) AssignmentResponse {
	resp := AssignmentResponse{
		ID:          a.ID,
		TripID:      a.TripID,
		PatientID:   a.PatientID,
		Reason:      a.Reason,
		PhysicianID: a.PhysicianID,
		Notes:       a.Notes,
		Attended:    a.Attended,
		CreatedAt:   a.CreatedAt,
	}
	if a.ConsultTime != nil {
		tok := a.ConsultTime.Token()
		resp.ConsultTime = &tok
	}
	return resp
}

func rosterToResponse(roster []domain.RosterEntry) []RosterEntryResponse {
	out := make([]RosterEntryResponse, len(roster))
	for i, e := range roster {
		out[i] = RosterEntryResponse{
			AssignmentResponse: assignmentToResponse(e.Assignment),
			Patient: PatientResponse{
				ID:    e.Patient.ID,
				Name:  e.Patient.Name,
				CPF:   e.Patient.CPF,
				Phone: e.Patient.Phone,
			},
		}
		if e.Physician != nil {
			out[i].Physician = &PhysicianResponse{
				ID:        e.Physician.ID,
				Name:      e.Physician.Name,
				CRM:       e.Physician.CRM,
				Specialty: e.Physician.Specialty,
			}
		}
	}
	return out
}
