package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pkordes/patient-transport/internal/domain"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable machine-readable code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorMapping pairs a domain sentinel with its HTTP status and code.
// Order matters only for errors wrapping more than one sentinel.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrValidation, http.StatusUnprocessableEntity, "validation_error"},
	{domain.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{domain.ErrDuplicateAssignment, http.StatusConflict, "duplicate_assignment"},
	{domain.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{domain.ErrTripClosed, http.StatusConflict, "trip_closed"},
}

// writeError maps err to a response. Domain errors become 4xx with the rule
// that failed; anything else is logged and hidden behind a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, errorBody(m.code, unwrapMessage(err, m.err)))
			return
		}
	}
	s.logger.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", "internal server error"))
}

// requestError reports a request rejected before reaching the service layer
// (e.g. missing or malformed body).
func requestError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request_too_large", "request body too large"))
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorBody("validation_error", err.Error()))
}

func errorBody(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// contextPrefix matches the "pkg.Type.Method: " prefixes layers add while
// wrapping an error.
var contextPrefix = regexp.MustCompile(`^(?:[A-Za-z]+\.)+[A-Za-z]+: `)

// unwrapMessage extracts the human-readable part from a wrapped sentinel error.
//
//	"service.TripService.Create: validation error: seat count must be at least 1" → "seat count must be at least 1"
//	"service.AssignmentService.Add: patient 7: not found"                         → "patient 7 not found"
//	"service.TripService.Get: not found"                                          → "not found"
func unwrapMessage(err, sentinel error) string {
	msg := err.Error()
	marker := sentinel.Error()
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return marker
	}
	if rule := strings.TrimPrefix(msg[i+len(marker):], ": "); rule != "" {
		return rule
	}
	subject := msg[:i]
	for contextPrefix.MatchString(subject) {
		subject = contextPrefix.ReplaceAllString(subject, "")
	}
	if subject = strings.TrimSuffix(subject, ": "); subject != "" {
		return subject + " " + marker
	}
	return marker
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // the status line is already sent; nothing useful to do on failure.
	json.NewEncoder(w).Encode(v)
}
