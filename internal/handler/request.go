package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pkordes/patient-transport/internal/domain"
)

// newValidator returns a validator that reports fields by their JSON name
// and understands the "timetoken" tag for "10h00" time strings.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	//nolint:errcheck // registration only fails for an empty tag name.
	v.RegisterValidation("timetoken", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	return v
}

// decodeJSON reads the request body into dst and validates it.
// An empty body is an error unless allowEmpty is set.
func (s *Server) decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return err
		case errors.Is(err, io.EOF):
			if !allowEmpty {
				return errors.New("request body is required")
			}
		default:
			return fmt.Errorf("invalid request body: %w", err)
		}
	}
	if err := s.validate.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}

// validationMessage turns validator errors into one readable sentence.
func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace is "requestType.json.path"; drop the type name.
		_, field, found := strings.Cut(fe.Namespace(), ".")
		if !found {
			field = fe.Field()
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "timetoken":
			msgs = append(msgs, field+" must be a time like 10h00")
		case "gt", "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, minBound(fe)))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func minBound(fe validator.FieldError) string {
	if fe.Tag() == "gt" {
		n, err := strconv.Atoi(fe.Param())
		if err == nil {
			return strconv.Itoa(n + 1)
		}
	}
	return fe.Param()
}

// tripRef resolves the {ref} URL parameter: digits address the numeric id,
// anything else the trip code.
func tripRef(r *http.Request) (domain.TripRef, error) {
	return domain.ParseTripRef(chi.URLParam(r, "ref"))
}

// idParam parses the {id} URL parameter as a positive integer.
func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid id %q", domain.ErrValidation, raw)
	}
	return id, nil
}

// parseTimeToken converts an optional wire token into a TimeOfDay.
func parseTimeToken(s *string) (*domain.TimeOfDay, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := domain.ParseTimeOfDay(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
