package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var numericRef = regexp.MustCompile(`^\d+$`)

// TripRef addresses a trip either by numeric id or by its human code.
// Exactly one of ID and Code is set.
type TripRef struct {
	ID   int64
	Code string
}

// ParseTripRef resolves an external identifier. Anything matching ^\d+$ is a
// numeric id; everything else is a code. Documents and UI links use both
// forms interchangeably.
func ParseTripRef(s string) (TripRef, error) {
	if numericRef.MatchString(s) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return TripRef{}, fmt.Errorf("%w: trip id %q out of range", ErrValidation, s)
		}
		return TripRef{ID: id}, nil
	}
	if strings.TrimSpace(s) == "" {
		return TripRef{}, fmt.Errorf("%w: trip identifier is required", ErrValidation)
	}
	return TripRef{Code: s}, nil
}

// IDRef builds a TripRef for a known numeric id.
func IDRef(id int64) TripRef {
	return TripRef{ID: id}
}

func (r TripRef) String() string {
	if r.Code != "" {
		return r.Code
	}
	return strconv.FormatInt(r.ID, 10)
}
