package domain

import "fmt"

// Status is the lifecycle state of a trip. The string values are stable and
// exposed to every consumer (UI badges, manifests).
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus converts a stored or user-supplied value into a Status.
// Unknown values are an error, never a silent default.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
}

// Terminal reports whether no transition is defined away from s.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// CheckTransition returns nil when a trip may move from one status to another.
//
//	pending   -> confirmed  allowed
//	pending   -> cancelled  allowed
//	confirmed -> *          rejected
//	cancelled -> *          rejected
func CheckTransition(from, to Status) error {
	if from == StatusPending && (to == StatusConfirmed || to == StatusCancelled) {
		return nil
	}
	return fmt.Errorf("%w: cannot move trip from %s to %s", ErrInvalidStateTransition, from, to)
}
