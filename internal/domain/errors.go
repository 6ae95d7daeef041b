package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// trip, assignment, or directory entry does not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. empty visit reason, seat count below one).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrCapacityExceeded is returned when an assignment is attempted on a trip
// whose roster already fills every seat.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrDuplicateAssignment is returned when a patient is already on the trip.
var ErrDuplicateAssignment = errors.New("duplicate assignment")

// ErrInvalidStateTransition is returned when a status change is not allowed
// from the trip's current status.
var ErrInvalidStateTransition = errors.New("invalid state transition")

// ErrTripClosed is returned when a trip no longer accepts roster changes:
// it was cancelled, or it has departed and only attendance may change.
var ErrTripClosed = errors.New("trip closed")
