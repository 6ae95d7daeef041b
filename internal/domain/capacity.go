package domain

// Occupancy pairs a trip's own seat count with its current roster size.
// It is never stored: callers count the roster from the ledger each time,
// so it cannot drift from the assignments it describes.
type Occupancy struct {
	SeatCount  int
	RosterSize int
}

// CanAssign reports whether one more assignment fits.
func (o Occupancy) CanAssign() bool {
	return o.RosterSize < o.SeatCount
}

// FreeSeats returns SeatCount - RosterSize. It goes negative when a vehicle
// downgrade reduced the seat count below an existing roster; it is not
// clamped so the discrepancy stays visible.
func (o Occupancy) FreeSeats() int {
	return o.SeatCount - o.RosterSize
}

// OverCapacity reports whether the roster exceeds the seat count.
func (o Occupancy) OverCapacity() bool {
	return o.FreeSeats() < 0
}

// OverCapacityPolicy decides what a vehicle change does when the new rated
// capacity is smaller than the current roster.
type OverCapacityPolicy string

const (
	// PolicyAllow applies the change and leaves the trip over capacity.
	PolicyAllow OverCapacityPolicy = "allow"
	// PolicyReject refuses the change with ErrCapacityExceeded.
	PolicyReject OverCapacityPolicy = "reject"
)
