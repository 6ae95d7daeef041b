package domain

// Manifest is the read-only projection of a trip consumed by document
// generation and list screens: the trip, its logistics, the ordered roster
// and the summary counts, all read at the same instant.
type Manifest struct {
	Trip        Trip
	Destination DestinationView
	Driver      *Driver
	Vehicle     *Vehicle
	Passengers  []RosterEntry
	History     []StatusHistoryEntry
	Summary     ManifestSummary
}

// DestinationView is the rendered destination, whichever variant the trip holds.
// UnitID is nil for free-text destinations.
type DestinationView struct {
	UnitID  *int64
	Name    string
	Address string
}

// ManifestSummary holds the aggregate counts of a manifest.
// FreeSeats is negative when the trip is over capacity.
type ManifestSummary struct {
	SeatCount    int
	RosterSize   int
	FreeSeats    int
	OverCapacity bool
	Attended     int
	Absent       int
}

// Summarize computes the summary counts for a trip and its roster.
func Summarize(seatCount int, roster []RosterEntry) ManifestSummary {
	occ := Occupancy{SeatCount: seatCount, RosterSize: len(roster)}
	s := ManifestSummary{
		SeatCount:    seatCount,
		RosterSize:   occ.RosterSize,
		FreeSeats:    occ.FreeSeats(),
		OverCapacity: occ.OverCapacity(),
	}
	for _, e := range roster {
		if e.Attended {
			s.Attended++
		}
	}
	s.Absent = s.RosterSize - s.Attended
	return s
}
