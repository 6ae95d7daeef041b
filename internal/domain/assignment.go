package domain

import "time"

// Assignment links one patient to one trip with visit-specific metadata.
// A patient appears at most once per trip.
type Assignment struct {
	ID          int64
	TripID      int64
	PatientID   int64
	Reason      string
	ConsultTime *TimeOfDay
	PhysicianID *int64
	Notes       string
	Attended    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AssignmentUpdate carries the visit metadata an administrator may edit
// before departure. Attendance has its own operation.
type AssignmentUpdate struct {
	Reason      string
	ConsultTime *TimeOfDay
	PhysicianID *int64
	Notes       string
}

// RosterEntry is an assignment enriched with directory display fields.
type RosterEntry struct {
	Assignment
	Patient   Patient
	Physician *Physician
}
