package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/patient-transport/internal/domain"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// AssignmentRepo defines the persistence operations for the assignment ledger.
type AssignmentRepo interface {
	// Create inserts a new assignment and returns the persisted record.
	// Returns domain.ErrDuplicateAssignment if the patient is already on the trip.
	Create(ctx context.Context, a domain.Assignment) (domain.Assignment, error)

	// GetByID retrieves a single assignment.
	// Returns domain.ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id int64) (domain.Assignment, error)

	// ListByTripID returns all assignments of a trip ordered by id.
	// Ordering by patient name is the service's job, since names live in the directory.
	ListByTripID(ctx context.Context, tripID int64) ([]domain.Assignment, error)

	// CountByTripID returns the roster size of a trip.
	CountByTripID(ctx context.Context, tripID int64) (int, error)

	// Exists reports whether the patient is already on the trip.
	Exists(ctx context.Context, tripID, patientID int64) (bool, error)

	// Update overwrites the visit metadata of an assignment.
	// Returns domain.ErrNotFound if it does not exist.
	Update(ctx context.Context, a domain.Assignment) (domain.Assignment, error)

	// SetAttendance stores the attendance flag.
	// Returns domain.ErrNotFound if the assignment does not exist.
	SetAttendance(ctx context.Context, id int64, attended bool) (domain.Assignment, error)

	// Delete removes an assignment. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id int64) error
}

// pgAssignmentRepo is the Postgres implementation of AssignmentRepo.
type pgAssignmentRepo struct {
	db db
}

// NewAssignmentRepo constructs an AssignmentRepo backed by the provided db connection.
func NewAssignmentRepo(db db) AssignmentRepo {
	return &pgAssignmentRepo{db: db}
}

const assignmentColumns = `id, trip_id, patient_id, reason, consult_time, physician_id,
	notes, attended, created_at, updated_at`

func (r *pgAssignmentRepo) Create(ctx context.Context, a domain.Assignment) (domain.Assignment, error) {
	const q = `
		INSERT INTO trip_assignments (trip_id, patient_id, reason, consult_time, physician_id, notes, attended)
		VALUES (@trip_id, @patient_id, @reason, @consult_time, @physician_id, @notes, @attended)
		RETURNING ` + assignmentColumns

	args := pgx.NamedArgs{
		"trip_id":      a.TripID,
		"patient_id":   a.PatientID,
		"reason":       a.Reason,
		"consult_time": consultTimeArg(a.ConsultTime),
		"physician_id": a.PhysicianID,
		"notes":        a.Notes,
		"attended":     a.Attended,
	}

	result, err := scanAssignment(r.db.QueryRow(ctx, q, args))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Assignment{}, fmt.Errorf("repo.AssignmentRepo.Create: %w: patient %d already on trip %d",
				domain.ErrDuplicateAssignment, a.PatientID, a.TripID)
		}
		return domain.Assignment{}, fmt.Errorf("repo.AssignmentRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgAssignmentRepo) GetByID(ctx context.Context, id int64) (domain.Assignment, error) {
	const q = `SELECT ` + assignmentColumns + ` FROM trip_assignments WHERE id = @id`

	result, err := scanAssignment(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("repo.AssignmentRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgAssignmentRepo) ListByTripID(ctx context.Context, tripID int64) ([]domain.Assignment, error) {
	const q = `
		SELECT ` + assignmentColumns + `
		FROM trip_assignments
		WHERE trip_id = @trip_id
		ORDER BY id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.AssignmentRepo.ListByTripID: %w", err)
	}
	defer rows.Close()

	out := []domain.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.AssignmentRepo.ListByTripID: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.AssignmentRepo.ListByTripID: rows: %w", err)
	}
	return out, nil
}

func (r *pgAssignmentRepo) CountByTripID(ctx context.Context, tripID int64) (int, error) {
	const q = `SELECT count(*) FROM trip_assignments WHERE trip_id = @trip_id`

	var n int
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID}).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo.AssignmentRepo.CountByTripID: %w", err)
	}
	return n, nil
}

func (r *pgAssignmentRepo) Exists(ctx context.Context, tripID, patientID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM trip_assignments
			WHERE trip_id = @trip_id AND patient_id = @patient_id
		)`

	var ok bool
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID, "patient_id": patientID}).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("repo.AssignmentRepo.Exists: %w", err)
	}
	return ok, nil
}

func (r *pgAssignmentRepo) Update(ctx context.Context, a domain.Assignment) (domain.Assignment, error) {
	const q = `
		UPDATE trip_assignments
		SET reason       = @reason,
		    consult_time = @consult_time,
		    physician_id = @physician_id,
		    notes        = @notes,
		    updated_at   = now()
		WHERE id = @id
		RETURNING ` + assignmentColumns

	args := pgx.NamedArgs{
		"id":           a.ID,
		"reason":       a.Reason,
		"consult_time": consultTimeArg(a.ConsultTime),
		"physician_id": a.PhysicianID,
		"notes":        a.Notes,
	}

	result, err := scanAssignment(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("repo.AssignmentRepo.Update: %w", err)
	}
	return result, nil
}

func (r *pgAssignmentRepo) SetAttendance(ctx context.Context, id int64, attended bool) (domain.Assignment, error) {
	const q = `
		UPDATE trip_assignments
		SET attended = @attended, updated_at = now()
		WHERE id = @id
		RETURNING ` + assignmentColumns

	result, err := scanAssignment(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "attended": attended}))
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("repo.AssignmentRepo.SetAttendance: %w", err)
	}
	return result, nil
}

func (r *pgAssignmentRepo) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM trip_assignments WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.AssignmentRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.AssignmentRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// consultTimeArg maps an optional time of day to a nullable TIME value.
func consultTimeArg(t *domain.TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return timeOfDayArg(*t)
}

// scanAssignment maps a single database row into a domain.Assignment.
func scanAssignment(s scanner) (domain.Assignment, error) {
	var (
		a       domain.Assignment
		consult pgtype.Time
	)
	err := s.Scan(&a.ID, &a.TripID, &a.PatientID, &a.Reason, &consult, &a.PhysicianID,
		&a.Notes, &a.Attended, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Assignment{}, domain.ErrNotFound
		}
		return domain.Assignment{}, err
	}
	if consult.Valid {
		t := domain.TimeOfDayFromDuration(time.Duration(consult.Microseconds) * time.Microsecond)
		a.ConsultTime = &t
	}
	return a, nil
}
