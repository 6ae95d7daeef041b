package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/patient-transport/internal/domain"
)

// TripRepo defines the persistence operations for Trips.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the service to be unit-tested with a fake.
type TripRepo interface {
	// Create inserts a new trip and returns the persisted record with the
	// DB-generated id, code, created_at and updated_at populated.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// Get retrieves a single trip by id or code.
	// Returns domain.ErrNotFound if no trip matches.
	Get(ctx context.Context, ref domain.TripRef) (domain.Trip, error)

	// GetForUpdate is Get plus a row lock held until the surrounding
	// transaction ends. Every roster or status change takes this lock first.
	GetForUpdate(ctx context.Context, ref domain.TripRef) (domain.Trip, error)

	// ListPaged returns one page of trips, most recent departure first,
	// with the roster size of each, and the total number of matching trips.
	ListPaged(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.TripSummary, int64, error)

	// Update overwrites the mutable fields of an existing trip and returns the
	// updated record. Returns domain.ErrNotFound if no trip with that ID exists.
	Update(ctx context.Context, trip domain.Trip) (domain.Trip, error)
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `t.id, t.code, t.unit_id, t.destination_name, t.destination_address,
	t.trip_date, t.departure_time, t.seat_count, t.status, t.driver_id, t.vehicle_id,
	t.confirmed_at, t.notes, t.created_at, t.updated_at`

// Create inserts a new trip row. The code column is generated from the id
// by the database, so it is only known after the insert returns.
func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		INSERT INTO trips AS t (unit_id, destination_name, destination_address, trip_date,
		                        departure_time, seat_count, status, driver_id, vehicle_id, notes)
		VALUES (@unit_id, @destination_name, @destination_address, @trip_date,
		        @departure_time, @seat_count, @status, @driver_id, @vehicle_id, @notes)
		RETURNING ` + tripColumns

	row := r.db.QueryRow(ctx, q, tripArgs(trip))
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return result, nil
}

// Get retrieves a trip by id or code.
func (r *pgTripRepo) Get(ctx context.Context, ref domain.TripRef) (domain.Trip, error) {
	result, err := r.get(ctx, ref, "")
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Get: %w", err)
	}
	return result, nil
}

// GetForUpdate retrieves a trip by id or code and locks its row.
func (r *pgTripRepo) GetForUpdate(ctx context.Context, ref domain.TripRef) (domain.Trip, error) {
	result, err := r.get(ctx, ref, "FOR UPDATE")
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetForUpdate: %w", err)
	}
	return result, nil
}

func (r *pgTripRepo) get(ctx context.Context, ref domain.TripRef, lock string) (domain.Trip, error) {
	where, args := refClause(ref)
	q := `SELECT ` + tripColumns + ` FROM trips t WHERE ` + where + ` ` + lock
	return scanTrip(r.db.QueryRow(ctx, q, args))
}

// refClause selects by numeric id when the ref carries one, by code otherwise.
func refClause(ref domain.TripRef) (string, pgx.NamedArgs) {
	if ref.Code != "" {
		return "t.code = @code", pgx.NamedArgs{"code": ref.Code}
	}
	return "t.id = @id", pgx.NamedArgs{"id": ref.ID}
}

// ListPaged returns one page of trips with their roster sizes.
func (r *pgTripRepo) ListPaged(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.TripSummary, int64, error) {
	const countQ = `
		SELECT count(*)
		FROM trips t
		WHERE (@status::text IS NULL OR t.status = @status::text)`

	const listQ = `
		SELECT ` + tripColumns + `,
		       (SELECT count(*) FROM trip_assignments a WHERE a.trip_id = t.id) AS roster_size
		FROM trips t
		WHERE (@status::text IS NULL OR t.status = @status::text)
		ORDER BY t.trip_date DESC, t.departure_time DESC, t.id DESC
		LIMIT @limit OFFSET @offset`

	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	var total int64
	if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"status": status}).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: count: %w", err)
	}

	rows, err := r.db.Query(ctx, listQ, pgx.NamedArgs{
		"status": status,
		"limit":  p.Limit,
		"offset": p.Offset(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: %w", err)
	}
	defer rows.Close()

	trips := []domain.TripSummary{}
	for rows.Next() {
		var s domain.TripSummary
		s.Trip, err = scanTripWith(rows, &s.RosterSize)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: scan: %w", err)
		}
		trips = append(trips, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: rows: %w", err)
	}
	return trips, total, nil
}

// Update overwrites every mutable column of a trip.
func (r *pgTripRepo) Update(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		UPDATE trips AS t
		SET unit_id             = @unit_id,
		    destination_name    = @destination_name,
		    destination_address = @destination_address,
		    trip_date           = @trip_date,
		    departure_time      = @departure_time,
		    seat_count          = @seat_count,
		    status              = @status,
		    driver_id           = @driver_id,
		    vehicle_id          = @vehicle_id,
		    confirmed_at        = @confirmed_at,
		    notes               = @notes,
		    updated_at          = now()
		WHERE t.id = @id
		RETURNING ` + tripColumns

	args := tripArgs(trip)
	args["id"] = trip.ID
	args["confirmed_at"] = trip.ConfirmedAt

	result, err := scanTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: %w", err)
	}
	return result, nil
}

// tripArgs maps the writable fields of a trip to named query arguments.
// The destination variant decides which destination columns are NULL.
func tripArgs(trip domain.Trip) pgx.NamedArgs {
	args := pgx.NamedArgs{
		"unit_id":             nil,
		"destination_name":    nil,
		"destination_address": nil,
		"trip_date":           pgtype.Date{Time: trip.Date, Valid: true},
		"departure_time":      timeOfDayArg(trip.DepartureTime),
		"seat_count":          trip.SeatCount,
		"status":              string(trip.Status),
		"driver_id":           trip.DriverID,
		"vehicle_id":          trip.VehicleID,
		"notes":               trip.Notes,
	}
	switch d := trip.Destination.(type) {
	case domain.UnitDestination:
		args["unit_id"] = d.UnitID
	case domain.FreeTextDestination:
		args["destination_name"] = d.Name
		args["destination_address"] = d.Address
	}
	return args
}

func timeOfDayArg(t domain.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Duration().Microseconds(), Valid: true}
}

func scanTrip(s scanner) (domain.Trip, error) {
	return scanTripWith(s)
}

// scanTripWith maps a trip row into a domain.Trip. Any extra scan targets
// receive the columns selected after the trip columns.
func scanTripWith(s scanner, extra ...any) (domain.Trip, error) {
	var (
		t           domain.Trip
		unitID      *int64
		destName    *string
		destAddress *string
		date        pgtype.Date
		departure   pgtype.Time
		status      string
		confirmedAt *time.Time
	)

	dest := []any{
		&t.ID, &t.Code, &unitID, &destName, &destAddress,
		&date, &departure, &t.SeatCount, &status, &t.DriverID, &t.VehicleID,
		&confirmedAt, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	st, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("trip %d: %w", t.ID, err)
	}
	t.Status = st
	t.Date = date.Time
	t.DepartureTime = domain.TimeOfDayFromDuration(time.Duration(departure.Microseconds) * time.Microsecond)
	t.ConfirmedAt = confirmedAt

	switch {
	case unitID != nil:
		t.Destination = domain.UnitDestination{UnitID: *unitID}
	case destName != nil:
		fd := domain.FreeTextDestination{Name: *destName}
		if destAddress != nil {
			fd.Address = *destAddress
		}
		t.Destination = fd
	}

	return t, nil
}
