package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/patient-transport/internal/domain"
)

// HistoryRepo defines the persistence operations for trip status history.
// The table is insert-only: there is deliberately no update or delete.
type HistoryRepo interface {
	// Append inserts one history entry and returns it with id and timestamp set.
	Append(ctx context.Context, e domain.StatusHistoryEntry) (domain.StatusHistoryEntry, error)

	// ListByTripID returns a trip's history, oldest first.
	ListByTripID(ctx context.Context, tripID int64) ([]domain.StatusHistoryEntry, error)
}

type pgHistoryRepo struct {
	db db
}

// NewHistoryRepo constructs a HistoryRepo backed by the provided db connection.
func NewHistoryRepo(db db) HistoryRepo {
	return &pgHistoryRepo{db: db}
}

func (r *pgHistoryRepo) Append(ctx context.Context, e domain.StatusHistoryEntry) (domain.StatusHistoryEntry, error) {
	const q = `
		INSERT INTO trip_status_history (id, trip_id, from_status, to_status, note, actor)
		VALUES (@id, @trip_id, @from_status, @to_status, @note, @actor)
		RETURNING id, trip_id, from_status, to_status, note, actor, created_at`

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	args := pgx.NamedArgs{
		"id":          e.ID,
		"trip_id":     e.TripID,
		"from_status": string(e.From),
		"to_status":   string(e.To),
		"note":        e.Note,
		"actor":       e.Actor,
	}

	result, err := scanHistory(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.StatusHistoryEntry{}, fmt.Errorf("repo.HistoryRepo.Append: %w", err)
	}
	return result, nil
}

func (r *pgHistoryRepo) ListByTripID(ctx context.Context, tripID int64) ([]domain.StatusHistoryEntry, error) {
	const q = `
		SELECT id, trip_id, from_status, to_status, note, actor, created_at
		FROM trip_status_history
		WHERE trip_id = @trip_id
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.HistoryRepo.ListByTripID: %w", err)
	}
	defer rows.Close()

	out := []domain.StatusHistoryEntry{}
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.HistoryRepo.ListByTripID: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.HistoryRepo.ListByTripID: rows: %w", err)
	}
	return out, nil
}

func scanHistory(s scanner) (domain.StatusHistoryEntry, error) {
	var (
		e        domain.StatusHistoryEntry
		id       pgtype.UUID
		from, to string
	)
	if err := s.Scan(&id, &e.TripID, &from, &to, &e.Note, &e.Actor, &e.CreatedAt); err != nil {
		return domain.StatusHistoryEntry{}, err
	}
	e.ID = uuid.UUID(id.Bytes)

	var err error
	if e.From, err = domain.ParseStatus(from); err != nil {
		return domain.StatusHistoryEntry{}, err
	}
	if e.To, err = domain.ParseStatus(to); err != nil {
		return domain.StatusHistoryEntry{}, err
	}
	return e, nil
}
