// Package repo contains all database access logic for the patient transport API.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner is a db that can open a transaction. On a pgx.Tx, Begin creates
// a savepoint, so a Store built on a test transaction still nests correctly.
type beginner interface {
	db
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Tx groups the repos that share one unit of work.
type Tx interface {
	Trips() TripRepo
	Assignments() AssignmentRepo
	History() HistoryRepo
}

// Store is the entry point the service layer uses for trip state.
// Reads outside WithinTx see committed data; every mutation of a trip runs
// inside WithinTx so the capacity check and the write commit together.
type Store interface {
	Tx

	// WithinTx runs fn in a transaction. fn's error rolls everything back and
	// is returned unchanged; a nil error commits.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type pgStore struct {
	db beginner
}

// NewStore constructs a Store backed by the provided connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewStore(db beginner) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Trips() TripRepo             { return NewTripRepo(s.db) }
func (s *pgStore) Assignments() AssignmentRepo { return NewAssignmentRepo(s.db) }
func (s *pgStore) History() HistoryRepo        { return NewHistoryRepo(s.db) }

func (s *pgStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.Store.WithinTx: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after Commit.

	if err := fn(&pgStore{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo.Store.WithinTx: commit: %w", err)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}
