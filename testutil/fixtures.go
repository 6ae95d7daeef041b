package testutil

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InsertPatient registers a patient in the directory and returns its id.
func InsertPatient(t *testing.T, q Querier, name string) int64 {
	t.Helper()
	return insertID(t, q, `INSERT INTO patients (name, cpf) VALUES (@name, '000.000.000-00') RETURNING id`,
		pgx.NamedArgs{"name": name})
}

// InsertPhysician registers a physician and returns its id.
func InsertPhysician(t *testing.T, q Querier, name string) int64 {
	t.Helper()
	return insertID(t, q, `INSERT INTO physicians (name, crm, specialty) VALUES (@name, 'CRM-1234', 'Cardiologia') RETURNING id`,
		pgx.NamedArgs{"name": name})
}

// InsertHealthUnit registers a health unit and returns its id.
func InsertHealthUnit(t *testing.T, q Querier, name string) int64 {
	t.Helper()
	return insertID(t, q, `INSERT INTO health_units (name, address, city) VALUES (@name, 'Av. Central, 100', 'Recife') RETURNING id`,
		pgx.NamedArgs{"name": name})
}

// InsertDriver registers a driver and returns its id.
func InsertDriver(t *testing.T, q Querier, name string) int64 {
	t.Helper()
	return insertID(t, q, `INSERT INTO drivers (name, license, phone) VALUES (@name, 'CNH-99', '81 99999-0000') RETURNING id`,
		pgx.NamedArgs{"name": name})
}

// InsertVehicle registers a vehicle with the given plate and rated capacity
// (nil for none) and returns its id.
func InsertVehicle(t *testing.T, q Querier, plate string, capacity *int) int64 {
	t.Helper()
	return insertID(t, q, `INSERT INTO vehicles (plate, model, capacity) VALUES (@plate, 'Van', @capacity) RETURNING id`,
		pgx.NamedArgs{"plate": plate, "capacity": capacity})
}

func insertID(t *testing.T, q Querier, sql string, args pgx.NamedArgs) int64 {
	t.Helper()
	var id int64
	if err := q.QueryRow(context.Background(), sql, args).Scan(&id); err != nil {
		t.Fatalf("testutil: insert fixture: %v", err)
	}
	return id
}
