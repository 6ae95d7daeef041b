package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/patient-transport/internal/domain"
)

// DirectoryRepo is read-only access to the registry of drivers, vehicles,
// health units, physicians and patients. The directory tables are maintained
// by the registration screens; nothing in this service writes to them.
type DirectoryRepo struct {
	db db
}

// NewDirectoryRepo constructs a DirectoryRepo backed by the provided db connection.
func NewDirectoryRepo(db db) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

// FindDriver returns a driver by id, or domain.ErrNotFound.
func (r *DirectoryRepo) FindDriver(ctx context.Context, id int64) (domain.Driver, error) {
	const q = `SELECT id, name, license, phone FROM drivers WHERE id = @id`

	var d domain.Driver
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(&d.ID, &d.Name, &d.License, &d.Phone)
	if err != nil {
		return domain.Driver{}, fmt.Errorf("repo.DirectoryRepo.FindDriver: %w", notFound(err))
	}
	return d, nil
}

// FindVehicle returns a vehicle by id, or domain.ErrNotFound.
func (r *DirectoryRepo) FindVehicle(ctx context.Context, id int64) (domain.Vehicle, error) {
	const q = `SELECT id, plate, model, capacity FROM vehicles WHERE id = @id`

	var v domain.Vehicle
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(&v.ID, &v.Plate, &v.Model, &v.Capacity)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("repo.DirectoryRepo.FindVehicle: %w", notFound(err))
	}
	return v, nil
}

// FindHealthUnit returns a health unit by id, or domain.ErrNotFound.
func (r *DirectoryRepo) FindHealthUnit(ctx context.Context, id int64) (domain.HealthUnit, error) {
	const q = `SELECT id, name, address, city FROM health_units WHERE id = @id`

	var u domain.HealthUnit
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(&u.ID, &u.Name, &u.Address, &u.City)
	if err != nil {
		return domain.HealthUnit{}, fmt.Errorf("repo.DirectoryRepo.FindHealthUnit: %w", notFound(err))
	}
	return u, nil
}

// FindPhysician returns a physician by id, or domain.ErrNotFound.
func (r *DirectoryRepo) FindPhysician(ctx context.Context, id int64) (domain.Physician, error) {
	const q = `SELECT id, name, crm, specialty FROM physicians WHERE id = @id`

	var p domain.Physician
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(&p.ID, &p.Name, &p.CRM, &p.Specialty)
	if err != nil {
		return domain.Physician{}, fmt.Errorf("repo.DirectoryRepo.FindPhysician: %w", notFound(err))
	}
	return p, nil
}

// FindPatient returns a patient by id, or domain.ErrNotFound.
func (r *DirectoryRepo) FindPatient(ctx context.Context, id int64) (domain.Patient, error) {
	const q = `SELECT id, name, cpf, phone, address FROM patients WHERE id = @id`

	var p domain.Patient
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(&p.ID, &p.Name, &p.CPF, &p.Phone, &p.Address)
	if err != nil {
		return domain.Patient{}, fmt.Errorf("repo.DirectoryRepo.FindPatient: %w", notFound(err))
	}
	return p, nil
}

// notFound translates pgx.ErrNoRows into domain.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
