// Package registrystore implements the Registry's read-side entity store:
// devices, patients, and threshold profiles, backed by PostgreSQL via
// database/sql, lib/pq, and golang-migrate embedded migrations, with a
// device-overrides-patient threshold fallback rule.
package registrystore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned by every lookup method when the requested entity
// does not exist.
var ErrNotFound = fmt.Errorf("registrystore: not found")

// Store is the Registry's PostgreSQL-backed entity store.
type Store struct {
	db *sql.DB
}

// Open connects to databaseURL, configures the connection pool, and applies
// any pending migrations.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("registrystore: open: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("registrystore: ping: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("registrystore: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDevice returns the device with deviceID, or ErrNotFound.
func (s *Store) GetDevice(ctx context.Context, deviceID string) (*pipelineevents.Device, error) {
	return queryGetDevice(ctx, s.db, deviceID)
}

// GetPatient returns the patient with patientID, or ErrNotFound.
func (s *Store) GetPatient(ctx context.Context, patientID string) (*pipelineevents.Patient, error) {
	return queryGetPatient(ctx, s.db, patientID)
}

// GetThresholdProfile resolves the effective threshold profile for a
// device's patient: the device-specific override row if one exists,
// otherwise the patient's default row. Returns ErrNotFound if neither
// exists.
func (s *Store) GetThresholdProfile(ctx context.Context, patientID, deviceID string) (*pipelineevents.ThresholdProfile, error) {
	return queryGetThresholdProfile(ctx, s.db, patientID, deviceID)
}

// UpsertDevice creates or replaces a device row.
func (s *Store) UpsertDevice(ctx context.Context, d *pipelineevents.Device) error {
	return queryUpsertDevice(ctx, s.db, d)
}

// UpsertPatient creates or replaces a patient row.
func (s *Store) UpsertPatient(ctx context.Context, p *pipelineevents.Patient) error {
	return queryUpsertPatient(ctx, s.db, p)
}

// UpsertThresholdProfile creates or replaces a threshold profile row. A
// profile with an empty DeviceID is the patient's default.
func (s *Store) UpsertThresholdProfile(ctx context.Context, t *pipelineevents.ThresholdProfile) error {
	return queryUpsertThresholdProfile(ctx, s.db, t)
}
