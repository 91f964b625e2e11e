package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const pingTimeout = 10 * time.Second

type (
	// MigrationRunner is the set of commands the tool exposes.
	MigrationRunner interface {
		Up() error
		Down() error
		Status() (*Status, error)
		Drop() error
		Close() error
	}

	// Status describes the database schema relative to the migrations in this binary.
	Status struct {
		Version int
		Dirty   bool
		Latest  int
		Pending []MigrationInfo
	}

	// Runner implements MigrationRunner using golang-migrate over the embedded migrations.
	Runner struct {
		migrate    *migrate.Migrate
		db         *sql.DB
		migrations *MigrationSet
		logger     *slog.Logger
	}

	// migrateLogger forwards golang-migrate's log lines to slog.
	migrateLogger struct {
		logger *slog.Logger
	}
)

var _ migrate.Logger = (*migrateLogger)(nil)

// NewMigrationRunner validates the embedded migrations, connects and prepares golang-migrate.
func NewMigrationRunner(cfg *Config, migrations *MigrationSet, logger *slog.Logger) (*Runner, error) {
	logger.Info("Initializing migration runner", slog.String("config", cfg.String()))

	if err := migrations.Validate(); err != nil {
		return nil, fmt.Errorf("embedded migration validation failed: %w", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: cfg.MigrationTable})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(migrations.FS(), ".")
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create embedded migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.Log = &migrateLogger{logger: logger}

	return &Runner{
		migrate:    m,
		db:         db,
		migrations: migrations,
		logger:     logger,
	}, nil
}

// Up applies all pending migrations.
func (r *Runner) Up() error {
	err := r.migrate.Up()

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		r.logger.Info("No new migrations to apply")
	case err != nil:
		return fmt.Errorf("migration up failed: %w", err)
	default:
		r.logger.Info("All migrations applied", slog.Int("version", r.migrations.LatestVersion()))
	}

	return nil
}

// Down rolls back the last applied migration.
func (r *Runner) Down() error {
	err := r.migrate.Steps(-1)

	switch {
	case errors.Is(err, migrate.ErrNoChange), errors.Is(err, migrate.ErrNilVersion):
		r.logger.Info("No migrations to roll back")
	case err != nil:
		return fmt.Errorf("migration down failed: %w", err)
	default:
		r.logger.Info("Last migration rolled back")
	}

	return nil
}

// Status reports the applied version and the migrations still to apply.
func (r *Runner) Status() (*Status, error) {
	status := &Status{Latest: r.migrations.LatestVersion()}

	ver, dirty, err := r.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == nil {
		status.Version = int(ver) // #nosec G115 - migration sequences are three digits
		status.Dirty = dirty
	}

	pending, err := r.migrations.Pending(status.Version)
	if err != nil {
		return nil, err
	}

	status.Pending = pending

	return status, nil
}

// Drop removes every object in the database. Destructive.
func (r *Runner) Drop() error {
	r.logger.Warn("Dropping all tables")

	if err := r.migrate.Drop(); err != nil {
		return fmt.Errorf("drop operation failed: %w", err)
	}

	r.logger.Info("All tables dropped")

	return nil
}

// Close releases the migrate instance and the database connection.
func (r *Runner) Close() error {
	var errs []error

	if r.migrate != nil {
		sourceErr, dbErr := r.migrate.Close()
		if sourceErr != nil {
			errs = append(errs, fmt.Errorf("source close error: %w", sourceErr))
		}

		if dbErr != nil {
			errs = append(errs, fmt.Errorf("database close error: %w", dbErr))
		}
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, fmt.Errorf("database connection close error: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Summary renders the status for the terminal.
func (s *Status) Summary() string {
	var b strings.Builder

	state := "clean"
	if s.Dirty {
		state = "dirty (needs manual intervention)"
	}

	fmt.Fprintf(&b, "Database schema: v%03d (%s)\n", s.Version, state)
	fmt.Fprintf(&b, "Migrator supports: v%03d\n", s.Latest)

	switch {
	case s.Version > s.Latest:
		fmt.Fprintf(&b, "Database schema is newer than this migrator; update the tool\n")
	case len(s.Pending) == 0:
		fmt.Fprintf(&b, "Up to date\n")
	default:
		fmt.Fprintf(&b, "Pending migrations (%d):\n", len(s.Pending))

		for _, m := range s.Pending {
			fmt.Fprintf(&b, "  %03d %s\n", m.Sequence, m.Name)
		}
	}

	return b.String()
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l *migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
