package postgres

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"

	"streakbuddy/internal/errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const migrationsTable = "schema_migrations"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies every pending embedded migration on a connection borrowed from sqlDB.
func Migrate(ctx context.Context, sqlDB *sql.DB, logger *slog.Logger) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return errors.Wrap(err, "open embedded migrations")
	}

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire migration connection")
	}

	driver, err := migratepg.WithConnection(ctx, conn, &migratepg.Config{MigrationsTable: migrationsTable})
	if err != nil {
		_ = conn.Close()

		return errors.Wrap(err, "create migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = driver.Close()

		return errors.Wrap(err, "create migrator")
	}
	// Closes the source and the borrowed connection; sqlDB stays open.
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return errors.Wrap(err, "read migration version")
	}

	logger.Info("Database schema up to date", "version", version, "dirty", dirty)

	return nil
}
