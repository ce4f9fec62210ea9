package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Dialects with embedded migrations.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// MigrationSource returns the embedded migrations for dialect.
func MigrationSource(dialect string) (source.Driver, error) {
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
	d, err := iofs.New(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("create iofs source: %w", err)
	}
	return d, nil
}

// Migrate applies every pending up migration for dialect using driver.
func Migrate(dialect string, driver database.Driver) error {
	src, err := MigrationSource(dialect)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	return up(m)
}

// MigrateURL applies pending migrations to the database at url, letting
// golang-migrate open and close its own connection.
func MigrateURL(dialect, url string) error {
	src, err := MigrationSource(dialect)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	return up(m)
}

func up(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
