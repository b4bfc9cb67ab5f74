package utils

import (
	"errors"
	"fmt"
	"strings"

	"tradeline/migrations"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationURL turns a postgres:// DSN into the pgx5:// form golang-migrate expects.
// Keyword/value DSNs are not supported.
func MigrationURL(dsn string) (string, error) {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix), nil
		}
	}
	if strings.HasPrefix(dsn, "pgx5://") {
		return dsn, nil
	}
	return "", fmt.Errorf("migrate: dsn must be a postgres:// URL")
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	url, err := MigrationURL(dsn)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migrate: source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}

// MigrateUp applies every embedded migration. Already up to date is not an error.
func MigrateUp(dsn string) (version uint, err error) {
	return runMigration(dsn, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown rolls back one migration step.
func MigrateDown(dsn string) (version uint, err error) {
	return runMigration(dsn, func(m *migrate.Migrate) error { return m.Steps(-1) })
}

func runMigration(dsn string, step func(*migrate.Migrate) error) (uint, error) {
	m, err := newMigrator(dsn)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("migrate: database is dirty at version %d", version)
	}
	return version, nil
}
