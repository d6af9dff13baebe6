// Package migration applies golang-migrate file-based schema migrations
// ahead of opening a pool against any of the three wallet databases.
// Grounded on LerianStudio-midaz's common/mpostgres.PostgresConnection.Connect,
// generalized to take its migrations directory and database name as
// parameters instead of hardcoding a single ledger database.
package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Up opens a throwaway *sql.DB against dsn, applies every pending
// migration under migrationsPath, and closes it. It is safe to call on
// every process start: migrate.ErrNoChange means the schema is already
// current.
func Up(dsn, migrationsPath, dbName string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open %s for migration: %w", dbName, err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MultiStatementEnabled: true,
		DatabaseName:          dbName,
		SchemaName:            "public",
	})
	if err != nil {
		return fmt.Errorf("postgres migration driver for %s: %w", dbName, err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, dbName, driver)
	if err != nil {
		return fmt.Errorf("load migrations from %s for %s: %w", migrationsPath, dbName, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations for %s: %w", dbName, err)
	}

	return nil
}
