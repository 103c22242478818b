package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/metno/lard/internal/errs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies (or, if down is true, reverts) the embedded schema
// migrations. It opens a short-lived database/sql connection purely to
// satisfy golang-migrate's driver interface — the rest of the codebase
// never uses database/sql.
func Migrate(connString string, down bool) error {
	const op = "storage.Migrate"

	db, err := sql.Open("pgx", connString)
	if err != nil {
		return errs.E(op, errs.Database, err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return errs.E(op, errs.Database, err)
	}

	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return errs.E(op, errs.Config, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return errs.E(op, errs.Database, err)
	}

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errs.E(op, errs.Database, fmt.Errorf("running migrations: %w", err))
	}
	return nil
}
