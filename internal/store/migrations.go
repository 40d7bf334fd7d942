package store

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every embedded migration to db. It replaces the Python
// original's best-effort `ALTER TABLE ... ; except: pass` (main.py's
// startup_event) with goose's tracked, idempotent migrations — running it
// twice against the same database is a no-op, so Bootstrap can call it
// unconditionally on every start.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
