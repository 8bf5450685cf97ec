package manifest

import (
	"database/sql"
	"fmt"
)

type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

type migrationRunner struct {
	db         *sql.DB
	migrations []migration
}

func newMigrationRunner(db *sql.DB) *migrationRunner {
	return &migrationRunner{
		db: db,
		migrations: []migration{
			{Version: 1, Name: "manifest_entries", Apply: migrateV001},
		},
	}
}

// Run enables WAL, creates schema_migrations and applies every pending migration in order
func (r *migrationRunner) Run() error {
	if _, err := r.db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := r.db.Exec("PRAGMA synchronous = FULL"); err != nil {
		return fmt.Errorf("set synchronous mode: %w", err)
	}

	if _, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range r.migrations {
		var count int
		if err := r.db.QueryRow(
			"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version,
		).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}
		if err := r.apply(m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (r *migrationRunner) apply(m migration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS manifest_entries (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			id            TEXT NOT NULL UNIQUE,
			archived_at   TEXT NOT NULL,
			artifact_path TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_manifest_archived_at ON manifest_entries(archived_at)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
