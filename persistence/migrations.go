package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one versioned schema step. Statements stay in the SQL subset
// both supported dialects accept: VARCHAR keys because MySQL cannot index
// bare TEXT, MEDIUMTEXT payloads which SQLite reads as plain TEXT affinity.
type migration struct {
	Version    int
	Name       string
	Statements []string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "base_tables",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS track_projects (
				uid VARCHAR(191) PRIMARY KEY,
				name VARCHAR(191) NOT NULL UNIQUE,
				data MEDIUMTEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS track_groups (
				uid VARCHAR(191) PRIMARY KEY,
				name VARCHAR(191) NOT NULL UNIQUE,
				project_id VARCHAR(191) NOT NULL,
				data MEDIUMTEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS track_trials (
				uid VARCHAR(191) PRIMARY KEY,
				hash VARCHAR(64) NOT NULL,
				revision INTEGER NOT NULL,
				project_id VARCHAR(191),
				group_id VARCHAR(191),
				data MEDIUMTEXT NOT NULL
			)`,
		},
	},
	{
		Version: 2,
		Name:    "trial_hash_index",
		Statements: []string{
			`CREATE INDEX idx_track_trials_hash ON track_trials (hash)`,
		},
	},
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			dirty INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}

func currentMigrationVersion(ctx context.Context, db *sql.DB) (int, bool, error) {
	var version, dirty int
	err := db.QueryRowContext(ctx,
		`SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`,
	).Scan(&version, &dirty)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return version, dirty == 1, nil
}

func setMigrationVersion(ctx context.Context, db *sql.DB, version int, dirty bool) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		return err
	}
	if version == 0 {
		return nil
	}
	dirtyInt := 0
	if dirty {
		dirtyInt = 1
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, dirty) VALUES (?, ?)`, version, dirtyInt)
	return err
}

// Migrate applies pending schema migrations and reports the resulting
// version. A database left dirty by an interrupted migration is refused.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, fmt.Errorf("migrate: create migrations table: %w", err)
	}

	version, dirty, err := currentMigrationVersion(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("migrate: current version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("migrate: database is dirty at version %d", version)
	}

	for _, m := range migrations {
		if m.Version <= version {
			continue
		}
		if err := setMigrationVersion(ctx, db, m.Version, true); err != nil {
			return version, fmt.Errorf("migrate %d_%s: set dirty flag: %w", m.Version, m.Name, err)
		}
		for _, stmt := range m.Statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return version, fmt.Errorf("migrate %d_%s: %w", m.Version, m.Name, err)
			}
		}
		if err := setMigrationVersion(ctx, db, m.Version, false); err != nil {
			return version, fmt.Errorf("migrate %d_%s: clear dirty flag: %w", m.Version, m.Name, err)
		}
		version = m.Version
	}
	return version, nil
}
