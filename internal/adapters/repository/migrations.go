package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Migration is one forward schema step.
type Migration struct {
	Version string
	Up      string
}

// AllMigrations lists schema steps in version order.
var AllMigrations = []Migration{ //nolint:gochecknoglobals // ordered migration list
	{Version: "1.0.0", Up: migrationV1},
	{Version: "1.1.0", Up: migrationV1_1},
}

const migrationV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS places (
    id TEXT PRIMARY KEY,
    canonical_name TEXT NOT NULL UNIQUE,
    country TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    first_name TEXT NOT NULL,
    surname TEXT NOT NULL,
    created_date TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    birth_date TEXT NOT NULL,
    gender TEXT NOT NULL CHECK (gender IN ('man', 'woman')),
    city_name TEXT NOT NULL,
    profession_label TEXT NOT NULL,
    experience_years REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS recommendations (
    id TEXT PRIMARY KEY,
    source_profile_id TEXT NOT NULL,
    target_profile_id TEXT NOT NULL,
    similarity REAL NOT NULL,
    FOREIGN KEY (source_profile_id) REFERENCES profiles(id) ON DELETE CASCADE,
    FOREIGN KEY (target_profile_id) REFERENCES profiles(id) ON DELETE CASCADE
);
`

const migrationV1_1 = `
CREATE INDEX IF NOT EXISTS idx_recommendations_source
    ON recommendations(source_profile_id, similarity DESC);
CREATE INDEX IF NOT EXISTS idx_profiles_created ON profiles(created_date, id);
`

// CurrentSchemaVersion reads the highest applied version, or 0.0.0 on a fresh database.
func CurrentSchemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	current := semver.MustParse("0.0.0")

	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&name)
	if err == sql.ErrNoRows {
		return current, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("read schema_version: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan schema_version: %w", err)
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", raw, err)
		}
		if current.LessThan(v) {
			current = v
		}
	}
	return current, rows.Err()
}

// ApplyMigrations runs every migration newer than the current schema version.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := CurrentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range AllMigrations {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", m.Version, err)
		}
		if !current.LessThan(v) {
			continue
		}

		if _, err := db.ExecContext(ctx, m.Up); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Version, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}
		current = v
	}
	return nil
}
