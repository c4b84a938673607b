package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	Up          string
}

// nodeMigrations build the address and routing database.
var nodeMigrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema with nodes and routing",
		Up: `
CREATE TABLE IF NOT EXISTS nodes (
    id          TEXT PRIMARY KEY NOT NULL,
    alias       TEXT NOT NULL DEFAULT '',
    timestamp   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS routing (
    repo        TEXT NOT NULL,
    node        TEXT NOT NULL,
    timestamp   INTEGER NOT NULL,
    PRIMARY KEY (repo, node)
);

CREATE INDEX IF NOT EXISTS idx_routing_node ON routing(node);
`,
	},
	{
		Version:     2,
		Description: "Record the last announced user agent of each node",
		Up:          `ALTER TABLE nodes ADD COLUMN agent TEXT;`,
	},
}

// policyMigrations build the policy database.
var policyMigrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema with repository and follow policies",
		Up: `
CREATE TABLE IF NOT EXISTS repo_policies (
    id          TEXT PRIMARY KEY NOT NULL,
    policy      TEXT NOT NULL DEFAULT 'block',
    scope       TEXT NOT NULL DEFAULT 'followed'
);

CREATE TABLE IF NOT EXISTS follow_policies (
    id          TEXT PRIMARY KEY NOT NULL,
    alias       TEXT NOT NULL DEFAULT '',
    policy      TEXT NOT NULL DEFAULT 'allow'
);
`,
	},
}

// migrate applies all pending migrations to the database.
func migrate(ctx context.Context, db *sql.DB, migrations []Migration) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.Version, time.Now().UnixNano(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// schemaVersion returns the highest applied migration.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return version, nil
}
