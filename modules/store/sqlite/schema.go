package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		channel         TEXT    NOT NULL,
		kind            TEXT    NOT NULL,
		token           TEXT    NOT NULL DEFAULT '',
		sender_id       TEXT    NOT NULL DEFAULT '',
		text            TEXT    NOT NULL DEFAULT '',
		media_types     TEXT    NOT NULL DEFAULT '',
		delivery_status TEXT    NOT NULL DEFAULT '',
		delivery_token  TEXT    NOT NULL DEFAULT '',
		sent            INTEGER NOT NULL DEFAULT 0,
		received        INTEGER NOT NULL DEFAULT 0,
		created_at      INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel, id)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at)`,
}

// migrate creates or updates the database schema to the latest version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
