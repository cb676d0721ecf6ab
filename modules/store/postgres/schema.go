package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tgrelay_messages (
		id              BIGSERIAL PRIMARY KEY,
		channel         TEXT        NOT NULL,
		kind            TEXT        NOT NULL,
		token           TEXT        NOT NULL DEFAULT '',
		sender_id       TEXT        NOT NULL DEFAULT '',
		text            TEXT        NOT NULL DEFAULT '',
		media_types     TEXT        NOT NULL DEFAULT '',
		delivery_status TEXT        NOT NULL DEFAULT '',
		delivery_token  TEXT        NOT NULL DEFAULT '',
		sent            TIMESTAMPTZ,
		received        TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS tgrelay_messages_channel ON tgrelay_messages(channel, id)`,

	`CREATE INDEX IF NOT EXISTS tgrelay_messages_created ON tgrelay_messages(created_at)`,
}

// migrate applies the schema inside one transaction.
func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS tgrelay_schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("postgres: create schema_version: %w", err)
	}

	var current int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM tgrelay_schema_version").Scan(&current); err != nil {
		return fmt.Errorf("postgres: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w\nstatement: %s", err, stmt)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO tgrelay_schema_version (version) VALUES ($1) ON CONFLICT DO NOTHING", schemaVersion); err != nil {
		return fmt.Errorf("postgres: record schema version: %w", err)
	}
	return tx.Commit()
}
