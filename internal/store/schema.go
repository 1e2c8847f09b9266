package store

import (
	"context"
	"fmt"
)

// schema is applied in order on startup. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id              TEXT PRIMARY KEY,
		owner_id        TEXT NOT NULL,
		name            TEXT NOT NULL,
		unit            TEXT NOT NULL DEFAULT '',
		group_label     TEXT NOT NULL DEFAULT '',
		preparer_name   TEXT NOT NULL DEFAULT '',
		reference_image BYTEA,
		photo_url       TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS members_owner_idx ON members (owner_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS presence_records (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		session_id TEXT NOT NULL,
		member_id  TEXT NOT NULL REFERENCES members (id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (member_id, session_id)
	)`,
	`CREATE INDEX IF NOT EXISTS presence_owner_session_idx ON presence_records (owner_id, session_id)`,
}

// Migrate creates the tables the attendance repository needs.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
