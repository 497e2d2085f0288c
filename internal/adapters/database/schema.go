package database

import (
	"context"
	"fmt"

	"github.com/zatekoja/smartcare/backend/internal/infrastructure/clients/postgres"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS activity_log (
		id             TEXT PRIMARY KEY,
		type           TEXT NOT NULL,
		title          TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		department     TEXT NOT NULL DEFAULT '',
		patient_id     TEXT NOT NULL DEFAULT '',
		patient_name   TEXT NOT NULL DEFAULT '',
		entry_id       TEXT NOT NULL DEFAULT '',
		doctor_id      INTEGER NOT NULL DEFAULT 0,
		doctor_name    TEXT NOT NULL DEFAULT '',
		severity_score INTEGER NOT NULL DEFAULT 0,
		actor          TEXT NOT NULL,
		details        JSONB,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS activity_log_created_at_idx ON activity_log (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS override_log (
		id                TEXT PRIMARY KEY,
		override_type     TEXT NOT NULL,
		entry_id          TEXT NOT NULL,
		patient_id        TEXT NOT NULL DEFAULT '',
		department        TEXT NOT NULL DEFAULT '',
		actor_id          TEXT NOT NULL DEFAULT '',
		actor_name        TEXT NOT NULL DEFAULT '',
		actor_role        TEXT NOT NULL DEFAULT '',
		reason            TEXT NOT NULL DEFAULT '',
		notes             TEXT NOT NULL DEFAULT '',
		previous_priority DOUBLE PRECISION NOT NULL DEFAULT 0,
		new_priority      DOUBLE PRECISION NOT NULL DEFAULT 0,
		previous_position INTEGER NOT NULL DEFAULT 0,
		new_position      INTEGER NOT NULL DEFAULT 0,
		previous_severity INTEGER NOT NULL DEFAULT 0,
		new_severity      INTEGER NOT NULL DEFAULT 0,
		success           BOOLEAN NOT NULL,
		error             TEXT NOT NULL DEFAULT '',
		prev_hash         TEXT NOT NULL DEFAULT '',
		hash              TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS override_log_created_at_idx ON override_log (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id                 TEXT PRIMARY KEY,
		name               TEXT NOT NULL,
		age                INTEGER NOT NULL DEFAULT 0,
		chronic_conditions TEXT[] NOT NULL DEFAULT '{}',
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the archive and directory tables when missing
func EnsureSchema(ctx context.Context, client *postgres.Client) error {
	for _, stmt := range schemaStatements {
		if _, err := client.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
