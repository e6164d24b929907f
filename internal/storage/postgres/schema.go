package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS review_items (
	owner_id         TEXT        NOT NULL,
	id               TEXT        NOT NULL,
	kind             TEXT        NOT NULL DEFAULT '',
	subject_label    TEXT        NOT NULL DEFAULT '',
	topic_label      TEXT        NOT NULL DEFAULT '',
	stage            INTEGER     NOT NULL DEFAULT 0 CHECK (stage >= 0),
	next_review_at   TIMESTAMPTZ NOT NULL,
	last_reviewed_at TIMESTAMPTZ,
	completed        BOOLEAN     NOT NULL DEFAULT FALSE,
	origin           TEXT        NOT NULL,
	source_task_id   TEXT        NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (owner_id, id)
);

CREATE INDEX IF NOT EXISTS idx_review_items_due
	ON review_items (owner_id, completed, next_review_at);

CREATE TABLE IF NOT EXISTS sources (
	id           BIGSERIAL PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	path         TEXT NOT NULL,
	type         TEXT NOT NULL DEFAULT 'local',
	last_scanned TIMESTAMPTZ,
	UNIQUE (owner_id, path)
);

CREATE TABLE IF NOT EXISTS sync_state (
	owner_id     TEXT PRIMARY KEY,
	last_sync_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the tables if they are missing.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
