package storage

const schema = `
-- Review items are keyed by owner and id. Times are UTC unix milliseconds.
CREATE TABLE IF NOT EXISTS review_items (
    owner_id TEXT NOT NULL,
    id TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT '',
    subject_label TEXT NOT NULL DEFAULT '',
    topic_label TEXT NOT NULL DEFAULT '',
    stage INTEGER NOT NULL DEFAULT 0 CHECK (stage >= 0),
    next_review_at INTEGER NOT NULL,
    last_reviewed_at INTEGER,
    completed INTEGER NOT NULL DEFAULT 0,
    origin TEXT NOT NULL,
    source_task_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,

    PRIMARY KEY (owner_id, id)
);

CREATE INDEX IF NOT EXISTS idx_review_items_due
    ON review_items (owner_id, completed, next_review_at);

-- Plan sources, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id TEXT NOT NULL,
    path TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned INTEGER,

    UNIQUE (owner_id, path)
);

CREATE TABLE IF NOT EXISTS sync_state (
    owner_id TEXT PRIMARY KEY,
    last_sync_at INTEGER NOT NULL
);
`
