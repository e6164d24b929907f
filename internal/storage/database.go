package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/conorfennell/studyplan/internal/domain"
	"github.com/conorfennell/studyplan/internal/review"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
	q    querier
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer, and an in-memory database lives only as
	// long as its connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: conn, q: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// WithinTx runs fn inside one transaction. Nested calls reuse the outer one.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx review.Repository) error) error {
	if _, ok := db.q.(*sql.Tx); ok {
		return fn(ctx, db)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &DB{conn: db.conn, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const itemColumns = `owner_id, id, kind, subject_label, topic_label, stage, next_review_at,
	last_reviewed_at, completed, origin, source_task_id, created_at, updated_at`

// Insert stores a new review item.
func (db *DB) Insert(ctx context.Context, item *domain.ReviewItem) error {
	_, err := db.q.ExecContext(ctx, `
		INSERT INTO review_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.OwnerID,
		item.ID,
		string(item.Kind),
		item.SubjectLabel,
		item.TopicLabel,
		item.Stage,
		toMillis(item.NextReviewAt),
		nullMillis(item.LastReviewedAt),
		boolInt(item.Completed),
		string(item.Origin),
		item.SourceTaskID,
		toMillis(item.CreatedAt),
		toMillis(item.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to insert item %s: %w", item.ID, review.ErrItemExists)
		}
		return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
	}
	return nil
}

// Get retrieves one item of an owner.
func (db *DB) Get(ctx context.Context, ownerID, itemID string) (*domain.ReviewItem, error) {
	row := db.q.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM review_items WHERE owner_id = ? AND id = ?
	`, ownerID, itemID)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{OwnerID: ownerID, ItemID: itemID}
		}
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	return item, nil
}

// Update writes back the mutable scheduling fields of an item.
func (db *DB) Update(ctx context.Context, item *domain.ReviewItem) error {
	res, err := db.q.ExecContext(ctx, `
		UPDATE review_items
		SET stage = ?, next_review_at = ?, last_reviewed_at = ?, completed = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?
	`,
		item.Stage,
		toMillis(item.NextReviewAt),
		nullMillis(item.LastReviewedAt),
		boolInt(item.Completed),
		toMillis(item.UpdatedAt),
		item.OwnerID,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item %s: %w", item.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for item %s: %w", item.ID, err)
	}
	if n == 0 {
		return &domain.NotFoundError{OwnerID: item.OwnerID, ItemID: item.ID}
	}
	return nil
}

// ListByOwner retrieves every item of an owner.
func (db *DB) ListByOwner(ctx context.Context, ownerID string) ([]*domain.ReviewItem, error) {
	return db.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM review_items WHERE owner_id = ?
		ORDER BY next_review_at, id
	`, ownerID)
}

// ListDue retrieves non-completed items due at or before asOf.
func (db *DB) ListDue(ctx context.Context, ownerID string, asOf time.Time) ([]*domain.ReviewItem, error) {
	return db.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM review_items
		WHERE owner_id = ? AND completed = 0 AND next_review_at <= ?
		ORDER BY next_review_at, id
	`, ownerID, toMillis(asOf))
}

// ListUpcoming retrieves non-completed items due after asOf.
func (db *DB) ListUpcoming(ctx context.Context, ownerID string, asOf time.Time) ([]*domain.ReviewItem, error) {
	return db.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM review_items
		WHERE owner_id = ? AND completed = 0 AND next_review_at > ?
		ORDER BY next_review_at, id
	`, ownerID, toMillis(asOf))
}

func (db *DB) queryItems(ctx context.Context, query string, args ...any) ([]*domain.ReviewItem, error) {
	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*domain.ReviewItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*domain.ReviewItem, error) {
	var (
		item               domain.ReviewItem
		kind, origin       string
		next, created, upd int64
		lastReviewed       sql.NullInt64
	)
	err := s.Scan(
		&item.OwnerID,
		&item.ID,
		&kind,
		&item.SubjectLabel,
		&item.TopicLabel,
		&item.Stage,
		&next,
		&lastReviewed,
		&item.Completed,
		&origin,
		&item.SourceTaskID,
		&created,
		&upd,
	)
	if err != nil {
		return nil, err
	}
	item.Kind = domain.Kind(kind)
	item.Origin = domain.Origin(origin)
	item.NextReviewAt = fromMillis(next)
	item.CreatedAt = fromMillis(created)
	item.UpdatedAt = fromMillis(upd)
	if lastReviewed.Valid {
		t := fromMillis(lastReviewed.Int64)
		item.LastReviewedAt = &t
	}
	return &item, nil
}

// InsertSource registers a plan source for an owner and returns its ID.
func (db *DB) InsertSource(ctx context.Context, ownerID, path string, sourceType domain.SourceType) (int64, error) {
	res, err := db.q.ExecContext(ctx, `
		INSERT INTO sources (owner_id, path, type)
		VALUES (?, ?, ?)
	`, ownerID, path, string(sourceType))
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source of an owner by its path. It returns nil
// when the source does not exist.
func (db *DB) FindSourceByPath(ctx context.Context, ownerID, path string) (*domain.Source, error) {
	row := db.q.QueryRowContext(ctx, `
		SELECT id, owner_id, path, type, last_scanned
		FROM sources WHERE owner_id = ? AND path = ?
	`, ownerID, path)

	s, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return s, nil
}

// GetAllSources retrieves all stored sources.
func (db *DB) GetAllSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := db.q.QueryContext(ctx, `
		SELECT id, owner_id, path, type, last_scanned
		FROM sources ORDER BY owner_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source. Items already imported from it stay.
func (db *DB) DeleteSource(ctx context.Context, id int64) error {
	_, err := db.q.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return nil
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, id int64, at time.Time) error {
	_, err := db.q.ExecContext(ctx, `
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", id, err)
	}
	return nil
}

func scanSource(s scanner) (*domain.Source, error) {
	var (
		src         domain.Source
		sourceType  string
		lastScanned sql.NullInt64
	)
	if err := s.Scan(&src.ID, &src.OwnerID, &src.Path, &sourceType, &lastScanned); err != nil {
		return nil, err
	}
	src.Type = domain.SourceType(sourceType)
	if lastScanned.Valid {
		t := fromMillis(lastScanned.Int64)
		src.LastScanned = &t
	}
	return &src, nil
}

// LastSyncAt returns the last successful sync of an owner, or nil.
func (db *DB) LastSyncAt(ctx context.Context, ownerID string) (*time.Time, error) {
	var ms int64
	err := db.q.QueryRowContext(ctx, `
		SELECT last_sync_at FROM sync_state WHERE owner_id = ?
	`, ownerID).Scan(&ms)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last sync for owner %s: %w", ownerID, err)
	}
	t := fromMillis(ms)
	return &t, nil
}

// SetLastSyncAt records a successful sync of an owner.
func (db *DB) SetLastSyncAt(ctx context.Context, ownerID string, at time.Time) error {
	_, err := db.q.ExecContext(ctx, `
		INSERT INTO sync_state (owner_id, last_sync_at) VALUES (?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET last_sync_at = excluded.last_sync_at
	`, ownerID, toMillis(at))
	if err != nil {
		return fmt.Errorf("failed to set last sync for owner %s: %w", ownerID, err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
