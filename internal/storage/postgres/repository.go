package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conorfennell/studyplan/internal/domain"
	"github.com/conorfennell/studyplan/internal/review"
)

const uniqueViolation = "23505"

// Repository stores review items, plan sources and sync state in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewRepository creates a Repository over pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

// WithinTx runs fn inside one transaction. Nested calls reuse the outer one.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx review.Repository) error) error {
	if _, ok := r.db.(pgx.Tx); ok {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &Repository{pool: r.pool, db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const itemColumns = `owner_id, id, kind, subject_label, topic_label, stage, next_review_at,
	last_reviewed_at, completed, origin, source_task_id, created_at, updated_at`

// Insert stores a new review item.
func (r *Repository) Insert(ctx context.Context, item *domain.ReviewItem) error {
	query := `
		INSERT INTO review_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		item.OwnerID,
		item.ID,
		string(item.Kind),
		item.SubjectLabel,
		item.TopicLabel,
		item.Stage,
		item.NextReviewAt,
		item.LastReviewedAt,
		item.Completed,
		string(item.Origin),
		item.SourceTaskID,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert item %s: %w", item.ID, review.ErrItemExists)
		}
		return fmt.Errorf("insert item %s: %w", item.ID, err)
	}

	return nil
}

// Get retrieves one item of an owner.
func (r *Repository) Get(ctx context.Context, ownerID, itemID string) (*domain.ReviewItem, error) {
	query := `SELECT ` + itemColumns + ` FROM review_items WHERE owner_id = $1 AND id = $2`

	item, err := scanItem(r.db.QueryRow(ctx, query, ownerID, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{OwnerID: ownerID, ItemID: itemID}
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	return item, nil
}

// Update overwrites the mutable fields of an existing item.
func (r *Repository) Update(ctx context.Context, item *domain.ReviewItem) error {
	query := `
		UPDATE review_items SET
			stage = $3,
			next_review_at = $4,
			last_reviewed_at = $5,
			completed = $6,
			updated_at = $7
		WHERE owner_id = $1 AND id = $2
	`

	tag, err := r.db.Exec(
		ctx,
		query,
		item.OwnerID,
		item.ID,
		item.Stage,
		item.NextReviewAt,
		item.LastReviewedAt,
		item.Completed,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{OwnerID: item.OwnerID, ItemID: item.ID}
	}

	return nil
}

// ListByOwner returns every item of an owner.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.ReviewItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM review_items
		WHERE owner_id = $1
		ORDER BY next_review_at, id
	`
	return r.queryItems(ctx, query, ownerID)
}

// ListDue returns non-completed items due at or before asOf.
func (r *Repository) ListDue(ctx context.Context, ownerID string, asOf time.Time) ([]*domain.ReviewItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM review_items
		WHERE owner_id = $1 AND NOT completed AND next_review_at <= $2
		ORDER BY next_review_at, id
	`
	return r.queryItems(ctx, query, ownerID, asOf)
}

// ListUpcoming returns non-completed items due after asOf.
func (r *Repository) ListUpcoming(ctx context.Context, ownerID string, asOf time.Time) ([]*domain.ReviewItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM review_items
		WHERE owner_id = $1 AND NOT completed AND next_review_at > $2
		ORDER BY next_review_at, id
	`
	return r.queryItems(ctx, query, ownerID, asOf)
}

func (r *Repository) queryItems(ctx context.Context, query string, args ...any) ([]*domain.ReviewItem, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*domain.ReviewItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func scanItem(row pgx.Row) (*domain.ReviewItem, error) {
	var (
		item         domain.ReviewItem
		kind, origin string
	)
	err := row.Scan(
		&item.OwnerID,
		&item.ID,
		&kind,
		&item.SubjectLabel,
		&item.TopicLabel,
		&item.Stage,
		&item.NextReviewAt,
		&item.LastReviewedAt,
		&item.Completed,
		&origin,
		&item.SourceTaskID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Kind = domain.Kind(kind)
	item.Origin = domain.Origin(origin)
	item.NextReviewAt = item.NextReviewAt.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	if item.LastReviewedAt != nil {
		t := item.LastReviewedAt.UTC()
		item.LastReviewedAt = &t
	}
	return &item, nil
}
