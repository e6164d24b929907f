package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/conorfennell/studyplan/internal/domain"
)

// InsertSource registers a plan source for an owner and returns its ID.
func (r *Repository) InsertSource(ctx context.Context, ownerID, path string, sourceType domain.SourceType) (int64, error) {
	query := `
		INSERT INTO sources (owner_id, path, type)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	if err := r.db.QueryRow(ctx, query, ownerID, path, string(sourceType)).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source of an owner by its path. It returns nil
// when the source does not exist.
func (r *Repository) FindSourceByPath(ctx context.Context, ownerID, path string) (*domain.Source, error) {
	query := `
		SELECT id, owner_id, path, type, last_scanned
		FROM sources WHERE owner_id = $1 AND path = $2
	`

	s, err := scanSource(r.db.QueryRow(ctx, query, ownerID, path))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find source by path %s: %w", path, err)
	}
	return s, nil
}

// GetAllSources retrieves all stored sources.
func (r *Repository) GetAllSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, path, type, last_scanned
		FROM sources ORDER BY owner_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("get all sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source. Items already imported from it stay.
func (r *Repository) DeleteSource(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete source %d: %w", id, err)
	}
	return nil
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (r *Repository) UpdateSourceLastScanned(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.Exec(ctx, `UPDATE sources SET last_scanned = $1 WHERE id = $2`, at, id); err != nil {
		return fmt.Errorf("update last scanned for source %d: %w", id, err)
	}
	return nil
}

func scanSource(row pgx.Row) (*domain.Source, error) {
	var (
		s       domain.Source
		srcType string
	)
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Path, &srcType, &s.LastScanned); err != nil {
		return nil, err
	}
	s.Type = domain.SourceType(srcType)
	if s.LastScanned != nil {
		t := s.LastScanned.UTC()
		s.LastScanned = &t
	}
	return &s, nil
}

// LastSyncAt returns when the owner was last fully reconciled, or nil.
func (r *Repository) LastSyncAt(ctx context.Context, ownerID string) (*time.Time, error) {
	var at time.Time
	err := r.db.QueryRow(ctx, `SELECT last_sync_at FROM sync_state WHERE owner_id = $1`, ownerID).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last sync: %w", err)
	}
	at = at.UTC()
	return &at, nil
}

// SetLastSyncAt records a completed reconciliation.
func (r *Repository) SetLastSyncAt(ctx context.Context, ownerID string, at time.Time) error {
	query := `
		INSERT INTO sync_state (owner_id, last_sync_at)
		VALUES ($1, $2)
		ON CONFLICT (owner_id) DO UPDATE SET last_sync_at = EXCLUDED.last_sync_at
	`
	if _, err := r.db.Exec(ctx, query, ownerID, at); err != nil {
		return fmt.Errorf("set last sync: %w", err)
	}
	return nil
}
