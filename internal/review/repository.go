package review

import (
	"context"
	"errors"
	"time"

	"github.com/conorfennell/studyplan/internal/domain"
)

// ErrItemExists is wrapped by Insert when the owner already has the item id.
var ErrItemExists = errors.New("review item already exists")

// Repository is the durable side of the store. Implementations key every row
// by (owner, id), return a *domain.NotFoundError from Get for unknown items and
// order the list queries by next review time, then id.
type Repository interface {
	Insert(ctx context.Context, item *domain.ReviewItem) error
	Get(ctx context.Context, ownerID, itemID string) (*domain.ReviewItem, error)
	Update(ctx context.Context, item *domain.ReviewItem) error
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.ReviewItem, error)
	ListDue(ctx context.Context, ownerID string, asOf time.Time) ([]*domain.ReviewItem, error)
	ListUpcoming(ctx context.Context, ownerID string, asOf time.Time) ([]*domain.ReviewItem, error)

	// WithinTx runs fn against a repository bound to one transaction. The
	// transaction commits only if fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
}
