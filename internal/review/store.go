// Package review is the single mutation path for review items. It applies the
// forgetting-curve model and manual overrides, serializes writes per owner and
// publishes every committed change.
package review

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conorfennell/studyplan/internal/curve"
	"github.com/conorfennell/studyplan/internal/domain"
	"github.com/conorfennell/studyplan/internal/schedule"
)

// Store owns all ReviewItem mutations.
type Store struct {
	repo     Repository
	model    *curve.Model
	planner  *schedule.Planner
	notifier *Notifier
	logger   *zap.Logger
	now      func() time.Time
	locks    *ownerLocks
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithModel replaces the default interval table.
func WithModel(m *curve.Model) Option {
	return func(s *Store) { s.model = m }
}

// WithPlanner sets the planner used for manual overrides.
func WithPlanner(p *schedule.Planner) Option {
	return func(s *Store) { s.planner = p }
}

// WithNotifier shares a notifier with other components.
func WithNotifier(n *Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// NewStore creates a Store over repo.
func NewStore(repo Repository, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		model:    curve.DefaultModel(),
		planner:  schedule.NewPlanner(time.UTC),
		notifier: NewNotifier(),
		logger:   logger,
		now:      time.Now,
		locks:    newOwnerLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notifier returns the notifier the store publishes to.
func (s *Store) Notifier() *Notifier {
	return s.notifier
}

// Create persists a new item at stage 0. The caller supplies NextReviewAt.
func (s *Store) Create(ctx context.Context, item *domain.ReviewItem) (*domain.ReviewItem, error) {
	now := s.clock()

	created := *item
	if created.ID == "" {
		created.ID = uuid.Must(uuid.NewV7()).String()
	}
	if created.Origin == "" {
		created.Origin = domain.OriginManual
	}
	created.Stage = 0
	created.Completed = false
	created.LastReviewedAt = nil
	created.NextReviewAt = created.NextReviewAt.UTC().Truncate(time.Millisecond)
	created.CreatedAt = now
	created.UpdatedAt = now

	if err := domain.Validate(&created); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(created.OwnerID)
	defer unlock()

	if err := s.repo.Insert(ctx, &created); err != nil {
		return nil, s.classify("insert item", err)
	}

	s.logger.Debug("review item created",
		zap.String("owner_id", created.OwnerID),
		zap.String("item_id", created.ID),
		zap.String("origin", string(created.Origin)),
		zap.Time("next_review_at", created.NextReviewAt),
	)
	s.publish(EventCreated, &created, now)
	return &created, nil
}

// Get returns one item of an owner.
func (s *Store) Get(ctx context.Context, ownerID, itemID string) (*domain.ReviewItem, error) {
	item, err := s.repo.Get(ctx, ownerID, itemID)
	if err != nil {
		return nil, s.classify("get item", err)
	}
	return item, nil
}

// RecordOutcome moves the item along the curve and stamps the review time.
func (s *Store) RecordOutcome(ctx context.Context, ownerID, itemID string, wasCorrect bool) (*domain.ReviewItem, error) {
	item, _, err := s.mutate(ctx, ownerID, itemID, "record outcome", EventOutcomeRecorded,
		func(item *domain.ReviewItem, now time.Time) bool {
			tr := s.model.RecordOutcome(item.Stage, wasCorrect, now)
			item.Stage = tr.Stage
			item.NextReviewAt = tr.NextReviewAt
			item.LastReviewedAt = &now
			return true
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info("outcome recorded",
		zap.String("owner_id", ownerID),
		zap.String("item_id", itemID),
		zap.Bool("correct", wasCorrect),
		zap.Int("stage", item.Stage),
		zap.Time("next_review_at", item.NextReviewAt),
	)
	return item, nil
}

// MarkCompleted retires the item from scheduling. Completing a completed item
// is a no-op.
func (s *Store) MarkCompleted(ctx context.Context, ownerID, itemID string) (*domain.ReviewItem, error) {
	item, changed, err := s.mutate(ctx, ownerID, itemID, "mark completed", EventCompleted,
		func(item *domain.ReviewItem, _ time.Time) bool {
			if item.Completed {
				return false
			}
			item.Completed = true
			return true
		})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("item completed", zap.String("owner_id", ownerID), zap.String("item_id", itemID))
	}
	return item, nil
}

// ApplyOverride sets a learner-chosen review time. Quick actions also reset
// the stage; reschedule options keep it.
func (s *Store) ApplyOverride(ctx context.Context, ownerID, itemID string, req schedule.Request) (*domain.ReviewItem, error) {
	res, err := s.planner.Resolve(req, s.now())
	if err != nil {
		return nil, err
	}

	item, _, err := s.mutate(ctx, ownerID, itemID, "apply override", EventRescheduled,
		func(item *domain.ReviewItem, _ time.Time) bool {
			item.NextReviewAt = res.NextReviewAt.Truncate(time.Millisecond)
			if res.ResetStage {
				item.Stage = 0
			}
			return true
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info("override applied",
		zap.String("owner_id", ownerID),
		zap.String("item_id", itemID),
		zap.String("option", string(req.Option)),
		zap.Bool("stage_reset", res.ResetStage),
		zap.Time("next_review_at", item.NextReviewAt),
	)
	return item, nil
}

// ListDue returns non-completed items due at or before asOf, earliest first.
func (s *Store) ListDue(ctx context.Context, ownerID string, asOf time.Time) ([]*domain.ReviewItem, error) {
	items, err := s.repo.ListDue(ctx, ownerID, asOf.UTC())
	if err != nil {
		return nil, s.classify("list due", err)
	}
	sortByDue(items)
	return items, nil
}

// ListUpcoming returns non-completed items due after asOf, earliest first.
func (s *Store) ListUpcoming(ctx context.Context, ownerID string, asOf time.Time) ([]*domain.ReviewItem, error) {
	items, err := s.repo.ListUpcoming(ctx, ownerID, asOf.UTC())
	if err != nil {
		return nil, s.classify("list upcoming", err)
	}
	sortByDue(items)
	return items, nil
}

// ListAll returns every item of an owner, completed ones included.
func (s *Store) ListAll(ctx context.Context, ownerID string) ([]*domain.ReviewItem, error) {
	items, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, s.classify("list items", err)
	}
	return items, nil
}

// mutate runs a read-modify-write cycle for one item under the owner lock and
// inside one transaction. fn reports whether it changed the item; unchanged
// items are neither written nor published.
func (s *Store) mutate(
	ctx context.Context,
	ownerID, itemID, op string,
	kind EventKind,
	fn func(item *domain.ReviewItem, now time.Time) bool,
) (*domain.ReviewItem, bool, error) {
	unlock := s.locks.lock(ownerID)
	defer unlock()

	var (
		out     *domain.ReviewItem
		changed bool
		now     = s.clock()
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Repository) error {
		item, err := tx.Get(ctx, ownerID, itemID)
		if err != nil {
			return err
		}
		if changed = fn(item, now); changed {
			item.UpdatedAt = now
			if err := tx.Update(ctx, item); err != nil {
				return err
			}
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, false, s.classify(op, err)
	}

	if changed {
		s.publish(kind, out, now)
	}
	return out, changed, nil
}

// clock returns the current time at the millisecond precision both backends
// persist.
func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Store) publish(kind EventKind, item *domain.ReviewItem, at time.Time) {
	s.notifier.Publish(Event{
		Kind:    kind,
		OwnerID: item.OwnerID,
		ItemID:  item.ID,
		Item:    *item,
		At:      at,
	})
}

// classify passes caller errors through and turns everything else into a
// PersistenceError.
func (s *Store) classify(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	if !errors.Is(err, ErrItemExists) {
		s.logger.Error("persistence failure", zap.String("op", op), zap.Error(err))
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

func sortByDue(items []*domain.ReviewItem) {
	slices.SortStableFunc(items, func(a, b *domain.ReviewItem) int {
		if c := a.NextReviewAt.Compare(b.NextReviewAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
