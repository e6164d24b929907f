// Package progress derives read-only summary statistics from an owner's
// review items.
package progress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/conorfennell/studyplan/internal/domain"
	"github.com/conorfennell/studyplan/internal/review"
)

// Cache memoises encoded snapshots under owner-scoped keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// ItemSource supplies the current snapshot of an owner's items.
type ItemSource interface {
	ListAll(ctx context.Context, ownerID string) ([]*domain.ReviewItem, error)
}

// Aggregator computes progress views on demand. Only the completion summary
// is cached; views that depend on an instant are always fresh.
type Aggregator struct {
	items  ItemSource
	cache  Cache
	ttl    time.Duration
	loc    *time.Location
	logger *zap.Logger

	group singleflight.Group

	mu   sync.Mutex
	gens map[string]uint64
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTTL sets how long a cached summary stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(a *Aggregator) { a.ttl = ttl }
}

// WithLocation sets the calendar used for day/week/month buckets.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) { a.loc = loc }
}

// NewAggregator creates an Aggregator. cache may be nil to disable memoising.
func NewAggregator(items ItemSource, cache Cache, logger *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		items:  items,
		cache:  cache,
		ttl:    time.Minute,
		loc:    time.UTC,
		logger: logger,
		gens:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Watch invalidates an owner's cached views whenever the store commits a
// change for that owner.
func (a *Aggregator) Watch(n *review.Notifier) {
	n.OnChange(func(e review.Event) {
		a.Invalidate(context.Background(), e.OwnerID)
	})
}

// Invalidate drops every cached view of an owner. Fills already running for
// the owner are detached so later callers start a fresh one.
func (a *Aggregator) Invalidate(ctx context.Context, ownerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.gens[ownerID]++
	a.group.Forget(cacheKey(ownerID, "completion"))

	if a.cache == nil {
		return
	}
	if err := a.cache.Invalidate(ctx, cacheKey(ownerID, "*")); err != nil {
		a.logger.Warn("progress cache invalidation failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
}

// CompletionStats returns the owner's completion summary.
func (a *Aggregator) CompletionStats(ctx context.Context, ownerID string) (Stats, error) {
	key := cacheKey(ownerID, "completion")
	if a.cache != nil {
		if b, ok := a.cache.Get(ctx, key); ok {
			var st Stats
			if err := json.Unmarshal(b, &st); err == nil {
				return st, nil
			}
		}
	}

	// The shared fill outlives any single caller; each caller still stops
	// waiting when its own context ends.
	fillCtx := context.WithoutCancel(ctx)
	ch := a.group.DoChan(key, func() (any, error) {
		gen := a.generation(ownerID)
		items, err := a.items.ListAll(fillCtx, ownerID)
		if err != nil {
			return Stats{}, err
		}
		st := Completion(items)
		a.store(fillCtx, ownerID, gen, key, st)
		return st, nil
	})

	select {
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Stats{}, res.Err
		}
		return res.Val.(Stats), nil
	}
}

// OverdueCount counts non-completed items due at or before asOf.
func (a *Aggregator) OverdueCount(ctx context.Context, ownerID string, asOf time.Time) (int, error) {
	items, err := a.items.ListAll(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return Overdue(items, asOf), nil
}

// BucketedCompletion groups the owner's items by calendar period.
func (a *Aggregator) BucketedCompletion(ctx context.Context, ownerID string, g Granularity) ([]Bucket, error) {
	items, err := a.items.ListAll(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return Buckets(items, g, a.loc), nil
}

// PercentileRank locates the owner in a leaderboard sorted best first.
func (a *Aggregator) PercentileRank(ownerID string, scores []Score) *Rank {
	return PercentileRank(ownerID, scores)
}

func (a *Aggregator) generation(ownerID string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gens[ownerID]
}

// store caches st unless the owner changed while it was being computed. The
// generation check and the write happen under the lock Invalidate takes, so
// an invalidation lands either before the check or after the write.
func (a *Aggregator) store(ctx context.Context, ownerID string, gen uint64, key string, st Stats) {
	if a.cache == nil {
		return
	}
	b, err := json.Marshal(st)
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gens[ownerID] != gen {
		return
	}
	if err := a.cache.Set(ctx, key, b, a.ttl); err != nil {
		a.logger.Warn("progress cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func cacheKey(ownerID, view string) string {
	return "progress:" + ownerID + ":" + view
}
