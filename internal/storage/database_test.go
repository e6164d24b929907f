package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studyplan/internal/domain"
	"github.com/conorfennell/studyplan/internal/review"
)

var _ review.Repository = (*DB)(nil)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var base = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newItem(owner, id string, next time.Time) *domain.ReviewItem {
	return &domain.ReviewItem{
		ID:           id,
		OwnerID:      owner,
		Kind:         domain.KindTopic,
		SubjectLabel: "Physics",
		TopicLabel:   "Optics",
		NextReviewAt: next,
		Origin:       domain.OriginManual,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

func TestItemRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	in := newItem("u1", "a", base.Add(90*time.Minute+123*time.Millisecond))
	require.NoError(t, db.Insert(ctx, in))

	got, err := db.Get(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Nil(t, got.LastReviewedAt)

	reviewed := base.Add(time.Hour)
	got.Stage = 2
	got.LastReviewedAt = &reviewed
	got.Completed = true
	require.NoError(t, db.Update(ctx, got))

	again, err := db.Get(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Stage)
	assert.True(t, again.Completed)
	require.NotNil(t, again.LastReviewedAt)
	assert.True(t, reviewed.Equal(*again.LastReviewedAt))
}

func TestGetIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.Insert(ctx, newItem("u1", "a", base)))

	_, err := db.Get(ctx, "u2", "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = db.Update(ctx, newItem("u2", "a", base))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInsertDuplicateFails(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.Insert(ctx, newItem("u1", "a", base)))
	assert.ErrorIs(t, db.Insert(ctx, newItem("u1", "a", base)), review.ErrItemExists)

	require.NoError(t, db.Insert(ctx, newItem("u2", "a", base)), "ids are unique per owner")
}

func TestListDueAndUpcoming(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	asOf := base
	require.NoError(t, db.Insert(ctx, newItem("u1", "later", asOf.Add(time.Hour))))
	require.NoError(t, db.Insert(ctx, newItem("u1", "b", asOf.Add(-time.Hour))))
	require.NoError(t, db.Insert(ctx, newItem("u1", "a", asOf.Add(-time.Hour))))
	require.NoError(t, db.Insert(ctx, newItem("u1", "early", asOf.Add(-2*time.Hour))))
	require.NoError(t, db.Insert(ctx, newItem("u1", "exact", asOf)))
	require.NoError(t, db.Insert(ctx, newItem("u2", "other", asOf.Add(-time.Hour))))
	done := newItem("u1", "done", asOf.Add(-3*time.Hour))
	done.Completed = true
	require.NoError(t, db.Insert(ctx, done))

	due, err := db.ListDue(ctx, "u1", asOf)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "a", "b", "exact"}, ids(due))

	upcoming, err := db.ListUpcoming(ctx, "u1", asOf)
	require.NoError(t, err)
	assert.Equal(t, []string{"later"}, ids(upcoming))

	all, err := db.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.Insert(ctx, newItem("u1", "a", base)))

	err := db.WithinTx(ctx, func(ctx context.Context, tx review.Repository) error {
		item, err := tx.Get(ctx, "u1", "a")
		require.NoError(t, err)
		item.Stage = 3
		require.NoError(t, tx.Update(ctx, item))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	item, err := db.Get(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, 0, item.Stage)
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	id, err := db.InsertSource(ctx, "u1", "plans/", domain.SourceLocal)
	require.NoError(t, err)

	_, err = db.InsertSource(ctx, "u1", "plans/", domain.SourceLocal)
	assert.Error(t, err, "same path twice for one owner")

	_, err = db.InsertSource(ctx, "u2", "plans/", domain.SourceLocal)
	assert.NoError(t, err, "another owner may use the same path")

	missing, err := db.FindSourceByPath(ctx, "u1", "nope/")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, db.UpdateSourceLastScanned(ctx, id, base))
	src, err := db.FindSourceByPath(ctx, "u1", "plans/")
	require.NoError(t, err)
	require.NotNil(t, src.LastScanned)
	assert.True(t, base.Equal(*src.LastScanned))

	all, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, db.DeleteSource(ctx, id))
	all, err = db.GetAllSources(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSyncState(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	last, err := db.LastSyncAt(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, db.SetLastSyncAt(ctx, "u1", base))
	require.NoError(t, db.SetLastSyncAt(ctx, "u1", base.Add(time.Hour)))

	last, err = db.LastSyncAt(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, base.Add(time.Hour).Equal(*last))
}

func ids(items []*domain.ReviewItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
