package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10, time.Minute)

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	assert.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	got, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestLRUExpiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRU(10, time.Minute)
	c.now = func() time.Time { return clock }

	assert.NoError(t, c.Set(ctx, "k", []byte("v"), 30*time.Second))
	clock = clock.Add(29 * time.Second)
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	clock = clock.Add(time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, time.Minute)

	assert.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	assert.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	_, _ = c.Get(ctx, "a")
	assert.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestLRUInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10, time.Minute)
	for _, k := range []string{"progress:u1:completion", "progress:u1:other", "progress:u12:completion", "progress:u2:completion"} {
		assert.NoError(t, c.Set(ctx, k, []byte("x"), 0))
	}

	assert.NoError(t, c.Invalidate(ctx, "progress:u1:*"))
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, "progress:u12:completion")
	assert.True(t, ok, "prefix match stops at the owner separator")

	assert.NoError(t, c.Invalidate(ctx, "progress:u2:completion"))
	assert.Equal(t, 1, c.Len())
}
