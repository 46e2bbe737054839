package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pseudotv/pseudotv/internal/models"
)

func countingFetch(calls *int, videos []models.VideoDescriptor) FetchFunc {
	return func(context.Context) ([]models.VideoDescriptor, error) {
		*calls++
		return videos, nil
	}
}

func TestCacheHitWithinTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache().WithClock(func() time.Time { return now })

	calls := 0
	fetch := countingFetch(&calls, descriptors("v1"))

	got, fromCache, err := c.Get(context.Background(), "k", time.Hour, fetch)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, []string{"v1"}, ids(got))

	got, fromCache, err = c.Get(context.Background(), "k", time.Hour, fetch)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, []string{"v1"}, ids(got))
	assert.Equal(t, 1, calls)
}

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache().WithClock(func() time.Time { return now })

	calls := 0
	fetch := countingFetch(&calls, descriptors("v1"))

	_, _, err := c.Get(context.Background(), "k", time.Hour, fetch)
	require.NoError(t, err)

	now = now.Add(61 * time.Minute)

	_, fromCache, err := c.Get(context.Background(), "k", time.Hour, fetch)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 2, calls)
}

func TestCacheZeroTTLBypasses(t *testing.T) {
	c := NewCache()

	calls := 0
	fetch := countingFetch(&calls, descriptors("v1"))

	for i := 0; i < 2; i++ {
		_, fromCache, err := c.Get(context.Background(), "k", 0, fetch)
		require.NoError(t, err)
		assert.False(t, fromCache)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Len())
}

func TestCacheFetchErrorNotStored(t *testing.T) {
	c := NewCache()
	boom := errors.New("fetch failed")

	_, _, err := c.Get(context.Background(), "k", time.Hour, func(context.Context) ([]models.VideoDescriptor, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	// A later successful fetch populates the entry normally.
	calls := 0
	_, fromCache, err := c.Get(context.Background(), "k", time.Hour, countingFetch(&calls, descriptors("v1")))
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 1, c.Len())
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache()

	calls := 0
	fetch := countingFetch(&calls, descriptors("v1"))

	_, _, err := c.Get(context.Background(), "k", time.Hour, fetch)
	require.NoError(t, err)

	c.Invalidate("k")

	_, fromCache, err := c.Get(context.Background(), "k", time.Hour, fetch)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 2, calls)
}

func TestCacheKeysAreIndependent(t *testing.T) {
	c := NewCache()

	callsA, callsB := 0, 0
	_, _, err := c.Get(context.Background(), "a", time.Hour, countingFetch(&callsA, descriptors("va")))
	require.NoError(t, err)
	_, _, err = c.Get(context.Background(), "b", time.Hour, countingFetch(&callsB, descriptors("vb")))
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())

	got, fromCache, err := c.Get(context.Background(), "a", time.Hour, countingFetch(&callsA, nil))
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, []string{"va"}, ids(got))
	assert.Equal(t, 1, callsA)
}
