package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityCache(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewAvailabilityCache(client)
	ctx := context.Background()
	venueID := "test-venue-123"
	t.Cleanup(func() { cache.Invalidate(ctx, venueID) })

	t.Run("キャッシュミス時は ok=false", func(t *testing.T) {
		_, ok, err := cache.GetFreeCount(ctx, venueID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("キャッシュにセットした値を取得できる", func(t *testing.T) {
		require.NoError(t, cache.SetFreeCount(ctx, venueID, 100, 30*time.Second))

		count, ok, err := cache.GetFreeCount(ctx, venueID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 100, count)
	})

	t.Run("キャッシュを無効化できる", func(t *testing.T) {
		require.NoError(t, cache.SetFreeCount(ctx, venueID, 50, 30*time.Second))
		require.NoError(t, cache.Invalidate(ctx, venueID))

		_, ok, err := cache.GetFreeCount(ctx, venueID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("TTL経過で消える", func(t *testing.T) {
		require.NoError(t, cache.SetFreeCount(ctx, venueID, 10, 100*time.Millisecond))
		time.Sleep(200 * time.Millisecond)

		_, ok, err := cache.GetFreeCount(ctx, venueID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
