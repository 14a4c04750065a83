package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-match-ticket-booking/internal/application"
)

// AvailabilityCache は会場ごとの空席数をキャッシュする
type AvailabilityCache struct {
	client *redis.Client
}

func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

// GetFreeCount は空席数を取得する。キャッシュに無ければ ok=false
func (c *AvailabilityCache) GetFreeCount(ctx context.Context, venueID string) (int, bool, error) {
	val, err := c.client.Get(ctx, c.freeCountKey(venueID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, true, nil
}

func (c *AvailabilityCache) SetFreeCount(ctx context.Context, venueID string, count int, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.freeCountKey(venueID), count, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, venueID string) error {
	if err := c.client.Del(ctx, c.freeCountKey(venueID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) freeCountKey(venueID string) string {
	return fmt.Sprintf("venue:%s:free_seats", venueID)
}

var _ application.AvailabilityCache = (*AvailabilityCache)(nil)
