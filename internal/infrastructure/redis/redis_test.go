package redis

import (
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-match-ticket-booking/internal/config"
)

// setupTestRedis はローカルのRedisに接続する。未起動ならテストをスキップする
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client, err := NewClient(&config.RedisConfig{Host: "localhost", Port: "6379", DB: 15})
	if err != nil {
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { client.Close() })
	return client
}
