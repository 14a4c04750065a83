package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-match-ticket-booking/internal/config"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
)

const (
	connectAttempts   = 5
	connectRetryDelay = 2 * time.Second
	connMaxLifetime   = 30 * time.Minute
)

// NewConnection はPostgreSQLへ接続する。
// コンテナ起動直後はDBが未起動のことがあるため数回まで再試行する
func NewConnection(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := sqlx.Connect("postgres", cfg.DSN())
		if err == nil {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
			db.SetMaxIdleConns(cfg.MaxIdleConns)
			db.SetConnMaxLifetime(connMaxLifetime)
			return db, nil
		}
		lastErr = err
		if attempt < connectAttempts {
			logger.Warn("データベース接続を再試行",
				zap.String("host", cfg.Host),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			time.Sleep(connectRetryDelay)
		}
	}
	return nil, fmt.Errorf("データベース接続に失敗しました: %w", lastErr)
}

// Ping はヘルスチェック用にデータベース接続を確認する
func Ping(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
