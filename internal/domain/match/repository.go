package match

import "context"

// Repository は試合リポジトリのインターフェース
type Repository interface {
	// Create は新しい試合を作成する
	Create(ctx context.Context, m *Match) error

	// GetByID はIDから試合を取得する
	GetByID(ctx context.Context, id string) (*Match, error)

	// List は試合一覧をキックオフ順に取得する
	List(ctx context.Context, limit, offset int) ([]*Match, error)

	// Update は試合を更新する（楽観的ロック）
	Update(ctx context.Context, m *Match) error
}
