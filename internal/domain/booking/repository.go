package booking

import (
	"context"
	"time"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を保存する（予約コードが重複した場合 ErrDuplicateBookingCode）
	Create(ctx context.Context, b *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByCode は予約コードから予約を取得する
	GetByCode(ctx context.Context, code string) (*Booking, error)

	// ListByEmail は連絡先メールアドレスから予約一覧を取得する
	ListByEmail(ctx context.Context, email string, limit, offset int) ([]*Booking, error)

	// Update は予約を更新する（楽観的ロック）
	Update(ctx context.Context, b *Booking) error

	// ListExpiredPending は仮押さえ期限を過ぎた保留中予約を取得する
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Booking, error)
}
