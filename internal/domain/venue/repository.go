package venue

import "context"

// Repository は会場リポジトリのインターフェース
type Repository interface {
	Create(ctx context.Context, v *Venue) error
	GetByID(ctx context.Context, id string) (*Venue, error)
	List(ctx context.Context, limit, offset int) ([]*Venue, error)
}
