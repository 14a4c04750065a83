package seat

import (
	"context"
	"time"
)

// Hold は予約に紐づく期限付きの排他的な座席確保
type Hold struct {
	BookingID string
	Seats     []*Seat // 確保時点のスナップショット
	GrantedAt time.Time
	ExpiresAt time.Time
}

// Keys は確保した座席のキー一覧を返す
func (h *Hold) Keys() []Key {
	keys := make([]Key, len(h.Seats))
	for i, s := range h.Seats {
		keys[i] = s.Key
	}
	return keys
}

// Expired は期限切れで解放された座席と、その保持予約
type Expired struct {
	Key       Key
	BookingID string
}

// Ledger は座席在庫の台帳。座席状態を変更できる唯一のコンポーネント
//
// TryReserve / Release / Promote / ExpireStale は重なる座席集合に対して互いにアトミックであり、
// 失敗時には一切の状態変更を残さない。
type Ledger interface {
	// Register は会場設定時に空席として座席を登録する
	Register(ctx context.Context, seats []*Seat) error

	// Get は座席を取得する
	Get(ctx context.Context, key Key) (*Seat, error)

	// ListByVenue は会場の座席一覧を取得する
	ListByVenue(ctx context.Context, venueID string, onlyFree bool) ([]*Seat, error)

	// CountFree は会場の空席数を返す
	CountFree(ctx context.Context, venueID string) (int, error)

	// TryReserve は全座席が空席の場合のみ、全座席を仮押さえにする（all-or-nothing）
	// 1席でも空席でなければ *UnavailableError を返し、何も変更しない
	TryReserve(ctx context.Context, keys []Key, bookingID string, lease time.Duration) (*Hold, error)

	// Release は bookingID が保持している座席を空席に戻す。それ以外の座席には何もしない（冪等）
	Release(ctx context.Context, keys []Key, bookingID string) ([]Key, error)

	// Promote は bookingID の仮押さえを購入済みにする。既に同じ予約で購入済みの座席はそのまま
	// いずれかの座席がその予約の仮押さえでなければ ErrInvariantViolation を返し、何も変更しない
	Promote(ctx context.Context, keys []Key, bookingID string) error

	// ExpireStale は holdExpiresAt <= now の仮押さえを全て空席に戻す
	ExpireStale(ctx context.Context, now time.Time) ([]Expired, error)
}

// BookingIDs は解放された座席の保持予約IDを重複なく返す
func BookingIDs(expired []Expired) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range expired {
		if e.BookingID == "" {
			continue
		}
		if _, ok := seen[e.BookingID]; ok {
			continue
		}
		seen[e.BookingID] = struct{}{}
		ids = append(ids, e.BookingID)
	}
	return ids
}
