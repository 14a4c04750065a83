package seat

import (
	"fmt"
	"sort"
	"time"
)

// Availability は座席の在庫状態を表す
type Availability string

const (
	Free   Availability = "free"
	Held   Availability = "held"
	Booked Availability = "booked"
)

// Key は座席の不変な識別子 (venueID, section, row, number)
type Key struct {
	VenueID string `json:"venue_id"`
	Section string `json:"section"`
	Row     string `json:"row"`
	Number  string `json:"number"`
}

// Label は会場内で表示される座席ラベル（例: "C1"）を返す
func (k Key) Label() string {
	return k.Row + k.Number
}

// QualifiedLabel はセクション名付きのラベル（例: "North C1"）を返す
func (k Key) QualifiedLabel() string {
	if k.Section == "" {
		return k.Label()
	}
	return k.Section + " " + k.Label()
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s%s", k.VenueID, k.Section, k.Row, k.Number)
}

// Validate はキーの各要素が揃っているかを検証する
func (k Key) Validate() error {
	switch {
	case k.VenueID == "":
		return ErrVenueIDRequired
	case k.Section == "":
		return ErrSectionRequired
	case k.Row == "":
		return ErrRowRequired
	case k.Number == "":
		return ErrSeatNumberRequired
	}
	return nil
}

func (k Key) less(o Key) bool {
	if k.VenueID != o.VenueID {
		return k.VenueID < o.VenueID
	}
	if k.Section != o.Section {
		return k.Section < o.Section
	}
	if k.Row != o.Row {
		return k.Row < o.Row
	}
	return k.Number < o.Number
}

// NormalizeKeys は重複を除いてソートしたキー一覧を返す
// ロック順序を固定してデッドロックを防ぐため、台帳の全操作はこの順序で座席を扱う
func NormalizeKeys(keys []Key) ([]Key, error) {
	if len(keys) == 0 {
		return nil, ErrNoSeatsRequested
	}
	seen := make(map[Key]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if err := k.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out, nil
}

// Seat は座席エンティティを表す
type Seat struct {
	Key
	Category        string
	Price           int
	Availability    Availability
	HolderBookingID *string
	HoldExpiresAt   *time.Time
	UpdatedAt       time.Time
	Version         int // 楽観的ロック用
}

// NewSeat は空席状態の座席を作成する
func NewSeat(key Key, category string, price int) *Seat {
	return &Seat{
		Key:          key,
		Category:     category,
		Price:        price,
		Availability: Free,
		UpdatedAt:    time.Now().UTC(),
	}
}

// IsFree は座席が予約可能かを返す
func (s *Seat) IsFree() bool {
	return s.Availability == Free
}

// IsHeldBy は座席が指定予約によって仮押さえされているかを返す
func (s *Seat) IsHeldBy(bookingID string) bool {
	return s.Availability == Held && s.HolderBookingID != nil && *s.HolderBookingID == bookingID
}

// IsBookedBy は座席が指定予約によって購入済みかを返す
func (s *Seat) IsBookedBy(bookingID string) bool {
	return s.Availability == Booked && s.HolderBookingID != nil && *s.HolderBookingID == bookingID
}

// Hold は座席を仮押さえ状態にする
func (s *Seat) Hold(bookingID string, expiresAt, now time.Time) error {
	if !s.IsFree() {
		return ErrSeatUnavailable
	}
	id := bookingID
	exp := expiresAt
	s.Availability = Held
	s.HolderBookingID = &id
	s.HoldExpiresAt = &exp
	s.touch(now)
	return nil
}

// Promote は仮押さえを購入済みに昇格する。同じ予約で既に購入済みなら何もしない
func (s *Seat) Promote(bookingID string, now time.Time) error {
	if s.IsBookedBy(bookingID) {
		return nil
	}
	if !s.IsHeldBy(bookingID) {
		return fmt.Errorf("%w: %s は予約 %s の仮押さえではありません", ErrInvariantViolation, s.Key, bookingID)
	}
	s.Availability = Booked
	s.HoldExpiresAt = nil
	s.touch(now)
	return nil
}

// ReleaseFor は指定予約が保持している座席を解放する。解放した場合 true を返す
func (s *Seat) ReleaseFor(bookingID string, now time.Time) bool {
	if !s.IsHeldBy(bookingID) && !s.IsBookedBy(bookingID) {
		return false
	}
	s.release(now)
	return true
}

// ExpireIfStale は期限切れの仮押さえを解放し、解放前の保持予約IDを返す
func (s *Seat) ExpireIfStale(now time.Time) (string, bool) {
	if s.Availability != Held || s.HoldExpiresAt == nil || s.HoldExpiresAt.After(now) {
		return "", false
	}
	holder := ""
	if s.HolderBookingID != nil {
		holder = *s.HolderBookingID
	}
	s.release(now)
	return holder, true
}

func (s *Seat) release(now time.Time) {
	s.Availability = Free
	s.HolderBookingID = nil
	s.HoldExpiresAt = nil
	s.touch(now)
}

func (s *Seat) touch(now time.Time) {
	s.UpdatedAt = now
	s.Version++
}

// CheckInvariant は状態と保持情報の整合性を検証する
func (s *Seat) CheckInvariant() error {
	switch s.Availability {
	case Free:
		if s.HolderBookingID != nil || s.HoldExpiresAt != nil {
			return fmt.Errorf("%w: 空席 %s に保持情報が残っています", ErrInvariantViolation, s.Key)
		}
	case Held:
		if s.HolderBookingID == nil || s.HoldExpiresAt == nil {
			return fmt.Errorf("%w: 仮押さえ %s に保持情報がありません", ErrInvariantViolation, s.Key)
		}
	case Booked:
		if s.HolderBookingID == nil || s.HoldExpiresAt != nil {
			return fmt.Errorf("%w: 購入済み %s の保持情報が不正です", ErrInvariantViolation, s.Key)
		}
	default:
		return fmt.Errorf("%w: 不明な状態 %q", ErrInvariantViolation, s.Availability)
	}
	return nil
}

// Validate は座席の検証を行う
func (s *Seat) Validate() error {
	if err := s.Key.Validate(); err != nil {
		return err
	}
	if s.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// Clone は座席のコピーを返す
func (s *Seat) Clone() *Seat {
	c := *s
	if s.HolderBookingID != nil {
		id := *s.HolderBookingID
		c.HolderBookingID = &id
	}
	if s.HoldExpiresAt != nil {
		t := *s.HoldExpiresAt
		c.HoldExpiresAt = &t
	}
	return &c
}
