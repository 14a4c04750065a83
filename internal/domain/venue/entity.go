package venue

import (
	"strconv"
	"time"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
)

// Row は座席の列
type Row struct {
	Name  string
	Seats int
}

// Section は同じカテゴリ・価格の座席ブロック
type Section struct {
	Name     string
	Category string
	Price    int
	Rows     []Row
}

// Venue は座席マップを持つ会場エンティティ
type Venue struct {
	ID        string
	Name      string
	City      string
	Sections  []Section
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

// NewVenue は新しい会場を作成する
func NewVenue(name, city string, sections []Section) *Venue {
	now := time.Now().UTC()
	return &Venue{
		Name:      name,
		City:      city,
		Sections:  sections,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Capacity は会場の総座席数を返す
func (v *Venue) Capacity() int {
	total := 0
	for _, s := range v.Sections {
		for _, r := range s.Rows {
			total += r.Seats
		}
	}
	return total
}

// Seats は座席マップから空席状態の座席一覧を生成する
// 座席番号は列ごとに1から振る
func (v *Venue) Seats() []*seat.Seat {
	seats := make([]*seat.Seat, 0, v.Capacity())
	for _, s := range v.Sections {
		for _, r := range s.Rows {
			for i := 1; i <= r.Seats; i++ {
				key := seat.Key{VenueID: v.ID, Section: s.Name, Row: r.Name, Number: strconv.Itoa(i)}
				seats = append(seats, seat.NewSeat(key, s.Category, s.Price))
			}
		}
	}
	return seats
}

// MinPrice は価格が設定されたセクションの最安値を返す
// 価格付きのセクションが無い場合は ok=false
func (v *Venue) MinPrice() (int, bool) {
	return v.priceBound(func(a, b int) bool { return a < b })
}

// MaxPrice は価格が設定されたセクションの最高値を返す
func (v *Venue) MaxPrice() (int, bool) {
	return v.priceBound(func(a, b int) bool { return a > b })
}

func (v *Venue) priceBound(better func(a, b int) bool) (int, bool) {
	found := false
	bound := 0
	for _, s := range v.Sections {
		if s.Price <= 0 {
			continue
		}
		if !found || better(s.Price, bound) {
			bound = s.Price
			found = true
		}
	}
	return bound, found
}

// Validate は会場の検証を行う
func (v *Venue) Validate() error {
	if v.Name == "" {
		return ErrVenueNameRequired
	}
	if len(v.Sections) == 0 {
		return ErrSectionsRequired
	}
	names := make(map[string]struct{}, len(v.Sections))
	for _, s := range v.Sections {
		if s.Name == "" {
			return ErrSectionNameRequired
		}
		if _, ok := names[s.Name]; ok {
			return ErrDuplicateSection
		}
		names[s.Name] = struct{}{}
		if s.Price < 0 {
			return ErrInvalidPrice
		}
		if len(s.Rows) == 0 {
			return ErrRowsRequired
		}
		for _, r := range s.Rows {
			if r.Name == "" || r.Seats <= 0 {
				return ErrInvalidRow
			}
		}
	}
	return nil
}
