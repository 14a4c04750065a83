package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/clock"
)

type seatEntry struct {
	mu   sync.Mutex
	seat *seat.Seat
}

// SeatLedger は座席キーで索引したインメモリの座席台帳
//
// 座席ごとにロックを持ち、複数座席の操作はソート済みキーの順でロックを取得する。
// 索引自体は登録時のみ変更されるため RWMutex で保護する。
type SeatLedger struct {
	mu      sync.RWMutex
	entries map[seat.Key]*seatEntry
	clock   clock.Clock
}

// NewSeatLedger は SeatLedger を作成する
func NewSeatLedger(clk clock.Clock) *SeatLedger {
	return &SeatLedger{
		entries: make(map[seat.Key]*seatEntry),
		clock:   clk,
	}
}

func (l *SeatLedger) Register(ctx context.Context, seats []*seat.Seat) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range seats {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, ok := l.entries[s.Key]; ok {
			return fmt.Errorf("%w: %s", seat.ErrSeatAlreadyExists, s.Key)
		}
	}
	for _, s := range seats {
		l.entries[s.Key] = &seatEntry{seat: s.Clone()}
	}
	return nil
}

func (l *SeatLedger) Get(ctx context.Context, key seat.Key) (*seat.Seat, error) {
	e, ok := l.entry(key)
	if !ok {
		return nil, seat.ErrSeatNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seat.Clone(), nil
}

func (l *SeatLedger) ListByVenue(ctx context.Context, venueID string, onlyFree bool) ([]*seat.Seat, error) {
	var out []*seat.Seat
	for _, e := range l.venueEntries(venueID) {
		e.mu.Lock()
		if !onlyFree || e.seat.IsFree() {
			out = append(out, e.seat.Clone())
		}
		e.mu.Unlock()
	}
	return out, nil
}

func (l *SeatLedger) CountFree(ctx context.Context, venueID string) (int, error) {
	count := 0
	for _, e := range l.venueEntries(venueID) {
		e.mu.Lock()
		if e.seat.IsFree() {
			count++
		}
		e.mu.Unlock()
	}
	return count, nil
}

func (l *SeatLedger) TryReserve(ctx context.Context, keys []seat.Key, bookingID string, lease time.Duration) (*seat.Hold, error) {
	entries, unlock, err := l.lockAll(keys)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var conflicts []seat.Key
	for _, e := range entries {
		if !e.seat.IsFree() {
			conflicts = append(conflicts, e.seat.Key)
		}
	}
	if len(conflicts) > 0 {
		return nil, &seat.UnavailableError{Conflicts: conflicts}
	}

	now := l.clock.Now()
	expiresAt := now.Add(lease)
	hold := &seat.Hold{BookingID: bookingID, GrantedAt: now, ExpiresAt: expiresAt}
	for _, e := range entries {
		// 全座席が空席であることを確認済み
		if err := e.seat.Hold(bookingID, expiresAt, now); err != nil {
			return nil, fmt.Errorf("%w: %v", seat.ErrInvariantViolation, err)
		}
		hold.Seats = append(hold.Seats, e.seat.Clone())
	}
	return hold, nil
}

func (l *SeatLedger) Release(ctx context.Context, keys []seat.Key, bookingID string) ([]seat.Key, error) {
	entries, unlock, err := l.lockAll(keys)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := l.clock.Now()
	var released []seat.Key
	for _, e := range entries {
		if e.seat.ReleaseFor(bookingID, now) {
			released = append(released, e.seat.Key)
		}
	}
	return released, nil
}

func (l *SeatLedger) Promote(ctx context.Context, keys []seat.Key, bookingID string) error {
	entries, unlock, err := l.lockAll(keys)
	if err != nil {
		return err
	}
	defer unlock()

	for _, e := range entries {
		if !e.seat.IsHeldBy(bookingID) && !e.seat.IsBookedBy(bookingID) {
			return fmt.Errorf("%w: %s は予約 %s の仮押さえではありません", seat.ErrInvariantViolation, e.seat.Key, bookingID)
		}
	}
	now := l.clock.Now()
	for _, e := range entries {
		if err := e.seat.Promote(bookingID, now); err != nil {
			return err
		}
	}
	return nil
}

func (l *SeatLedger) ExpireStale(ctx context.Context, now time.Time) ([]seat.Expired, error) {
	l.mu.RLock()
	all := make([]*seatEntry, 0, len(l.entries))
	for _, e := range l.entries {
		all = append(all, e)
	}
	l.mu.RUnlock()

	var expired []seat.Expired
	for _, e := range all {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		e.mu.Lock()
		if holder, ok := e.seat.ExpireIfStale(now); ok {
			expired = append(expired, seat.Expired{Key: e.seat.Key, BookingID: holder})
		}
		e.mu.Unlock()
	}
	return expired, nil
}

func (l *SeatLedger) entry(key seat.Key) (*seatEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[key]
	return e, ok
}

func (l *SeatLedger) venueEntries(venueID string) []*seatEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var keys []seat.Key
	for k := range l.entries {
		if k.VenueID == venueID {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	out := make([]*seatEntry, len(keys))
	for i, k := range keys {
		out[i] = l.entries[k]
	}
	return out
}

// lockAll はソート済みキー順に座席ロックを取得する
func (l *SeatLedger) lockAll(keys []seat.Key) ([]*seatEntry, func(), error) {
	normalized, err := seat.NormalizeKeys(keys)
	if err != nil {
		return nil, nil, err
	}
	entries := make([]*seatEntry, len(normalized))
	l.mu.RLock()
	for i, k := range normalized {
		e, ok := l.entries[k]
		if !ok {
			l.mu.RUnlock()
			return nil, nil, fmt.Errorf("%w: %s", seat.ErrSeatNotFound, k)
		}
		entries[i] = e
	}
	l.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
	}
	unlock := func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
		}
	}
	return entries, unlock, nil
}

var _ seat.Ledger = (*SeatLedger)(nil)
