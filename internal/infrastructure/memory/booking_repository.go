package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
)

// BookingRepository は予約リポジトリのインメモリ実装
// 予約コードとチケットIDの一意制約と、バージョンによる楽観的ロックを持つ
type BookingRepository struct {
	mu       sync.RWMutex
	byID     map[string]*booking.Booking
	byCode   map[string]string
	byTicket map[string]string
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		byID:     make(map[string]*booking.Booking),
		byCode:   make(map[string]string),
		byTicket: make(map[string]string),
	}
}

func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCode[b.Code]; ok {
		return booking.ErrDuplicateBookingCode
	}
	if r.ticketTaken(b) {
		return booking.ErrDuplicateTicketID
	}
	r.byID[b.ID] = b.Clone()
	r.byCode[b.Code] = b.ID
	r.indexTickets(b)
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byID[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *BookingRepository) GetByCode(ctx context.Context, code string) (*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCode[code]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *BookingRepository) ListByEmail(ctx context.Context, email string, limit, offset int) ([]*booking.Booking, error) {
	r.mu.RLock()
	var matched []*booking.Booking
	for _, b := range r.byID {
		if b.Contact.Email == email {
			matched = append(matched, b.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, limit, offset), nil
}

func (r *BookingRepository) Update(ctx context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[b.ID]
	if !ok {
		return booking.ErrBookingNotFound
	}
	if current.Version != b.Version {
		return booking.ErrOptimisticLockConflict
	}
	if r.ticketTaken(b) {
		return booking.ErrDuplicateTicketID
	}
	b.Version++
	r.byID[b.ID] = b.Clone()
	r.indexTickets(b)
	return nil
}

// ticketTaken は b のチケットIDが他の予約で使われているか
func (r *BookingRepository) ticketTaken(b *booking.Booking) bool {
	for _, t := range b.Tickets {
		if t.TicketID == "" {
			continue
		}
		if owner, ok := r.byTicket[t.TicketID]; ok && owner != b.ID {
			return true
		}
	}
	return false
}

func (r *BookingRepository) indexTickets(b *booking.Booking) {
	for _, t := range b.Tickets {
		if t.TicketID != "" {
			r.byTicket[t.TicketID] = b.ID
		}
	}
}

func (r *BookingRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*booking.Booking, error) {
	r.mu.RLock()
	var out []*booking.Booking
	for _, b := range r.byID {
		if b.Status == booking.StatusPending && b.LeaseElapsed(now) {
			out = append(out, b.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].HoldExpiresAt.Before(out[j].HoldExpiresAt) })
	return page(out, limit, 0), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ booking.Repository = (*BookingRepository)(nil)
