package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/match"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/venue"
	"github.com/sanosuguru/go-match-ticket-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/clock"
)

var testStart = time.Date(2025, 5, 10, 18, 0, 0, 0, time.UTC)

// recordingNotifier は送信された通知を記録する
type recordingNotifier struct {
	mu     sync.Mutex
	events []BookingEvent
}

func (n *recordingNotifier) Notify(ctx context.Context, ev BookingEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) types() []EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventType, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Type
	}
	return out
}

// MockPaymentGateway implements PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChargeResult), args.Error(1)
}

func (m *MockPaymentGateway) Refund(ctx context.Context, transactionID string, amount int) error {
	args := m.Called(ctx, transactionID, amount)
	return args.Error(0)
}

// MockBookingExpirer implements BookingExpirer
type MockBookingExpirer struct {
	mock.Mock
}

func (m *MockBookingExpirer) ExpireBooking(ctx context.Context, bookingID string) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

type testEnv struct {
	clk       *clock.Manual
	ledger    *memory.SeatLedger
	bookings  *memory.BookingRepository
	leases    *HoldLeaseManager
	lifecycle *LifecycleController
	service   *BookingService
	seats     *SeatService
	notifier  *recordingNotifier
	venue     *venue.Venue
	match     *match.Match
}

// setupTestEnv はインメモリ実装で全サービスを組み立て、
// 1会場（A〜C列 各4席、1席500）と1試合を作成する
func setupTestEnv(t *testing.T, opts ...BookingServiceOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	clk := clock.NewManual(testStart)
	ledger := memory.NewSeatLedger(clk)
	bookings := memory.NewBookingRepository()
	venues := memory.NewVenueRepository()
	matches := memory.NewMatchRepository()
	notifier := &recordingNotifier{}

	leases := NewHoldLeaseManager(ledger, bookings, WithLeaseClock(clk))
	lifecycle := NewLifecycleController(bookings, leases,
		WithLifecycleClock(clk),
		WithNotifier(notifier),
	)
	opts = append([]BookingServiceOption{WithBookingClock(clk)}, opts...)
	service := NewBookingService(bookings, matches, leases, lifecycle, opts...)

	venueService := NewVenueService(venues, ledger)
	v, err := venueService.CreateVenue(ctx, CreateVenueInput{
		Name: "国立競技場",
		City: "東京",
		Sections: []venue.Section{{
			Name:     "North",
			Category: "standard",
			Price:    500,
			Rows: []venue.Row{
				{Name: "A", Seats: 4},
				{Name: "B", Seats: 4},
				{Name: "C", Seats: 4},
			},
		}},
	})
	require.NoError(t, err)

	m, err := NewMatchService(matches, venues).CreateMatch(ctx, CreateMatchInput{
		VenueID:     v.ID,
		HomeTeam:    "東京FC",
		AwayTeam:    "大阪SC",
		Competition: "リーグ第12節",
		KickoffAt:   testStart.Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)

	return &testEnv{
		clk:       clk,
		ledger:    ledger,
		bookings:  bookings,
		leases:    leases,
		lifecycle: lifecycle,
		service:   service,
		seats:     NewSeatService(ledger, venues, nil),
		notifier:  notifier,
		venue:     v,
		match:     m,
	}
}

func (e *testEnv) key(label string) seat.Key {
	return seat.Key{VenueID: e.venue.ID, Section: "North", Row: label[:1], Number: label[1:]}
}

func (e *testEnv) reserve(t *testing.T, labels ...string) *booking.Booking {
	t.Helper()
	b, err := e.service.Reserve(context.Background(), e.reserveInput(labels...))
	require.NoError(t, err)
	return b
}

func (e *testEnv) reserveInput(labels ...string) ReserveInput {
	keys := make([]seat.Key, len(labels))
	for i, l := range labels {
		keys[i] = e.key(l)
	}
	return ReserveInput{
		MatchID:       e.match.ID,
		VenueID:       e.venue.ID,
		Seats:         keys,
		Contact:       booking.Contact{Name: "山田太郎", Email: "taro@example.com"},
		PaymentMethod: "card",
	}
}

func (e *testEnv) seat(t *testing.T, label string) *seat.Seat {
	t.Helper()
	s, err := e.ledger.Get(context.Background(), e.key(label))
	require.NoError(t, err)
	return s
}

func paid(b *booking.Booking, txn string) booking.PaymentDetails {
	return booking.PaymentDetails{TransactionID: txn, Amount: b.TotalAmount, Method: "card", Succeeded: true}
}
