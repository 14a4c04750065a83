package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-match-ticket-booking/internal/config"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/clock"
)

var testNow = time.Date(2025, 5, 10, 18, 0, 0, 0, time.UTC)

func key(row, number string) seat.Key {
	return seat.Key{VenueID: "venue-1", Section: "North", Row: row, Number: number}
}

// setupTestDB はローカルのPostgreSQLに接続してスキーマを作り直す。未起動ならテストをスキップする
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	cfg := config.Load()
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		t.Skip("PostgreSQL not available")
	}
	t.Cleanup(func() { db.Close() })
	require.NoError(t, RunMigrations(db, "../../../migrations"))

	db.MustExec("TRUNCATE TABLE booking_tickets, bookings, seats, matches, venues CASCADE")
	db.MustExec(`INSERT INTO venues (id, name, sections, created_at, updated_at) VALUES ('venue-1', 'テストスタジアム', '[]', $1, $1)`, testNow)
	db.MustExec(`INSERT INTO matches (id, venue_id, home_team, away_team, kickoff_at, status, created_at, updated_at)
		VALUES ('match-1', 'venue-1', 'ホーム', 'アウェイ', $1, 'scheduled', $1, $1)`, testNow.Add(48*time.Hour))
	return db
}

func setupLedger(t *testing.T, db *sqlx.DB, keys ...seat.Key) *SeatLedger {
	t.Helper()
	l := NewSeatLedger(db, clock.NewManual(testNow))
	seats := make([]*seat.Seat, len(keys))
	for i, k := range keys {
		seats[i] = seat.NewSeat(k, "standard", 500)
	}
	require.NoError(t, l.Register(context.Background(), seats))
	return l
}

func TestBusyConflict(t *testing.T) {
	keys := []seat.Key{key("A", "1"), key("A", "2"), key("A", "3")}
	held := seat.NewSeat(key("A", "3"), "standard", 500)
	require.NoError(t, held.Hold("booking-9", testNow.Add(time.Minute), testNow))
	free := seat.NewSeat(key("A", "2"), "standard", 500)

	err := busyConflict(keys, []*seat.Seat{free, held}, []seat.Key{key("A", "1")})

	var unavailable *seat.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, []seat.Key{key("A", "1"), key("A", "3")}, unavailable.Conflicts)
	assert.ErrorIs(t, err, seat.ErrSeatUnavailable)
}

func TestSeatLedger_TryReserve_BusySeat(t *testing.T) {
	db := setupTestDB(t)
	l := setupLedger(t, db, key("A", "1"), key("A", "2"))
	ctx := context.Background()

	// 別トランザクションが A1 の行ロックを保持している
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	tx.MustExec(`SELECT 1 FROM seats WHERE venue_id = 'venue-1' AND section = 'North' AND row_name = 'A' AND number = '1' FOR UPDATE`)

	t.Run("ロック中の座席は待たずに競合になる", func(t *testing.T) {
		reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		_, err := l.TryReserve(reqCtx, []seat.Key{key("A", "1"), key("A", "2")}, "booking-1", 10*time.Minute)

		var unavailable *seat.UnavailableError
		require.True(t, errors.As(err, &unavailable), "got %v", err)
		assert.Equal(t, []seat.Key{key("A", "1")}, unavailable.Conflicts)
		assert.NoError(t, reqCtx.Err())

		s, err := l.Get(ctx, key("A", "2"))
		require.NoError(t, err)
		assert.True(t, s.IsFree())
	})

	t.Run("存在しない座席は競合ではなく未登録エラー", func(t *testing.T) {
		_, err := l.TryReserve(ctx, []seat.Key{key("A", "1"), key("Z", "9")}, "booking-2", 10*time.Minute)

		assert.ErrorIs(t, err, seat.ErrSeatNotFound)
	})

	t.Run("ロックが外れれば仮押さえできる", func(t *testing.T) {
		require.NoError(t, tx.Rollback())

		hold, err := l.TryReserve(ctx, []seat.Key{key("A", "1"), key("A", "2")}, "booking-3", 10*time.Minute)

		require.NoError(t, err)
		assert.Len(t, hold.Seats, 2)
	})
}

func newPendingBooking(id, code string) *booking.Booking {
	b := booking.NewBooking(booking.NewBookingInput{
		ID:            id,
		Code:          code,
		VenueID:       "venue-1",
		MatchID:       "match-1",
		Contact:       booking.Contact{Name: "田中", Email: "tanaka@example.com"},
		PaymentMethod: "card",
		Seats:         []*seat.Seat{seat.NewSeat(key("A", "1"), "standard", 500)},
		HoldExpiresAt: testNow.Add(10 * time.Minute),
		Now:           testNow,
	})
	booking.Pricing{}.Apply(b)
	return b
}

func TestBookingRepository_TicketIDUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()

	first := newPendingBooking("b-1", "AB12CD34")
	second := newPendingBooking("b-2", "ZZ99YY88")
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	first.GenerateTicketIDs()
	require.NoError(t, repo.Update(ctx, first))

	second.Tickets[0].TicketID = first.Tickets[0].TicketID
	err := repo.Update(ctx, second)

	assert.ErrorIs(t, err, booking.ErrDuplicateTicketID)
	stored, err := repo.GetByID(ctx, "b-2")
	require.NoError(t, err)
	assert.Empty(t, stored.Tickets[0].TicketID)
	assert.Equal(t, 0, stored.Version)
}
