package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/match"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
)

func TestBookingService_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("2席を仮押さえして保留中の予約を作成できる", func(t *testing.T) {
		env := setupTestEnv(t)

		b := env.reserve(t, "A1", "A2")

		assert.Equal(t, booking.StatusPending, b.Status)
		assert.Equal(t, booking.PaymentPending, b.PaymentStatus)
		assert.Len(t, b.Code, 8)
		assert.Regexp(t, `^[A-Z0-9]{8}$`, b.Code)
		assert.Equal(t, 1000, b.Subtotal)
		assert.Equal(t, 50, b.Taxes)
		assert.Equal(t, 20, b.Fees)
		assert.Equal(t, 1070, b.TotalAmount)
		assert.Equal(t, b.CreatedAt.Add(LeaseDuration), b.HoldExpiresAt)
		assert.Equal(t, testStart.Add(10*time.Minute), b.HoldExpiresAt)
		for _, tk := range b.Tickets {
			assert.Empty(t, tk.TicketID, "チケットIDは確定時にのみ採番される")
		}

		for _, l := range []string{"A1", "A2"} {
			s := env.seat(t, l)
			assert.Equal(t, seat.Held, s.Availability)
			assert.True(t, s.IsHeldBy(b.ID))
		}

		stored, err := env.service.GetBookingByCode(ctx, b.Code)
		require.NoError(t, err)
		assert.Equal(t, b.ID, stored.ID)
	})

	t.Run("返金期限はキックオフの24時間前", func(t *testing.T) {
		env := setupTestEnv(t)

		b := env.reserve(t, "B1")

		require.NotNil(t, b.CancellationPolicy.RefundUntil)
		assert.Equal(t, env.match.KickoffAt.Add(-24*time.Hour), *b.CancellationPolicy.RefundUntil)
		assert.Equal(t, 100, b.CancellationPolicy.CancellationFee)
	})

	t.Run("1席でも埋まっていれば何も押さえずに失敗する", func(t *testing.T) {
		env := setupTestEnv(t)
		env.reserve(t, "A2")

		_, err := env.service.Reserve(ctx, env.reserveInput("A1", "A2"))

		require.ErrorIs(t, err, seat.ErrSeatUnavailable)
		var ue *seat.UnavailableError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, []string{"North A2"}, ue.ConflictLabels())
		assert.Equal(t, seat.Free, env.seat(t, "A1").Availability)
	})

	t.Run("存在しない座席は失敗する", func(t *testing.T) {
		env := setupTestEnv(t)

		_, err := env.service.Reserve(ctx, env.reserveInput("Z9"))

		assert.ErrorIs(t, err, seat.ErrSeatNotFound)
	})

	t.Run("別会場の試合は拒否する", func(t *testing.T) {
		env := setupTestEnv(t)
		input := env.reserveInput("A1")
		input.VenueID = "other-venue"

		_, err := env.service.Reserve(ctx, input)

		assert.ErrorIs(t, err, match.ErrVenueMismatch)
	})

	t.Run("キックオフ後は予約できない", func(t *testing.T) {
		env := setupTestEnv(t)
		env.clk.Set(env.match.KickoffAt)

		_, err := env.service.Reserve(ctx, env.reserveInput("A1"))

		assert.ErrorIs(t, err, match.ErrMatchNotOpen)
	})

	t.Run("連絡先が無ければ座席を押さえない", func(t *testing.T) {
		env := setupTestEnv(t)
		input := env.reserveInput("A1")
		input.Contact = booking.Contact{}

		_, err := env.service.Reserve(ctx, input)

		assert.ErrorIs(t, err, booking.ErrContactRequired)
		assert.Equal(t, seat.Free, env.seat(t, "A1").Availability)
	})
}

func TestBookingService_Reserve_CodeCollision(t *testing.T) {
	ctx := context.Background()

	t.Run("予約コードが衝突したら再生成する", func(t *testing.T) {
		codes := []string{"AAAA1111", "AAAA1111", "BBBB2222"}
		var i int
		env := setupTestEnv(t, WithCodeGenerator(func() (string, error) {
			c := codes[i]
			i++
			return c, nil
		}))

		first := env.reserve(t, "A1")
		second := env.reserve(t, "A2")

		assert.Equal(t, "AAAA1111", first.Code)
		assert.Equal(t, "BBBB2222", second.Code)
	})

	t.Run("再生成の上限を超えたら仮押さえを戻して失敗する", func(t *testing.T) {
		env := setupTestEnv(t, WithCodeGenerator(func() (string, error) {
			return "SAMECODE", nil
		}))
		env.reserve(t, "A1")

		_, err := env.service.Reserve(ctx, env.reserveInput("A2"))

		assert.ErrorIs(t, err, booking.ErrDuplicateBookingCode)
		assert.Equal(t, seat.Free, env.seat(t, "A2").Availability)
	})
}

func TestBookingService_Reserve_Concurrent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	const workers = 30
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.service.Reserve(ctx, env.reserveInput("C1"))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, seat.ErrSeatUnavailable):
				var ue *seat.UnavailableError
				if errors.As(err, &ue) && len(ue.ConflictLabels()) == 1 && ue.ConflictLabels()[0] == "North C1" {
					conflicts.Add(1)
				}
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), conflicts.Load())
	assert.Equal(t, seat.Held, env.seat(t, "C1").Availability)
}

func TestBookingService_Pay(t *testing.T) {
	ctx := context.Background()

	t.Run("決済成功で予約が確定する", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		env := setupTestEnv(t, WithPaymentGateway(gw))
		b := env.reserve(t, "A1", "A2")
		gw.On("Charge", mock.Anything, mock.MatchedBy(func(req ChargeRequest) bool {
			return req.BookingID == b.ID && req.Amount == 1070
		})).Return(&ChargeResult{TransactionID: "txn-1", Amount: 1070, Approved: true}, nil)

		got, err := env.service.Pay(ctx, b.ID, "card")

		require.NoError(t, err)
		assert.Equal(t, booking.StatusConfirmed, got.Status)
		assert.Equal(t, "txn-1", got.TransactionID)
		gw.AssertExpectations(t)
		gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("決済が拒否されたら保留中のまま支払い失敗を記録する", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		env := setupTestEnv(t, WithPaymentGateway(gw))
		b := env.reserve(t, "A1")
		gw.On("Charge", mock.Anything, mock.Anything).
			Return(&ChargeResult{TransactionID: "txn-2", Amount: b.TotalAmount, Approved: false, DeclineReason: "insufficient_funds"}, nil)

		got, err := env.service.Pay(ctx, b.ID, "card")

		assert.ErrorIs(t, err, booking.ErrPaymentFailed)
		require.NotNil(t, got)
		assert.Equal(t, booking.StatusPending, got.Status)
		assert.Equal(t, booking.PaymentFailed, got.PaymentStatus)
		assert.Equal(t, seat.Held, env.seat(t, "A1").Availability)
	})

	t.Run("期限切れの予約はゲートウェイを呼ばない", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		env := setupTestEnv(t, WithPaymentGateway(gw))
		b := env.reserve(t, "A1")
		env.clk.Advance(LeaseDuration + time.Second)

		_, err := env.service.Pay(ctx, b.ID, "card")

		assert.ErrorIs(t, err, booking.ErrLeaseExpired)
		gw.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	})

	t.Run("決済後に確定できなければ返金する", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		env := setupTestEnv(t, WithPaymentGateway(gw))
		b := env.reserve(t, "A1")
		// ゲートウェイが誤った金額で決済した場合
		gw.On("Charge", mock.Anything, mock.Anything).
			Return(&ChargeResult{TransactionID: "txn-3", Amount: 1, Approved: true}, nil)
		gw.On("Refund", mock.Anything, "txn-3", 1).Return(nil)

		_, err := env.service.Pay(ctx, b.ID, "card")

		assert.ErrorIs(t, err, booking.ErrPaymentMismatch)
		gw.AssertExpectations(t)
	})

	t.Run("スイープ後の支払いはゲートウェイを呼ばず LeaseExpired", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		env := setupTestEnv(t, WithPaymentGateway(gw))
		b := env.reserve(t, "A1")
		env.clk.Advance(LeaseDuration + time.Minute)
		_, err := env.leases.Sweep(ctx, env.lifecycle)
		require.NoError(t, err)

		_, err = env.service.Pay(ctx, b.ID, "card")

		assert.ErrorIs(t, err, booking.ErrLeaseExpired)
		gw.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	})

	t.Run("ゲートウェイ未設定ならエラー", func(t *testing.T) {
		env := setupTestEnv(t)
		b := env.reserve(t, "A1")

		_, err := env.service.Pay(ctx, b.ID, "card")

		assert.ErrorIs(t, err, ErrPaymentGatewayUnavailable)
	})
}

func TestBookingService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("キャンセルすると返金額をゲートウェイに送る", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		env := setupTestEnv(t, WithPaymentGateway(gw))
		b := env.reserve(t, "A1", "A2")
		_, err := env.service.Confirm(ctx, b.ID, paid(b, "txn-9"))
		require.NoError(t, err)
		gw.On("Refund", mock.Anything, "txn-9", 970).Return(nil).Once()

		got, err := env.service.Cancel(ctx, b.ID, "都合が悪くなった")
		require.NoError(t, err)
		assert.Equal(t, booking.StatusRefunded, got.Status)

		// 2回目は返金しない
		_, err = env.service.Cancel(ctx, b.ID, "都合が悪くなった")
		require.NoError(t, err)
		gw.AssertExpectations(t)
	})

	t.Run("返金に失敗してもキャンセルは維持される", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		env := setupTestEnv(t, WithPaymentGateway(gw))
		b := env.reserve(t, "A1")
		_, err := env.service.Confirm(ctx, b.ID, paid(b, "txn-10"))
		require.NoError(t, err)
		gw.On("Refund", mock.Anything, "txn-10", mock.Anything).Return(errors.New("gateway down"))

		got, err := env.service.Cancel(ctx, b.ID, "")

		require.NoError(t, err)
		assert.Equal(t, booking.StatusRefunded, got.Status)
		assert.Equal(t, seat.Free, env.seat(t, "A1").Availability)
	})
}

func TestBookingService_ListBookingsByEmail(t *testing.T) {
	env := setupTestEnv(t)
	env.reserve(t, "A1")
	env.clk.Advance(time.Second)
	second := env.reserve(t, "A2")

	list, err := env.service.ListBookingsByEmail(context.Background(), "taro@example.com", 0, 0)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "新しい順")
}

func TestSeatService_ListSeats_AfterReserve(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	count, err := env.seats.CountFreeSeats(ctx, env.venue.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, count)

	env.reserve(t, "A1", "A2")

	count, err = env.seats.CountFreeSeats(ctx, env.venue.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	free, err := env.seats.ListSeats(ctx, env.venue.ID, true)
	require.NoError(t, err)
	assert.Len(t, free, 10)
}
