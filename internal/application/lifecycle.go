package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/clock"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/metrics"
)

// BookingLocker は予約単位で状態遷移を直列化する
type BookingLocker interface {
	Lock(ctx context.Context, bookingID string) (unlock func(), err error)
}

// LifecycleController は予約の状態遷移（確定・キャンセル・取消・失効）を担う。
// 座席の変更は必ず HoldLeaseManager を経由する
type LifecycleController struct {
	bookings booking.Repository
	leases   *HoldLeaseManager
	locker   BookingLocker
	notifier Notifier
	clock    clock.Clock
	metrics  *metrics.Metrics
}

// LifecycleOption は LifecycleController の設定
type LifecycleOption func(*LifecycleController)

func WithLifecycleClock(c clock.Clock) LifecycleOption {
	return func(lc *LifecycleController) { lc.clock = c }
}

func WithLifecycleMetrics(m *metrics.Metrics) LifecycleOption {
	return func(lc *LifecycleController) { lc.metrics = m }
}

// WithBookingLocker は予約ロックの実装を差し替える（既定はプロセス内ロック）
func WithBookingLocker(l BookingLocker) LifecycleOption {
	return func(lc *LifecycleController) { lc.locker = l }
}

// WithNotifier は通知の送り先を設定する（既定はログ出力のみ）
func WithNotifier(n Notifier) LifecycleOption {
	return func(lc *LifecycleController) { lc.notifier = n }
}

func NewLifecycleController(bookings booking.Repository, leases *HoldLeaseManager, opts ...LifecycleOption) *LifecycleController {
	lc := &LifecycleController{
		bookings: bookings,
		leases:   leases,
		locker:   NewLocalBookingLocker(),
		notifier: LogNotifier{},
		clock:    clock.NewSystem(),
	}
	for _, opt := range opts {
		opt(lc)
	}
	return lc
}

// Confirm は支払い結果を予約に適用する。
// 成功した支払いは座席を確定済みにしチケットIDを採番する。失敗した支払いは記録のみ
func (c *LifecycleController) Confirm(ctx context.Context, bookingID string, p booking.PaymentDetails) (*booking.Booking, error) {
	b, changed, err := c.transition(ctx, bookingID, func(b *booking.Booking, now time.Time) (bool, error) {
		if b.Status == booking.StatusConfirmed && b.TransactionID == p.TransactionID {
			return false, nil
		}
		if !p.Succeeded {
			if err := b.MarkPaymentFailed(p, now); err != nil {
				return false, err
			}
			if err := c.bookings.Update(ctx, b); err != nil {
				return false, fmt.Errorf("支払い失敗の記録に失敗: %w", err)
			}
			return false, booking.ErrPaymentFailed
		}
		if err := b.ValidateConfirmation(p, now); err != nil {
			return false, err
		}
		if err := c.leases.Promote(ctx, b.SeatKeys(), b.ID); err != nil {
			// 期限ちょうどにスイープが座席を解放した場合
			if errors.Is(err, seat.ErrInvariantViolation) && b.LeaseElapsed(c.clock.Now()) {
				return false, booking.ErrLeaseExpired
			}
			return false, fmt.Errorf("座席の確定に失敗: %w", err)
		}
		if err := b.MarkConfirmed(p, now); err != nil {
			return false, err
		}
		if err := c.bookings.Update(ctx, b); err != nil {
			return false, fmt.Errorf("予約の更新に失敗: %w", err)
		}
		return true, nil
	})
	if err != nil {
		if b != nil && errors.Is(err, booking.ErrPaymentFailed) {
			logger.Info("支払い失敗を記録", zap.String("booking_id", b.ID), zap.String("booking_code", b.Code))
			return b, err
		}
		return nil, err
	}
	if changed {
		c.record(ctx, b, booking.StatusPending, EventBookingConfirmed)
	}
	return b, nil
}

// Cancel は確定済み予約をキャンセルし、返金額を記録して座席を解放する。
// 状態を保存してから座席を解放する。解放に失敗した場合は保存済みの予約とエラーを返し、
// 再度の Cancel で解放される
func (c *LifecycleController) Cancel(ctx context.Context, bookingID, reason string) (*booking.Booking, error) {
	var persisted bool
	b, _, err := c.transition(ctx, bookingID, func(b *booking.Booking, now time.Time) (bool, error) {
		if b.Status == booking.StatusRefunded {
			return false, c.releaseSeats(ctx, b)
		}
		if err := b.Cancel(reason, now); err != nil {
			return false, err
		}
		if err := c.bookings.Update(ctx, b); err != nil {
			return false, fmt.Errorf("予約の更新に失敗: %w", err)
		}
		persisted = true
		return true, c.releaseSeats(ctx, b)
	})
	if persisted {
		c.record(ctx, b, booking.StatusConfirmed, EventBookingCancelled)
		return b, err
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Abandon は支払い前の予約を取り消し、仮押さえを解放する。
// Cancel と同じく状態の保存が座席の解放より先
func (c *LifecycleController) Abandon(ctx context.Context, bookingID, reason string) (*booking.Booking, error) {
	var persisted bool
	b, _, err := c.transition(ctx, bookingID, func(b *booking.Booking, now time.Time) (bool, error) {
		if b.Status == booking.StatusCancelled {
			return false, c.releaseSeats(ctx, b)
		}
		if err := b.Abandon(reason, now); err != nil {
			return false, err
		}
		if err := c.bookings.Update(ctx, b); err != nil {
			return false, fmt.Errorf("予約の更新に失敗: %w", err)
		}
		persisted = true
		return true, c.releaseSeats(ctx, b)
	})
	if persisted {
		c.record(ctx, b, booking.StatusPending, EventBookingAbandoned)
		return b, err
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Expire は仮押さえ期限を過ぎた保留中予約を失効させる。失効済みなら何もしない
func (c *LifecycleController) Expire(ctx context.Context, bookingID string) (*booking.Booking, error) {
	b, changed, err := c.transition(ctx, bookingID, func(b *booking.Booking, now time.Time) (bool, error) {
		changed, err := b.Expire(now)
		if err != nil {
			return false, err
		}
		if changed {
			if err := c.bookings.Update(ctx, b); err != nil {
				return false, fmt.Errorf("予約の更新に失敗: %w", err)
			}
		}
		return changed, c.releaseSeats(ctx, b)
	})
	if changed {
		c.record(ctx, b, booking.StatusPending, EventBookingExpired)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ExpireBooking は BookingExpirer の実装
func (c *LifecycleController) ExpireBooking(ctx context.Context, bookingID string) error {
	_, err := c.Expire(ctx, bookingID)
	return err
}

// transition は予約ロックの下で予約を読み込み fn を適用する。
// 通知はロック解放後に呼び出し側で行う
func (c *LifecycleController) transition(
	ctx context.Context,
	bookingID string,
	fn func(b *booking.Booking, now time.Time) (bool, error),
) (*booking.Booking, bool, error) {
	unlock, err := c.locker.Lock(ctx, bookingID)
	if err != nil {
		return nil, false, fmt.Errorf("予約ロックの取得に失敗: %w", err)
	}
	defer unlock()

	b, err := c.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, false, err
	}
	changed, err := fn(b, c.clock.Now())
	return b, changed, err
}

func (c *LifecycleController) releaseSeats(ctx context.Context, b *booking.Booking) error {
	if _, err := c.leases.Release(ctx, b.SeatKeys(), b.ID); err != nil {
		return fmt.Errorf("座席の解放に失敗: %w", err)
	}
	return nil
}

func (c *LifecycleController) record(ctx context.Context, b *booking.Booking, from booking.Status, eventType EventType) {
	log := logger.FromContext(ctx)
	log.Info("予約の状態を更新",
		zap.String("booking_id", b.ID),
		zap.String("booking_code", b.Code),
		zap.String("from", string(from)),
		zap.String("to", string(b.Status)),
	)
	c.metrics.ObserveTransition(string(b.Status))

	if err := c.notifier.Notify(ctx, NewBookingEvent(eventType, b, c.clock.Now())); err != nil {
		log.Warn("予約通知の送信に失敗",
			zap.String("booking_id", b.ID),
			zap.String("event", string(eventType)),
			zap.Error(err),
		)
	}
}
