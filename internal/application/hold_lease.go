package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/clock"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/metrics"
)

// LeaseDuration は仮押さえの有効期間。延長はできない
const LeaseDuration = 10 * time.Minute

// 1回のスイープで再試行対象として読み込む保留中予約の上限
const sweepRetryBatch = 200

// BookingExpirer は期限切れ予約を失効させる
type BookingExpirer interface {
	ExpireBooking(ctx context.Context, bookingID string) error
}

// SweepReport はスイープ1回分の結果
type SweepReport struct {
	ReleasedSeats int
	Expired       int
	Failed        int
}

// HoldLeaseManager は座席台帳への仮押さえと、その期限管理を担う
type HoldLeaseManager struct {
	ledger   seat.Ledger
	bookings booking.Repository
	clock    clock.Clock
	metrics  *metrics.Metrics
}

// HoldLeaseOption は HoldLeaseManager の設定
type HoldLeaseOption func(*HoldLeaseManager)

// WithLeaseClock は時刻の取得元を差し替える
func WithLeaseClock(c clock.Clock) HoldLeaseOption {
	return func(m *HoldLeaseManager) { m.clock = c }
}

// WithLeaseMetrics はスイープのメトリクス出力先を設定する
func WithLeaseMetrics(mt *metrics.Metrics) HoldLeaseOption {
	return func(m *HoldLeaseManager) { m.metrics = mt }
}

func NewHoldLeaseManager(ledger seat.Ledger, bookings booking.Repository, opts ...HoldLeaseOption) *HoldLeaseManager {
	m := &HoldLeaseManager{
		ledger:   ledger,
		bookings: bookings,
		clock:    clock.NewSystem(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateHold は指定座席を一括で仮押さえする。1席でも取れなければ何も変更しない
func (m *HoldLeaseManager) CreateHold(ctx context.Context, keys []seat.Key, bookingID string) (*seat.Hold, error) {
	hold, err := m.ledger.TryReserve(ctx, keys, bookingID, LeaseDuration)
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// Release は予約が保持している座席を解放する
func (m *HoldLeaseManager) Release(ctx context.Context, keys []seat.Key, bookingID string) ([]seat.Key, error) {
	return m.ledger.Release(ctx, keys, bookingID)
}

// Promote は仮押さえ中の座席を確定済みにする
func (m *HoldLeaseManager) Promote(ctx context.Context, keys []seat.Key, bookingID string) error {
	return m.ledger.Promote(ctx, keys, bookingID)
}

// Sweep は期限切れの仮押さえを解放し、該当予約を失効させる。
// 前回失効に失敗した予約も保留中のまま残っていれば再試行する
func (m *HoldLeaseManager) Sweep(ctx context.Context, expirer BookingExpirer) (SweepReport, error) {
	var report SweepReport
	start := time.Now()
	now := m.clock.Now()

	expired, err := m.ledger.ExpireStale(ctx, now)
	report.ReleasedSeats = len(expired)
	if err != nil {
		m.metrics.ObserveSweep(report.ReleasedSeats, time.Since(start))
		return report, fmt.Errorf("期限切れ座席の解放に失敗: %w", err)
	}

	ids := seat.BookingIDs(expired)
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	stale, err := m.bookings.ListExpiredPending(ctx, now, sweepRetryBatch)
	if err != nil {
		// 座席は解放済みなので、台帳から得た予約だけでも処理を続ける
		logger.Warn("期限切れ保留中予約の取得に失敗", zap.Error(err))
	}
	for _, b := range stale {
		if _, ok := seen[b.ID]; !ok {
			seen[b.ID] = struct{}{}
			ids = append(ids, b.ID)
		}
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := expirer.ExpireBooking(ctx, id); err != nil {
			report.Failed++
			logger.Warn("予約の失効に失敗", zap.String("booking_id", id), zap.Error(err))
			continue
		}
		report.Expired++
	}

	m.metrics.ObserveSweep(report.ReleasedSeats, time.Since(start))
	return report, nil
}
