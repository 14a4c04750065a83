package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-match-ticket-booking/internal/application"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
)

// 掃除間隔の上限
const MaxSweepInterval = 60 * time.Second

// HoldSweeper は期限切れの仮押さえを掃除する
type HoldSweeper interface {
	Sweep(ctx context.Context, expirer application.BookingExpirer) (application.SweepReport, error)
}

// LeaderLock は複数レプリカのうち1つだけがスイープを行うためのロック
type LeaderLock interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// HoldExpirySweeper は一定間隔で期限切れの仮押さえを解放するワーカー
type HoldExpirySweeper struct {
	sweeper  HoldSweeper
	expirer  application.BookingExpirer
	leader   LeaderLock
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type SweeperOption func(*HoldExpirySweeper)

// WithLeaderLock はスイープ前にリーダーロックを取る
func WithLeaderLock(l LeaderLock) SweeperOption {
	return func(s *HoldExpirySweeper) { s.leader = l }
}

// NewHoldExpirySweeper は新しいスイーパーを作成する。interval は MaxSweepInterval 以下に丸める
func NewHoldExpirySweeper(
	sweeper HoldSweeper,
	expirer application.BookingExpirer,
	interval time.Duration,
	opts ...SweeperOption,
) *HoldExpirySweeper {
	if interval <= 0 || interval > MaxSweepInterval {
		interval = MaxSweepInterval
	}
	s := &HoldExpirySweeper{
		sweeper:  sweeper,
		expirer:  expirer,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start はスイーパーを開始する。Stop されるか ctx が終わるまで戻らない
func (s *HoldExpirySweeper) Start(ctx context.Context) {
	logger.Info("仮押さえ期限スイーパー開始", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("仮押さえ期限スイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("仮押さえ期限スイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止し、実行中のスイープの終了を待つ
func (s *HoldExpirySweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *HoldExpirySweeper) sweep(ctx context.Context) {
	log := logger.Get()

	if s.leader != nil {
		release, ok, err := s.leader.TryAcquire(ctx)
		if err != nil {
			log.Warn("スイーパーロックの取得に失敗", zap.Error(err))
			return
		}
		if !ok {
			log.Debug("他のインスタンスがスイープ中")
			return
		}
		defer release()
	}

	report, err := s.sweeper.Sweep(ctx, s.expirer)
	if err != nil {
		log.Error("仮押さえ期限スイープ失敗", zap.Error(err))
		return
	}

	if report.ReleasedSeats > 0 || report.Expired > 0 || report.Failed > 0 {
		log.Info("期限切れの仮押さえを解放",
			zap.Int("released_seats", report.ReleasedSeats),
			zap.Int("expired_bookings", report.Expired),
			zap.Int("failed", report.Failed),
		)
	} else {
		log.Debug("期限切れの仮押さえなし")
	}
}
