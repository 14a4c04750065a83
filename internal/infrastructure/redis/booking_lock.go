package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-match-ticket-booking/internal/application"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
)

const (
	bookingLockTTL        = 15 * time.Second
	bookingLockRetries    = 100
	bookingLockRetryDelay = 20 * time.Millisecond
)

// BookingLocker はレプリカ間で予約ごとの状態遷移を直列化する
type BookingLocker struct {
	manager *LockManager
}

func NewBookingLocker(m *LockManager) *BookingLocker {
	return &BookingLocker{manager: m}
}

func (b *BookingLocker) Lock(ctx context.Context, bookingID string) (func(), error) {
	lock, err := b.manager.AcquireLockWithRetry(ctx, "booking:"+bookingID, bookingLockTTL, bookingLockRetries, bookingLockRetryDelay)
	if err != nil {
		return nil, err
	}
	return func() {
		// 呼び出し元の ctx がキャンセル済みでも解放する
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("予約ロックの解放に失敗", zap.String("booking_id", bookingID), zap.Error(err))
		}
	}, nil
}

var _ application.BookingLocker = (*BookingLocker)(nil)

// SweeperLock はスイープを行うインスタンスを1つに絞るリーダーロック。
// 取得したインスタンスは延長し続けてリーダーを維持する
type SweeperLock struct {
	manager *LockManager
	key     string
	ttl     time.Duration

	mu      sync.Mutex
	current *DistributedLock
}

// NewSweeperLock は ttl をスイープ間隔より長く取ること
func NewSweeperLock(m *LockManager, ttl time.Duration) *SweeperLock {
	return &SweeperLock{manager: m, key: "hold-sweeper", ttl: ttl}
}

func (s *SweeperLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	noop := func() {}
	if s.current != nil {
		err := s.current.Extend(ctx, s.ttl)
		if err == nil {
			return noop, true, nil
		}
		if !errors.Is(err, ErrLockNotOwned) {
			return noop, false, err
		}
		s.current = nil
	}

	lock, err := s.manager.AcquireLock(ctx, s.key, s.ttl)
	if errors.Is(err, ErrLockNotAcquired) {
		return noop, false, nil
	}
	if err != nil {
		return noop, false, err
	}
	s.current = lock
	return noop, true, nil
}

// Close はリーダーを降りる
func (s *SweeperLock) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	err := s.current.Release(ctx)
	s.current = nil
	if errors.Is(err, ErrLockNotOwned) {
		return nil
	}
	return err
}
