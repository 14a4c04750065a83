package application

import (
	"context"
	"sync"
)

// LocalBookingLocker はプロセス内で予約IDごとに排他するロック
type LocalBookingLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocalBookingLocker() *LocalBookingLocker {
	return &LocalBookingLocker{locks: make(map[string]*lockEntry)}
}

// Lock は予約IDのロックを取得する。ctx がキャンセルされると待機をやめる
func (l *LocalBookingLocker) Lock(ctx context.Context, bookingID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[bookingID]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.locks[bookingID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(bookingID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.unref(bookingID, e)
		})
	}, nil
}

func (l *LocalBookingLocker) unref(bookingID string, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, bookingID)
	}
	l.mu.Unlock()
}

var _ BookingLocker = (*LocalBookingLocker)(nil)
