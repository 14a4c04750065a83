package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/venue"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
)

const (
	seatCacheTTL = 30 * time.Second
)

type SeatService struct {
	ledger    seat.Ledger
	venueRepo venue.Repository
	cache     AvailabilityCache
}

// NewSeatService は座席参照サービスを作成する。cache は nil でもよい
func NewSeatService(ledger seat.Ledger, vr venue.Repository, cache AvailabilityCache) *SeatService {
	return &SeatService{ledger: ledger, venueRepo: vr, cache: cache}
}

func (s *SeatService) GetSeat(ctx context.Context, key seat.Key) (*seat.Seat, error) {
	return s.ledger.Get(ctx, key)
}

func (s *SeatService) ListSeats(ctx context.Context, venueID string, onlyFree bool) ([]*seat.Seat, error) {
	if _, err := s.venueRepo.GetByID(ctx, venueID); err != nil {
		return nil, err
	}
	return s.ledger.ListByVenue(ctx, venueID, onlyFree)
}

func (s *SeatService) CountFreeSeats(ctx context.Context, venueID string) (int, error) {
	if s.cache != nil {
		count, ok, err := s.cache.GetFreeCount(ctx, venueID)
		if err != nil {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		} else if ok {
			logger.Debug("キャッシュヒット", zap.String("venue_id", venueID), zap.Int("count", count))
			return count, nil
		}
	}

	count, err := s.ledger.CountFree(ctx, venueID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if cacheErr := s.cache.SetFreeCount(ctx, venueID, count, seatCacheTTL); cacheErr != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}
	return count, nil
}
