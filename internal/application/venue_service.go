package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/venue"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
)

type VenueService struct {
	venueRepo venue.Repository
	ledger    seat.Ledger
}

func NewVenueService(vr venue.Repository, ledger seat.Ledger) *VenueService {
	return &VenueService{venueRepo: vr, ledger: ledger}
}

type CreateVenueInput struct {
	Name     string
	City     string
	Sections []venue.Section
}

// CreateVenue は会場を作成し、座席表の全座席を空席として台帳に登録する
func (s *VenueService) CreateVenue(ctx context.Context, input CreateVenueInput) (*venue.Venue, error) {
	v := venue.NewVenue(input.Name, input.City, input.Sections)
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.venueRepo.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("会場作成に失敗しました: %w", err)
	}
	if err := s.ledger.Register(ctx, v.Seats()); err != nil {
		return nil, fmt.Errorf("座席の登録に失敗しました: %w", err)
	}
	logger.Info("会場を作成", zap.String("venue_id", v.ID), zap.Int("capacity", v.Capacity()))
	return v, nil
}

func (s *VenueService) GetVenue(ctx context.Context, id string) (*venue.Venue, error) {
	return s.venueRepo.GetByID(ctx, id)
}

func (s *VenueService) ListVenues(ctx context.Context, limit, offset int) ([]*venue.Venue, error) {
	limit, offset = clampPage(limit, offset)
	return s.venueRepo.List(ctx, limit, offset)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
