package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/match"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/venue"
)

type MatchService struct {
	matchRepo match.Repository
	venueRepo venue.Repository
}

func NewMatchService(mr match.Repository, vr venue.Repository) *MatchService {
	return &MatchService{matchRepo: mr, venueRepo: vr}
}

type CreateMatchInput struct {
	VenueID     string
	HomeTeam    string
	AwayTeam    string
	Competition string
	KickoffAt   time.Time
}

func (s *MatchService) CreateMatch(ctx context.Context, input CreateMatchInput) (*match.Match, error) {
	m := match.NewMatch(input.VenueID, input.HomeTeam, input.AwayTeam, input.Competition, input.KickoffAt)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if _, err := s.venueRepo.GetByID(ctx, input.VenueID); err != nil {
		return nil, fmt.Errorf("会場取得に失敗: %w", err)
	}
	if err := s.matchRepo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("試合作成に失敗しました: %w", err)
	}
	return m, nil
}

func (s *MatchService) GetMatch(ctx context.Context, id string) (*match.Match, error) {
	return s.matchRepo.GetByID(ctx, id)
}

func (s *MatchService) ListMatches(ctx context.Context, limit, offset int) ([]*match.Match, error) {
	limit, offset = clampPage(limit, offset)
	return s.matchRepo.List(ctx, limit, offset)
}

// CancelMatch は試合を中止にし、以降の予約受付を止める
func (s *MatchService) CancelMatch(ctx context.Context, id string) (*match.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status == match.StatusCancelled {
		return m, nil
	}
	m.Status = match.StatusCancelled
	m.UpdatedAt = time.Now().UTC()
	if err := s.matchRepo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
