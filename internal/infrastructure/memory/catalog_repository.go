package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/match"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/venue"
)

// VenueRepository は会場リポジトリのインメモリ実装
type VenueRepository struct {
	mu     sync.RWMutex
	venues map[string]*venue.Venue
}

func NewVenueRepository() *VenueRepository {
	return &VenueRepository{venues: make(map[string]*venue.Venue)}
}

func (r *VenueRepository) Create(ctx context.Context, v *venue.Venue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	c := *v
	c.Sections = append([]venue.Section(nil), v.Sections...)
	r.venues[v.ID] = &c
	return nil
}

func (r *VenueRepository) GetByID(ctx context.Context, id string) (*venue.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.venues[id]
	if !ok {
		return nil, venue.ErrVenueNotFound
	}
	c := *v
	return &c, nil
}

func (r *VenueRepository) List(ctx context.Context, limit, offset int) ([]*venue.Venue, error) {
	r.mu.RLock()
	out := make([]*venue.Venue, 0, len(r.venues))
	for _, v := range r.venues {
		c := *v
		out = append(out, &c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, limit, offset), nil
}

// MatchRepository は試合リポジトリのインメモリ実装
type MatchRepository struct {
	mu      sync.RWMutex
	matches map[string]*match.Match
}

func NewMatchRepository() *MatchRepository {
	return &MatchRepository{matches: make(map[string]*match.Match)}
}

func (r *MatchRepository) Create(ctx context.Context, m *match.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	c := *m
	r.matches[m.ID] = &c
	return nil
}

func (r *MatchRepository) GetByID(ctx context.Context, id string) (*match.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, match.ErrMatchNotFound
	}
	c := *m
	return &c, nil
}

func (r *MatchRepository) List(ctx context.Context, limit, offset int) ([]*match.Match, error) {
	r.mu.RLock()
	out := make([]*match.Match, 0, len(r.matches))
	for _, m := range r.matches {
		c := *m
		out = append(out, &c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].KickoffAt.Before(out[j].KickoffAt) })
	return page(out, limit, offset), nil
}

func (r *MatchRepository) Update(ctx context.Context, m *match.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.matches[m.ID]
	if !ok {
		return match.ErrMatchNotFound
	}
	if current.Version != m.Version {
		return match.ErrOptimisticLockConflict
	}
	m.Version++
	c := *m
	r.matches[m.ID] = &c
	return nil
}

var (
	_ venue.Repository = (*VenueRepository)(nil)
	_ match.Repository = (*MatchRepository)(nil)
)
