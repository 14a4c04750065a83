package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/match"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/venue"
)

// sectionDoc は sections 列に保存するJSONの形
type sectionDoc struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    int      `json:"price"`
	Rows     []rowDoc `json:"rows"`
}

type rowDoc struct {
	Name  string `json:"name"`
	Seats int    `json:"seats"`
}

type venueRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	City      string         `db:"city"`
	Sections  types.JSONText `db:"sections"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
	Version   int            `db:"version"`
}

func (r *venueRow) toEntity() (*venue.Venue, error) {
	var docs []sectionDoc
	if err := r.Sections.Unmarshal(&docs); err != nil {
		return nil, fmt.Errorf("セクションの復元に失敗: %w", err)
	}
	sections := make([]venue.Section, len(docs))
	for i, d := range docs {
		rows := make([]venue.Row, len(d.Rows))
		for j, row := range d.Rows {
			rows[j] = venue.Row{Name: row.Name, Seats: row.Seats}
		}
		sections[i] = venue.Section{Name: d.Name, Category: d.Category, Price: d.Price, Rows: rows}
	}
	return &venue.Venue{
		ID:        r.ID,
		Name:      r.Name,
		City:      r.City,
		Sections:  sections,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Version:   r.Version,
	}, nil
}

func encodeSections(sections []venue.Section) (types.JSONText, error) {
	docs := make([]sectionDoc, len(sections))
	for i, s := range sections {
		rows := make([]rowDoc, len(s.Rows))
		for j, r := range s.Rows {
			rows[j] = rowDoc{Name: r.Name, Seats: r.Seats}
		}
		docs[i] = sectionDoc{Name: s.Name, Category: s.Category, Price: s.Price, Rows: rows}
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return nil, err
	}
	return types.JSONText(raw), nil
}

// VenueRepository は会場リポジトリのPostgreSQL実装
type VenueRepository struct {
	db *sqlx.DB
}

func NewVenueRepository(db *sqlx.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

func (r *VenueRepository) Create(ctx context.Context, v *venue.Venue) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	sections, err := encodeSections(v.Sections)
	if err != nil {
		return fmt.Errorf("セクションのエンコードに失敗: %w", err)
	}
	query := `
		INSERT INTO venues (id, name, city, sections, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query, v.ID, v.Name, v.City, sections, v.CreatedAt, v.UpdatedAt, v.Version); err != nil {
		return fmt.Errorf("会場作成に失敗: %w", err)
	}
	return nil
}

func (r *VenueRepository) GetByID(ctx context.Context, id string) (*venue.Venue, error) {
	var row venueRow
	query := `SELECT id, name, city, sections, created_at, updated_at, version FROM venues WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, venue.ErrVenueNotFound
		}
		return nil, fmt.Errorf("会場取得に失敗: %w", err)
	}
	return row.toEntity()
}

func (r *VenueRepository) List(ctx context.Context, limit, offset int) ([]*venue.Venue, error) {
	var rows []venueRow
	query := `
		SELECT id, name, city, sections, created_at, updated_at, version
		FROM venues
		ORDER BY name
		LIMIT $1 OFFSET $2
	`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("会場一覧取得に失敗: %w", err)
	}
	venues := make([]*venue.Venue, 0, len(rows))
	for i := range rows {
		v, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, nil
}

type matchRow struct {
	ID          string    `db:"id"`
	VenueID     string    `db:"venue_id"`
	HomeTeam    string    `db:"home_team"`
	AwayTeam    string    `db:"away_team"`
	Competition string    `db:"competition"`
	KickoffAt   time.Time `db:"kickoff_at"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	Version     int       `db:"version"`
}

func (r *matchRow) toEntity() *match.Match {
	return &match.Match{
		ID:          r.ID,
		VenueID:     r.VenueID,
		HomeTeam:    r.HomeTeam,
		AwayTeam:    r.AwayTeam,
		Competition: r.Competition,
		KickoffAt:   r.KickoffAt,
		Status:      match.Status(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Version:     r.Version,
	}
}

const matchColumns = `id, venue_id, home_team, away_team, competition, kickoff_at, status, created_at, updated_at, version`

// MatchRepository は試合リポジトリのPostgreSQL実装
type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) Create(ctx context.Context, m *match.Match) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	query := `INSERT INTO matches (` + matchColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.VenueID, m.HomeTeam, m.AwayTeam, m.Competition, m.KickoffAt, string(m.Status),
		m.CreatedAt, m.UpdatedAt, m.Version,
	)
	if err != nil {
		return fmt.Errorf("試合作成に失敗: %w", err)
	}
	return nil
}

func (r *MatchRepository) GetByID(ctx context.Context, id string) (*match.Match, error) {
	var row matchRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, match.ErrMatchNotFound
		}
		return nil, fmt.Errorf("試合取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *MatchRepository) List(ctx context.Context, limit, offset int) ([]*match.Match, error) {
	var rows []matchRow
	query := `SELECT ` + matchColumns + ` FROM matches ORDER BY kickoff_at LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("試合一覧取得に失敗: %w", err)
	}
	matches := make([]*match.Match, len(rows))
	for i := range rows {
		matches[i] = rows[i].toEntity()
	}
	return matches, nil
}

// Update は試合を更新する（楽観的ロック）
func (r *MatchRepository) Update(ctx context.Context, m *match.Match) error {
	query := `
		UPDATE matches
		SET home_team = $1, away_team = $2, competition = $3, kickoff_at = $4, status = $5,
		    updated_at = $6, version = version + 1
		WHERE id = $7 AND version = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		m.HomeTeam, m.AwayTeam, m.Competition, m.KickoffAt, string(m.Status), m.UpdatedAt, m.ID, m.Version,
	)
	if err != nil {
		return fmt.Errorf("試合更新に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, m.ID); err != nil {
			return err
		}
		return match.ErrOptimisticLockConflict
	}
	m.Version++
	return nil
}

var (
	_ venue.Repository = (*VenueRepository)(nil)
	_ match.Repository = (*MatchRepository)(nil)
)
