package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-match-ticket-booking/internal/application"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/match"
)

type MatchHandler struct {
	service MatchServiceInterface
}

func NewMatchHandler(s MatchServiceInterface) *MatchHandler {
	return &MatchHandler{service: s}
}

type CreateMatchRequest struct {
	VenueID     string    `json:"venue_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	HomeTeam    string    `json:"home_team" validate:"required" example:"浦和レッズ"`
	AwayTeam    string    `json:"away_team" validate:"required,nefield=HomeTeam" example:"鹿島アントラーズ"`
	Competition string    `json:"competition" example:"J1リーグ"`
	KickoffAt   time.Time `json:"kickoff_at" validate:"required" example:"2025-06-01T19:00:00+09:00"`
}

type MatchResponse struct {
	ID          string `json:"id"`
	VenueID     string `json:"venue_id"`
	HomeTeam    string `json:"home_team"`
	AwayTeam    string `json:"away_team"`
	Competition string `json:"competition,omitempty"`
	KickoffAt   string `json:"kickoff_at"`
	Status      string `json:"status"`
}

func toMatchResponse(m *match.Match) MatchResponse {
	return MatchResponse{
		ID:          m.ID,
		VenueID:     m.VenueID,
		HomeTeam:    m.HomeTeam,
		AwayTeam:    m.AwayTeam,
		Competition: m.Competition,
		KickoffAt:   m.KickoffAt.Format(time.RFC3339),
		Status:      string(m.Status),
	}
}

// Create godoc
// @Summary 試合を作成
// @Tags matches
// @Accept json
// @Produce json
// @Param request body CreateMatchRequest true "試合情報"
// @Success 201 {object} MatchResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse "会場が存在しない"
// @Router /matches [post]
func (h *MatchHandler) Create(c echo.Context) error {
	var req CreateMatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	m, err := h.service.CreateMatch(c.Request().Context(), application.CreateMatchInput{
		VenueID:     req.VenueID,
		HomeTeam:    req.HomeTeam,
		AwayTeam:    req.AwayTeam,
		Competition: req.Competition,
		KickoffAt:   req.KickoffAt,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toMatchResponse(m))
}

// GetByID godoc
// @Summary 試合を取得
// @Tags matches
// @Produce json
// @Param id path string true "試合ID"
// @Success 200 {object} MatchResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /matches/{id} [get]
func (h *MatchHandler) GetByID(c echo.Context) error {
	m, err := h.service.GetMatch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMatchResponse(m))
}

// List godoc
// @Summary 試合一覧をキックオフ順に取得
// @Tags matches
// @Produce json
// @Success 200 {array} MatchResponse
// @Router /matches [get]
func (h *MatchHandler) List(c echo.Context) error {
	limit, offset := pagination(c)
	matches, err := h.service.ListMatches(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	resp := make([]MatchResponse, len(matches))
	for i, m := range matches {
		resp[i] = toMatchResponse(m)
	}
	return c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary 試合を中止する
// @Tags matches
// @Produce json
// @Param id path string true "試合ID"
// @Success 200 {object} MatchResponse
// @Router /matches/{id}/cancel [post]
func (h *MatchHandler) Cancel(c echo.Context) error {
	m, err := h.service.CancelMatch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMatchResponse(m))
}
