package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
)

type SeatHandler struct {
	service SeatServiceInterface
}

func NewSeatHandler(s SeatServiceInterface) *SeatHandler {
	return &SeatHandler{service: s}
}

type SeatResponse struct {
	VenueID       string  `json:"venue_id"`
	Section       string  `json:"section"`
	Row           string  `json:"row"`
	Number        string  `json:"number"`
	Label         string  `json:"label"`
	Category      string  `json:"category,omitempty"`
	Price         int     `json:"price"`
	Availability  string  `json:"availability"`
	HoldExpiresAt *string `json:"hold_expires_at,omitempty"`
}

// toSeatResponse は座席を返す。保持している予約IDは公開しない
func toSeatResponse(s *seat.Seat) SeatResponse {
	resp := SeatResponse{
		VenueID:      s.VenueID,
		Section:      s.Section,
		Row:          s.Row,
		Number:       s.Number,
		Label:        s.Label(),
		Category:     s.Category,
		Price:        s.Price,
		Availability: string(s.Availability),
	}
	if s.HoldExpiresAt != nil {
		exp := s.HoldExpiresAt.UTC().Format(time.RFC3339)
		resp.HoldExpiresAt = &exp
	}
	return resp
}

// ListByVenue godoc
// @Summary 会場の座席一覧を取得
// @Tags seats
// @Produce json
// @Param venue_id path string true "会場ID"
// @Param free query bool false "空席のみ"
// @Success 200 {array} SeatResponse
// @Router /venues/{venue_id}/seats [get]
func (h *SeatHandler) ListByVenue(c echo.Context) error {
	onlyFree := c.QueryParam("free") == "true"
	seats, err := h.service.ListSeats(c.Request().Context(), c.Param("venue_id"), onlyFree)
	if err != nil {
		return err
	}
	resp := make([]SeatResponse, len(seats))
	for i, s := range seats {
		resp[i] = toSeatResponse(s)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetByKey godoc
// @Summary 座席を取得
// @Tags seats
// @Produce json
// @Param venue_id path string true "会場ID"
// @Param section path string true "セクション"
// @Param row path string true "列"
// @Param number path string true "座席番号"
// @Success 200 {object} SeatResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /venues/{venue_id}/seats/{section}/{row}/{number} [get]
func (h *SeatHandler) GetByKey(c echo.Context) error {
	key := seat.Key{
		VenueID: c.Param("venue_id"),
		Section: c.Param("section"),
		Row:     c.Param("row"),
		Number:  c.Param("number"),
	}
	s, err := h.service.GetSeat(c.Request().Context(), key)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatResponse(s))
}

// CountFree godoc
// @Summary 空席数を取得
// @Tags seats
// @Produce json
// @Param venue_id path string true "会場ID"
// @Success 200 {object} map[string]int
// @Router /venues/{venue_id}/seats/count [get]
func (h *SeatHandler) CountFree(c echo.Context) error {
	count, err := h.service.CountFreeSeats(c.Request().Context(), c.Param("venue_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"count": count})
}
