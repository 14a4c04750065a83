package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-match-ticket-booking/internal/application"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/venue"
)

type VenueHandler struct {
	service VenueServiceInterface
}

func NewVenueHandler(s VenueServiceInterface) *VenueHandler {
	return &VenueHandler{service: s}
}

type RowRequest struct {
	Name  string `json:"name" validate:"required" example:"A"`
	Seats int    `json:"seats" validate:"required,min=1,max=500" example:"20"`
}

type SectionRequest struct {
	Name     string       `json:"name" validate:"required" example:"North"`
	Category string       `json:"category" example:"standard"`
	Price    int          `json:"price" validate:"min=0" example:"500"`
	Rows     []RowRequest `json:"rows" validate:"required,min=1,dive"`
}

type CreateVenueRequest struct {
	Name     string           `json:"name" validate:"required,max=255" example:"国立競技場"`
	City     string           `json:"city" example:"東京"`
	Sections []SectionRequest `json:"sections" validate:"required,min=1,dive"`
}

type VenueResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	City      string           `json:"city,omitempty"`
	Capacity  int              `json:"capacity"`
	MinPrice  *int             `json:"min_price,omitempty"`
	MaxPrice  *int             `json:"max_price,omitempty"`
	Sections  []SectionRequest `json:"sections"`
	CreatedAt string           `json:"created_at"`
}

func toVenueResponse(v *venue.Venue) VenueResponse {
	resp := VenueResponse{
		ID:        v.ID,
		Name:      v.Name,
		City:      v.City,
		Capacity:  v.Capacity(),
		Sections:  make([]SectionRequest, len(v.Sections)),
		CreatedAt: v.CreatedAt.Format(time.RFC3339),
	}
	// 価格付きセクションが無い会場は価格帯を返さない
	if p, ok := v.MinPrice(); ok {
		resp.MinPrice = &p
	}
	if p, ok := v.MaxPrice(); ok {
		resp.MaxPrice = &p
	}
	for i, s := range v.Sections {
		rows := make([]RowRequest, len(s.Rows))
		for j, r := range s.Rows {
			rows[j] = RowRequest{Name: r.Name, Seats: r.Seats}
		}
		resp.Sections[i] = SectionRequest{Name: s.Name, Category: s.Category, Price: s.Price, Rows: rows}
	}
	return resp
}

// Create godoc
// @Summary 会場を作成
// @Description 座席表から全座席を空席として登録します
// @Tags venues
// @Accept json
// @Produce json
// @Param request body CreateVenueRequest true "会場情報"
// @Success 201 {object} VenueResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /venues [post]
func (h *VenueHandler) Create(c echo.Context) error {
	var req CreateVenueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	sections := make([]venue.Section, len(req.Sections))
	for i, s := range req.Sections {
		rows := make([]venue.Row, len(s.Rows))
		for j, r := range s.Rows {
			rows[j] = venue.Row{Name: r.Name, Seats: r.Seats}
		}
		sections[i] = venue.Section{Name: s.Name, Category: s.Category, Price: s.Price, Rows: rows}
	}
	v, err := h.service.CreateVenue(c.Request().Context(), application.CreateVenueInput{
		Name: req.Name, City: req.City, Sections: sections,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toVenueResponse(v))
}

// GetByID godoc
// @Summary 会場を取得
// @Tags venues
// @Produce json
// @Param id path string true "会場ID"
// @Success 200 {object} VenueResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /venues/{id} [get]
func (h *VenueHandler) GetByID(c echo.Context) error {
	v, err := h.service.GetVenue(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toVenueResponse(v))
}

// List godoc
// @Summary 会場一覧を取得
// @Tags venues
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} VenueResponse
// @Router /venues [get]
func (h *VenueHandler) List(c echo.Context) error {
	limit, offset := pagination(c)
	venues, err := h.service.ListVenues(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	resp := make([]VenueResponse, len(venues))
	for i, v := range venues {
		resp[i] = toVenueResponse(v)
	}
	return c.JSON(http.StatusOK, resp)
}

// pagination は limit/offset クエリを読む。不正値は0として扱い、上限はサービス側で丸める
func pagination(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}
