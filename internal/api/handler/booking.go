package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-match-ticket-booking/internal/application"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type SeatKeyRequest struct {
	Section string `json:"section" validate:"required" example:"North"`
	Row     string `json:"row" validate:"required" example:"C"`
	Number  string `json:"number" validate:"required" example:"1"`
}

type ContactRequest struct {
	Name  string `json:"name" example:"山田太郎"`
	Email string `json:"email" validate:"required,email" example:"taro@example.com"`
	Phone string `json:"phone" example:"090-0000-0000"`
}

type ReserveRequest struct {
	MatchID       string           `json:"match_id" validate:"required"`
	VenueID       string           `json:"venue_id"`
	Seats         []SeatKeyRequest `json:"seats" validate:"required,min=1,max=10,dive"`
	Contact       ContactRequest   `json:"contact"`
	PaymentMethod string           `json:"payment_method" example:"card"`
}

type ConfirmRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
	Amount        int    `json:"amount" validate:"min=0"`
	Method        string `json:"method"`
	Succeeded     *bool  `json:"succeeded" validate:"required"`
}

type PayRequest struct {
	Method string `json:"method" example:"card"`
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type TicketResponse struct {
	TicketID string `json:"ticket_id,omitempty"`
	Section  string `json:"section"`
	Row      string `json:"row"`
	Number   string `json:"number"`
	Label    string `json:"label"`
	Category string `json:"category,omitempty"`
	Price    int    `json:"price"`
}

type RefundResponse struct {
	Amount     int       `json:"amount"`
	Reason     string    `json:"reason,omitempty"`
	RefundedAt time.Time `json:"refunded_at"`
}

type BookingResponse struct {
	ID              string           `json:"id"`
	Code            string           `json:"code" example:"ABCD2345"`
	MatchID         string           `json:"match_id"`
	VenueID         string           `json:"venue_id"`
	Status          string           `json:"status" example:"pending"`
	PaymentStatus   string           `json:"payment_status" example:"pending"`
	Contact         ContactRequest   `json:"contact"`
	Tickets         []TicketResponse `json:"tickets"`
	Subtotal        int              `json:"subtotal"`
	Taxes           int              `json:"taxes"`
	Fees            int              `json:"fees"`
	Discount        int              `json:"discount"`
	TotalAmount     int              `json:"total_amount" example:"1070"`
	TransactionID   string           `json:"transaction_id,omitempty"`
	HoldExpiresAt   time.Time        `json:"hold_expires_at"`
	Refundable      bool             `json:"refundable"`
	RefundUntil     *time.Time       `json:"refund_until,omitempty"`
	CancellationFee int              `json:"cancellation_fee"`
	Refund          *RefundResponse  `json:"refund,omitempty"`
	ConfirmedAt     *time.Time       `json:"confirmed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:              b.ID,
		Code:            b.Code,
		MatchID:         b.MatchID,
		VenueID:         b.VenueID,
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		Contact:         ContactRequest{Name: b.Contact.Name, Email: b.Contact.Email, Phone: b.Contact.Phone},
		Tickets:         make([]TicketResponse, len(b.Tickets)),
		Subtotal:        b.Subtotal,
		Taxes:           b.Taxes,
		Fees:            b.Fees,
		Discount:        b.Discount,
		TotalAmount:     b.TotalAmount,
		TransactionID:   b.TransactionID,
		HoldExpiresAt:   b.HoldExpiresAt,
		Refundable:      b.CancellationPolicy.Refundable,
		RefundUntil:     b.CancellationPolicy.RefundUntil,
		CancellationFee: b.CancellationPolicy.CancellationFee,
		ConfirmedAt:     b.ConfirmedAt,
		CreatedAt:       b.CreatedAt,
	}
	for i, t := range b.Tickets {
		resp.Tickets[i] = TicketResponse{
			TicketID: t.TicketID,
			Section:  t.Seat.Section,
			Row:      t.Seat.Row,
			Number:   t.Seat.Number,
			Label:    t.Seat.Label(),
			Category: t.Category,
			Price:    t.Price,
		}
	}
	if b.Refund != nil {
		resp.Refund = &RefundResponse{Amount: b.Refund.Amount, Reason: b.Refund.Reason, RefundedAt: b.Refund.RefundedAt}
	}
	return resp
}

// Reserve godoc
// @Summary 座席を仮押さえして予約を作成
// @Description 指定座席を10分間仮押さえし、保留中の予約を返します。1席でも空いていなければ何も押さえません
// @Tags bookings
// @Accept json
// @Produce json
// @Param request body ReserveRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "座席が空いていない"
// @Failure 422 {object} api.ErrorResponse "予約受付期間外"
// @Router /bookings [post]
func (h *BookingHandler) Reserve(c echo.Context) error {
	var req ReserveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	keys := make([]seat.Key, len(req.Seats))
	for i, s := range req.Seats {
		keys[i] = seat.Key{VenueID: req.VenueID, Section: s.Section, Row: s.Row, Number: s.Number}
	}
	b, err := h.service.Reserve(c.Request().Context(), application.ReserveInput{
		MatchID:       req.MatchID,
		VenueID:       req.VenueID,
		Seats:         keys,
		Contact:       booking.Contact{Name: req.Contact.Name, Email: req.Contact.Email, Phone: req.Contact.Phone},
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	b, err := h.service.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// GetByCode godoc
// @Summary 予約コードで予約を取得
// @Tags bookings
// @Produce json
// @Param code path string true "予約コード"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/code/{code} [get]
func (h *BookingHandler) GetByCode(c echo.Context) error {
	b, err := h.service.GetBookingByCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// ListByEmail godoc
// @Summary 連絡先メールアドレスの予約一覧を取得
// @Tags bookings
// @Produce json
// @Param email query string true "メールアドレス"
// @Success 200 {array} BookingResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /bookings [get]
func (h *BookingHandler) ListByEmail(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email クエリが必要です")
	}
	limit, offset := pagination(c)
	bookings, err := h.service.ListBookingsByEmail(c.Request().Context(), email, limit, offset)
	if err != nil {
		return err
	}
	resp := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}

// Confirm godoc
// @Summary 決済結果で予約を確定
// @Description 決済ゲートウェイからの通知を反映します。同じ取引IDの再送は冪等です
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path string true "予約ID"
// @Param request body ConfirmRequest true "決済結果"
// @Success 200 {object} BookingResponse
// @Failure 410 {object} api.ErrorResponse "仮押さえ期限切れ"
// @Failure 422 {object} api.ErrorResponse "金額不一致・決済失敗・不正な状態遷移"
// @Router /bookings/{id}/confirm [post]
func (h *BookingHandler) Confirm(c echo.Context) error {
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := h.service.Confirm(c.Request().Context(), c.Param("id"), booking.PaymentDetails{
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Method:        req.Method,
		Succeeded:     *req.Succeeded,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Pay godoc
// @Summary 予約総額を決済して確定
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path string true "予約ID"
// @Param request body PayRequest false "支払い方法"
// @Success 200 {object} BookingResponse
// @Failure 410 {object} api.ErrorResponse "仮押さえ期限切れ"
// @Failure 422 {object} api.ErrorResponse "決済失敗"
// @Router /bookings/{id}/pay [post]
func (h *BookingHandler) Pay(c echo.Context) error {
	var req PayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	b, err := h.service.Pay(c.Request().Context(), c.Param("id"), req.Method)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Cancel godoc
// @Summary 確定済み予約をキャンセル
// @Description 返金期限内なら手数料を差し引いて返金し、座席を空席に戻します
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path string true "予約ID"
// @Param request body ReasonRequest false "理由"
// @Success 200 {object} BookingResponse
// @Failure 422 {object} api.ErrorResponse "キャンセル不可"
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	reason, err := bindReason(c)
	if err != nil {
		return err
	}
	b, err := h.service.Cancel(c.Request().Context(), c.Param("id"), reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Abandon godoc
// @Summary 支払い前の予約を取り消す
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path string true "予約ID"
// @Param request body ReasonRequest false "理由"
// @Success 200 {object} BookingResponse
// @Router /bookings/{id}/abandon [post]
func (h *BookingHandler) Abandon(c echo.Context) error {
	reason, err := bindReason(c)
	if err != nil {
		return err
	}
	b, err := h.service.Abandon(c.Request().Context(), c.Param("id"), reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

func bindReason(c echo.Context) (string, error) {
	var req ReasonRequest
	if err := c.Bind(&req); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return "", err
	}
	return req.Reason, nil
}
