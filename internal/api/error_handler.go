package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-match-ticket-booking/internal/application"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/match"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/venue"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error     string   `json:"error"`
	Code      int      `json:"code,omitempty"`
	Details   string   `json:"details,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// ドメインエラーとHTTPステータスの対応
var statusByError = []struct {
	err    error
	status int
}{
	{booking.ErrBookingNotFound, http.StatusNotFound},
	{seat.ErrSeatNotFound, http.StatusNotFound},
	{venue.ErrVenueNotFound, http.StatusNotFound},
	{match.ErrMatchNotFound, http.StatusNotFound},

	{seat.ErrSeatUnavailable, http.StatusConflict},
	{booking.ErrOptimisticLockConflict, http.StatusConflict},
	{match.ErrOptimisticLockConflict, http.StatusConflict},
	{booking.ErrDuplicateTicketID, http.StatusConflict},

	{booking.ErrLeaseExpired, http.StatusGone},

	{booking.ErrPaymentMismatch, http.StatusUnprocessableEntity},
	{booking.ErrPaymentFailed, http.StatusUnprocessableEntity},
	{booking.ErrNotCancellable, http.StatusUnprocessableEntity},
	{booking.ErrInvalidTransition, http.StatusUnprocessableEntity},
	{booking.ErrHoldNotExpired, http.StatusUnprocessableEntity},
	{match.ErrMatchNotOpen, http.StatusUnprocessableEntity},
	{match.ErrVenueMismatch, http.StatusUnprocessableEntity},

	{booking.ErrContactRequired, http.StatusBadRequest},
	{booking.ErrVenueIDRequired, http.StatusBadRequest},
	{booking.ErrMatchIDRequired, http.StatusBadRequest},
	{booking.ErrTicketsRequired, http.StatusBadRequest},
	{seat.ErrNoSeatsRequested, http.StatusBadRequest},
	{seat.ErrVenueIDRequired, http.StatusBadRequest},
	{seat.ErrSectionRequired, http.StatusBadRequest},
	{seat.ErrRowRequired, http.StatusBadRequest},
	{seat.ErrSeatNumberRequired, http.StatusBadRequest},
	{venue.ErrVenueNameRequired, http.StatusBadRequest},
	{venue.ErrSectionsRequired, http.StatusBadRequest},
	{venue.ErrSectionNameRequired, http.StatusBadRequest},
	{venue.ErrDuplicateSection, http.StatusBadRequest},
	{venue.ErrRowsRequired, http.StatusBadRequest},
	{venue.ErrInvalidRow, http.StatusBadRequest},
	{venue.ErrInvalidPrice, http.StatusBadRequest},
	{match.ErrVenueIDRequired, http.StatusBadRequest},
	{match.ErrTeamRequired, http.StatusBadRequest},
	{match.ErrSameTeams, http.StatusBadRequest},
	{match.ErrKickoffRequired, http.StatusBadRequest},

	{application.ErrPaymentGatewayUnavailable, http.StatusServiceUnavailable},
}

// StatusFor はエラーに対応するHTTPステータスを返す
func StatusFor(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := StatusFor(err)
	resp := ErrorResponse{Code: code}

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if m, ok := he.Message.(string); ok {
			resp.Error = m
		} else {
			resp.Error = http.StatusText(code)
		}
		if he.Internal != nil {
			resp.Details = he.Internal.Error()
		}
	case code >= 500:
		// 内部エラーの詳細は返さない
		resp.Error = "内部サーバーエラー"
	default:
		resp.Error = err.Error()
	}

	var unavailable *seat.UnavailableError
	if errors.As(err, &unavailable) {
		resp.Error = seat.ErrSeatUnavailable.Error()
		resp.Conflicts = unavailable.ConflictLabels()
	}

	if code >= 500 {
		logger.FromContext(c.Request().Context()).Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, resp); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
