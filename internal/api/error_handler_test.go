package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/match"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/venue"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"予約なし", booking.ErrBookingNotFound, http.StatusNotFound},
		{"ラップされた会場なし", fmt.Errorf("取得失敗: %w", venue.ErrVenueNotFound), http.StatusNotFound},
		{"座席競合", &seat.UnavailableError{}, http.StatusConflict},
		{"楽観ロック競合", booking.ErrOptimisticLockConflict, http.StatusConflict},
		{"期限切れ", booking.ErrLeaseExpired, http.StatusGone},
		{"金額不一致", booking.ErrPaymentMismatch, http.StatusUnprocessableEntity},
		{"受付期間外", match.ErrMatchNotOpen, http.StatusUnprocessableEntity},
		{"ドメイン検証", fmt.Errorf("バリデーションエラー: %w", match.ErrSameTeams), http.StatusBadRequest},
		{"HTTPError", echo.NewHTTPError(http.StatusTeapot, "x"), http.StatusTeapot},
		{"未知のエラー", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestCustomHTTPErrorHandler(t *testing.T) {
	handle := func(err error) (*httptest.ResponseRecorder, ErrorResponse) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		CustomHTTPErrorHandler(err, e.NewContext(req, rec))
		var resp ErrorResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		return rec, resp
	}

	t.Run("競合座席のラベルを返す", func(t *testing.T) {
		err := &seat.UnavailableError{Conflicts: []seat.Key{
			{VenueID: "v", Section: "N", Row: "C", Number: "1"},
			{VenueID: "v", Section: "N", Row: "C", Number: "2"},
		}}

		rec, resp := handle(err)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, []string{"N C1", "N C2"}, resp.Conflicts)
		assert.Equal(t, seat.ErrSeatUnavailable.Error(), resp.Error)
	})

	t.Run("500では内部エラーの詳細を隠す", func(t *testing.T) {
		rec, resp := handle(errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "内部サーバーエラー", resp.Error)
		assert.NotContains(t, rec.Body.String(), "pq:")
	})

	t.Run("HTTPErrorのメッセージと内部詳細", func(t *testing.T) {
		err := echo.NewHTTPError(http.StatusBadRequest, "入力値が不正です").SetInternal(errors.New("email: email"))

		rec, resp := handle(err)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "入力値が不正です", resp.Error)
		assert.Equal(t, "email: email", resp.Details)
	})
}

func TestCustomValidator(t *testing.T) {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}
	v := NewValidator()

	assert.NoError(t, v.Validate(&request{Email: "fan@example.com"}))

	err := v.Validate(&request{Email: "nope"})
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	require.Error(t, he.Internal)
	assert.Contains(t, he.Internal.Error(), "request.email: email")
}
