package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-match-ticket-booking/internal/config"
)

func serveMetrics(t *testing.T, cfg config.MetricsConfig, authHeader string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := MetricsBasicAuth(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "metrics")
	})
	return rec, handler(c)
}

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestMetricsBasicAuth_NoCredentials(t *testing.T) {
	// 認証設定がない場合はスキップ
	rec, err := serveMetrics(t, config.MetricsConfig{}, "")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestMetricsBasicAuth_ValidCredentials(t *testing.T) {
	cfg := config.MetricsConfig{User: "testuser", Password: "testpass"}

	rec, err := serveMetrics(t, cfg, basic("testuser", "testpass"))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsBasicAuth_Rejected(t *testing.T) {
	cfg := config.MetricsConfig{User: "testuser", Password: "testpass"}

	tests := []struct {
		name   string
		header string
	}{
		{"間違った認証情報", basic("wronguser", "wrongpass")},
		{"パスワード違い", basic("testuser", "nope")},
		{"ヘッダーなし", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := serveMetrics(t, cfg, tt.header)

			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, http.StatusUnauthorized, he.Code)
		})
	}
}

func TestMetricsConfig_IsEnabled(t *testing.T) {
	tests := []struct {
		name        string
		user        string
		password    string
		wantEnabled bool
	}{
		{"両方設定あり", "user", "pass", true},
		{"ユーザーのみ", "user", "", false},
		{"パスワードのみ", "", "pass", false},
		{"両方なし", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.MetricsConfig{User: tt.user, Password: tt.password}
			assert.Equal(t, tt.wantEnabled, cfg.IsEnabled())
		})
	}
}
