package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-match-ticket-booking/internal/api"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/metrics"
)

const metricsPath = "/metrics"

// PrometheusMiddleware はHTTPメトリクスを収集するミドルウェア。
// ハンドラーが返したドメインエラーはエラーハンドラーと同じステータスで記録する
func PrometheusMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == metricsPath {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = api.StatusFor(err)
			}
			// ルート未登録の場合は実パスを使わず高カーディナリティを避ける
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}
