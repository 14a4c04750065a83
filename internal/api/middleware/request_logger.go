package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-match-ticket-booking/internal/api"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
)

// RequestLogger はリクエストごとに request_id 付きのロガーをコンテキストへ入れ、
// 完了時にアクセスログを1行出力する
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = c.Response().Header().Get(echo.HeaderXRequestID)
			}
			log := logger.With(zap.String("request_id", requestID))
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), log)))

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = api.StatusFor(err)
			}
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.String("uri", req.RequestURI),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}
			if id := c.Param("id"); id != "" {
				fields = append(fields, zap.String("resource_id", id))
			}

			switch {
			case status >= 500:
				log.Error("リクエスト失敗", append(fields, zap.Error(err))...)
			case status >= 400:
				log.Warn("クライアントエラー", append(fields, zap.Error(err))...)
			default:
				log.Info("リクエスト完了", fields...)
			}
			return err
		}
	}
}

func generateRequestID() string {
	return uuid.NewString()
}
