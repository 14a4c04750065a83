package handler

import "github.com/labstack/echo/v4"

// Handlers はルーティングに載せるハンドラー一式
type Handlers struct {
	Health  *HealthHandler
	Venue   *VenueHandler
	Match   *MatchHandler
	Seat    *SeatHandler
	Booking *BookingHandler
}

// RegisterRoutes は /api/v1 配下にルートを登録する
func RegisterRoutes(e *echo.Echo, h Handlers) {
	v1 := e.Group("/api/v1")
	v1.GET("/health", h.Health.Check)

	v1.POST("/venues", h.Venue.Create)
	v1.GET("/venues", h.Venue.List)
	v1.GET("/venues/:id", h.Venue.GetByID)

	v1.GET("/venues/:venue_id/seats", h.Seat.ListByVenue)
	v1.GET("/venues/:venue_id/seats/count", h.Seat.CountFree)
	v1.GET("/venues/:venue_id/seats/:section/:row/:number", h.Seat.GetByKey)

	v1.POST("/matches", h.Match.Create)
	v1.GET("/matches", h.Match.List)
	v1.GET("/matches/:id", h.Match.GetByID)
	v1.POST("/matches/:id/cancel", h.Match.Cancel)

	v1.POST("/bookings", h.Booking.Reserve)
	v1.GET("/bookings", h.Booking.ListByEmail)
	v1.GET("/bookings/code/:code", h.Booking.GetByCode)
	v1.GET("/bookings/:id", h.Booking.GetByID)
	v1.POST("/bookings/:id/confirm", h.Booking.Confirm)
	v1.POST("/bookings/:id/pay", h.Booking.Pay)
	v1.POST("/bookings/:id/cancel", h.Booking.Cancel)
	v1.POST("/bookings/:id/abandon", h.Booking.Abandon)
}
