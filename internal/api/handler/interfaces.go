package handler

import (
	"context"

	"github.com/sanosuguru/go-match-ticket-booking/internal/application"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/match"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/venue"
)

// VenueServiceInterface は会場サービスのインターフェース
type VenueServiceInterface interface {
	CreateVenue(ctx context.Context, input application.CreateVenueInput) (*venue.Venue, error)
	GetVenue(ctx context.Context, id string) (*venue.Venue, error)
	ListVenues(ctx context.Context, limit, offset int) ([]*venue.Venue, error)
}

// MatchServiceInterface は試合サービスのインターフェース
type MatchServiceInterface interface {
	CreateMatch(ctx context.Context, input application.CreateMatchInput) (*match.Match, error)
	GetMatch(ctx context.Context, id string) (*match.Match, error)
	ListMatches(ctx context.Context, limit, offset int) ([]*match.Match, error)
	CancelMatch(ctx context.Context, id string) (*match.Match, error)
}

// SeatServiceInterface は座席サービスのインターフェース
type SeatServiceInterface interface {
	GetSeat(ctx context.Context, key seat.Key) (*seat.Seat, error)
	ListSeats(ctx context.Context, venueID string, onlyFree bool) ([]*seat.Seat, error)
	CountFreeSeats(ctx context.Context, venueID string) (int, error)
}

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	Reserve(ctx context.Context, input application.ReserveInput) (*booking.Booking, error)
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	GetBookingByCode(ctx context.Context, code string) (*booking.Booking, error)
	ListBookingsByEmail(ctx context.Context, email string, limit, offset int) ([]*booking.Booking, error)
	Confirm(ctx context.Context, id string, p booking.PaymentDetails) (*booking.Booking, error)
	Pay(ctx context.Context, id, method string) (*booking.Booking, error)
	Cancel(ctx context.Context, id, reason string) (*booking.Booking, error)
	Abandon(ctx context.Context, id, reason string) (*booking.Booking, error)
}
