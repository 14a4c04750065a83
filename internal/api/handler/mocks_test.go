package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-match-ticket-booking/internal/application"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/match"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/venue"
)

// MockVenueService はVenueServiceInterfaceのモック
type MockVenueService struct {
	mock.Mock
}

func (m *MockVenueService) CreateVenue(ctx context.Context, input application.CreateVenueInput) (*venue.Venue, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*venue.Venue), args.Error(1)
}

func (m *MockVenueService) GetVenue(ctx context.Context, id string) (*venue.Venue, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*venue.Venue), args.Error(1)
}

func (m *MockVenueService) ListVenues(ctx context.Context, limit, offset int) ([]*venue.Venue, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*venue.Venue), args.Error(1)
}

// MockMatchService はMatchServiceInterfaceのモック
type MockMatchService struct {
	mock.Mock
}

func (m *MockMatchService) CreateMatch(ctx context.Context, input application.CreateMatchInput) (*match.Match, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*match.Match), args.Error(1)
}

func (m *MockMatchService) GetMatch(ctx context.Context, id string) (*match.Match, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*match.Match), args.Error(1)
}

func (m *MockMatchService) ListMatches(ctx context.Context, limit, offset int) ([]*match.Match, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*match.Match), args.Error(1)
}

func (m *MockMatchService) CancelMatch(ctx context.Context, id string) (*match.Match, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*match.Match), args.Error(1)
}

// MockSeatService はSeatServiceInterfaceのモック
type MockSeatService struct {
	mock.Mock
}

func (m *MockSeatService) GetSeat(ctx context.Context, key seat.Key) (*seat.Seat, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*seat.Seat), args.Error(1)
}

func (m *MockSeatService) ListSeats(ctx context.Context, venueID string, onlyFree bool) ([]*seat.Seat, error) {
	args := m.Called(ctx, venueID, onlyFree)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*seat.Seat), args.Error(1)
}

func (m *MockSeatService) CountFreeSeats(ctx context.Context, venueID string) (int, error) {
	args := m.Called(ctx, venueID)
	return args.Int(0), args.Error(1)
}

// MockBookingService はBookingServiceInterfaceのモック
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) result(args mock.Arguments) (*booking.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) Reserve(ctx context.Context, input application.ReserveInput) (*booking.Booking, error) {
	return m.result(m.Called(ctx, input))
}

func (m *MockBookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockBookingService) GetBookingByCode(ctx context.Context, code string) (*booking.Booking, error) {
	return m.result(m.Called(ctx, code))
}

func (m *MockBookingService) ListBookingsByEmail(ctx context.Context, email string, limit, offset int) ([]*booking.Booking, error) {
	args := m.Called(ctx, email, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockBookingService) Confirm(ctx context.Context, id string, p booking.PaymentDetails) (*booking.Booking, error) {
	return m.result(m.Called(ctx, id, p))
}

func (m *MockBookingService) Pay(ctx context.Context, id, method string) (*booking.Booking, error) {
	return m.result(m.Called(ctx, id, method))
}

func (m *MockBookingService) Cancel(ctx context.Context, id, reason string) (*booking.Booking, error) {
	return m.result(m.Called(ctx, id, reason))
}

func (m *MockBookingService) Abandon(ctx context.Context, id, reason string) (*booking.Booking, error) {
	return m.result(m.Called(ctx, id, reason))
}

type testRouter struct {
	e        *echo.Echo
	venues   *MockVenueService
	matches  *MockMatchService
	seats    *MockSeatService
	bookings *MockBookingService
}

func newTestRouter() *testRouter {
	r := &testRouter{
		e:        NewTestEcho(),
		venues:   new(MockVenueService),
		matches:  new(MockMatchService),
		seats:    new(MockSeatService),
		bookings: new(MockBookingService),
	}
	RegisterRoutes(r.e, Handlers{
		Health:  NewHealthHandler(),
		Venue:   NewVenueHandler(r.venues),
		Match:   NewMatchHandler(r.matches),
		Seat:    NewSeatHandler(r.seats),
		Booking: NewBookingHandler(r.bookings),
	})
	return r
}

func (r *testRouter) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	r.e.ServeHTTP(rec, req)
	return rec
}

func (r *testRouter) assertExpectations(t *testing.T) {
	r.venues.AssertExpectations(t)
	r.matches.AssertExpectations(t)
	r.seats.AssertExpectations(t)
	r.bookings.AssertExpectations(t)
}

