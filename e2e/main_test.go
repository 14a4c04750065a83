package e2e

import (
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-match-ticket-booking/internal/api"
	"github.com/sanosuguru/go-match-ticket-booking/internal/api/handler"
	"github.com/sanosuguru/go-match-ticket-booking/internal/api/middleware"
	"github.com/sanosuguru/go-match-ticket-booking/internal/application"
	"github.com/sanosuguru/go-match-ticket-booking/internal/config"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/match"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/venue"
	"github.com/sanosuguru/go-match-ticket-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-match-ticket-booking/internal/infrastructure/payment"
	"github.com/sanosuguru/go-match-ticket-booking/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/clock"
)

var (
	testStart = time.Date(2025, 5, 10, 18, 0, 0, 0, time.UTC)
	testDB    *sqlx.DB
)

// TestMain は E2E_STORAGE=postgres のときだけDBに接続する
// DB未起動時はインメモリで実行する
func TestMain(m *testing.M) {
	if os.Getenv("E2E_STORAGE") == "postgres" {
		cfg := config.Load()
		if db, err := postgres.NewConnection(&cfg.Database); err == nil {
			if err := postgres.RunMigrations(db, "../migrations"); err == nil {
				testDB = db
			} else {
				db.Close()
			}
		}
	}

	code := m.Run()

	if testDB != nil {
		cleanupTables()
		testDB.Close()
	}
	os.Exit(code)
}

// TestServer はE2Eテスト用のサーバー
type TestServer struct {
	Echo      *echo.Echo
	Clock     *clock.Manual
	Leases    *application.HoldLeaseManager
	Lifecycle *application.LifecycleController
	Gateway   *payment.SandboxGateway
}

func cleanupTables() {
	testDB.MustExec("TRUNCATE TABLE booking_tickets, bookings, seats, matches, venues CASCADE")
}

// newTestServer はテストごとに独立したサーバーを作る
func newTestServer(t *testing.T) *TestServer {
	t.Helper()
	clk := clock.NewManual(testStart)

	var (
		ledger   seat.Ledger
		bookings booking.Repository
		venues   venue.Repository
		matches  match.Repository
	)
	if testDB != nil {
		cleanupTables()
		ledger = postgres.NewSeatLedger(testDB, clk)
		bookings = postgres.NewBookingRepository(testDB)
		venues = postgres.NewVenueRepository(testDB)
		matches = postgres.NewMatchRepository(testDB)
	} else {
		ledger = memory.NewSeatLedger(clk)
		bookings = memory.NewBookingRepository()
		venues = memory.NewVenueRepository()
		matches = memory.NewMatchRepository()
	}

	gateway := payment.NewSandboxGateway()
	leases := application.NewHoldLeaseManager(ledger, bookings, application.WithLeaseClock(clk))
	lifecycle := application.NewLifecycleController(bookings, leases, application.WithLifecycleClock(clk))
	bookingService := application.NewBookingService(bookings, matches, leases, lifecycle,
		application.WithPaymentGateway(gateway),
		application.WithBookingClock(clk),
	)

	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e)

	handler.RegisterRoutes(e, handler.Handlers{
		Health:  handler.NewHealthHandler(),
		Venue:   handler.NewVenueHandler(application.NewVenueService(venues, ledger)),
		Match:   handler.NewMatchHandler(application.NewMatchService(matches, venues)),
		Seat:    handler.NewSeatHandler(application.NewSeatService(ledger, venues, nil)),
		Booking: handler.NewBookingHandler(bookingService),
	})

	return &TestServer{Echo: e, Clock: clk, Leases: leases, Lifecycle: lifecycle, Gateway: gateway}
}
