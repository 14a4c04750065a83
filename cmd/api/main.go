package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

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
	"github.com/sanosuguru/go-match-ticket-booking/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-match-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/clock"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-match-ticket-booking/internal/worker"
)

// stores は選択したストレージの実装一式
type stores struct {
	ledger   seat.Ledger
	bookings booking.Repository
	venues   venue.Repository
	matches  match.Repository
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, ".env の読み込みに失敗: %v\n", err)
	}
	cfg := config.Load()

	logger.Init(cfg.AppEnv)
	defer func() { _ = logger.Sync() }()

	m := metrics.Init()
	clk := clock.NewSystem()

	var (
		st     stores
		checks []handler.HealthCheck
	)
	switch cfg.Storage {
	case "memory":
		st = stores{
			ledger:   memory.NewSeatLedger(clk),
			bookings: memory.NewBookingRepository(),
			venues:   memory.NewVenueRepository(),
			matches:  memory.NewMatchRepository(),
		}
		logger.Info("インメモリストレージで起動")
	default:
		db := mustConnectPostgres(cfg)
		defer db.Close()
		st = stores{
			ledger:   postgres.NewSeatLedger(db, clk),
			bookings: postgres.NewBookingRepository(db),
			venues:   postgres.NewVenueRepository(db),
			matches:  postgres.NewMatchRepository(db),
		}
		checks = append(checks, handler.HealthCheck{
			Name:  "postgres",
			Check: func(ctx context.Context) error { return postgres.Ping(ctx, db) },
		})
	}

	lifecycleOpts := []application.LifecycleOption{
		application.WithLifecycleClock(clk),
		application.WithLifecycleMetrics(m),
	}
	bookingOpts := []application.BookingServiceOption{
		application.WithPaymentGateway(payment.NewSandboxGateway()),
		application.WithBookingClock(clk),
		application.WithBookingMetrics(m),
		application.WithBookingPolicy(application.BookingPolicy{
			Pricing:         booking.Pricing{TaxRateBP: cfg.Booking.TaxRateBP, Fee: cfg.Booking.Fee},
			CancellationFee: cfg.Booking.CancellationFee,
			RefundCutoff:    cfg.Booking.RefundCutoff,
		}),
	}
	var (
		cache       application.AvailabilityCache
		sweeperOpts []worker.SweeperOption
	)

	// Redis があればレプリカ間で予約ロック・スイープ担当・空席数キャッシュを共有する
	if cfg.Redis.Enabled {
		rc, err := redisinfra.NewClient(&cfg.Redis)
		if err != nil {
			logger.Warn("Redisに接続できないためプロセス内ロックで起動", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		} else {
			defer rc.Close()
			lm := redisinfra.NewLockManager(rc, m)
			sweeperLock := redisinfra.NewSweeperLock(lm, 2*cfg.Booking.SweepInterval)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				sweeperLock.Close(ctx)
			}()

			lifecycleOpts = append(lifecycleOpts, application.WithBookingLocker(redisinfra.NewBookingLocker(lm)))
			sweeperOpts = append(sweeperOpts, worker.WithLeaderLock(sweeperLock))
			cache = redisinfra.NewAvailabilityCache(rc)
			bookingOpts = append(bookingOpts, application.WithAvailabilityCache(cache))
			checks = append(checks, redisCheck(rc))
		}
	}

	if cfg.RabbitMQ.Enabled {
		pub := rabbitmq.NewPublisher(cfg.RabbitMQ.URL)
		if err := pub.Connect(); err != nil {
			logger.Warn("RabbitMQに接続できないためログ通知で起動", zap.Error(err))
		} else {
			defer pub.Close()
			lifecycleOpts = append(lifecycleOpts, application.WithNotifier(pub))
		}
	}

	leases := application.NewHoldLeaseManager(st.ledger, st.bookings,
		application.WithLeaseClock(clk),
		application.WithLeaseMetrics(m),
	)
	lifecycle := application.NewLifecycleController(st.bookings, leases, lifecycleOpts...)
	bookingService := application.NewBookingService(st.bookings, st.matches, leases, lifecycle, bookingOpts...)
	venueService := application.NewVenueService(st.venues, st.ledger)
	matchService := application.NewMatchService(st.matches, st.venues)
	seatService := application.NewSeatService(st.ledger, st.venues, cache)

	sweeper := worker.NewHoldExpirySweeper(leases, lifecycle, cfg.Booking.SweepInterval, sweeperOpts...)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweeper.Start(sweepCtx)

	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	middleware.SetupMiddleware(e)
	e.Use(middleware.PrometheusMiddleware(m))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics))

	handler.RegisterRoutes(e, handler.Handlers{
		Health:  handler.NewHealthHandler(checks...),
		Venue:   handler.NewVenueHandler(venueService),
		Match:   handler.NewMatchHandler(matchService),
		Seat:    handler.NewSeatHandler(seatService),
		Booking: handler.NewBookingHandler(bookingService),
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
	}
	sweeper.Stop()
	stopSweep()

	logger.Info("サーバーが正常にシャットダウンしました")
}

func mustConnectPostgres(cfg *config.Config) *sqlx.DB {
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗", zap.Error(err))
	}
	if err := postgres.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗", zap.Error(err))
	}
	return db
}

func redisCheck(rc *goredis.Client) handler.HealthCheck {
	return handler.HealthCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return redisinfra.Ping(ctx, rc) },
	}
}
