package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 仮押さえ要求の総数（status: success, conflict, error）
	ReservationsTotal *prometheus.CounterVec

	// 予約の状態遷移数（to: confirmed, cancelled, refunded, expired）
	BookingTransitionsTotal *prometheus.CounterVec

	// 期限切れで解放された座席数
	HoldSeatsExpiredTotal prometheus.Counter

	// 期限切れスイープ1回の所要時間
	HoldSweepDuration prometheus.Histogram

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Total number of seat hold attempts",
			},
			[]string{"status"},
		),
		BookingTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_transitions_total",
				Help: "Total number of booking lifecycle transitions",
			},
			[]string{"to"},
		),
		HoldSeatsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hold_seats_expired_total",
				Help: "Total number of held seats released by the expiry sweep",
			},
		),
		HoldSweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hold_sweep_duration_seconds",
				Help:    "Duration of one hold expiry sweep",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.BookingTransitionsTotal,
		m.HoldSeatsExpiredTotal,
		m.HoldSweepDuration,
		m.DistributedLockDuration,
	)

	return m
}

// 以下のヘルパーは nil レシーバでも呼べる（メトリクス無効時）

// ObserveHTTP はHTTPリクエスト1件を記録する
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveReservation は仮押さえ要求の結果を記録する
func (m *Metrics) ObserveReservation(status string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(status).Inc()
}

// ObserveTransition は予約の状態遷移を記録する
func (m *Metrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.BookingTransitionsTotal.WithLabelValues(to).Inc()
}

// ObserveSweep はスイープ1回分の結果を記録する
func (m *Metrics) ObserveSweep(expiredSeats int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HoldSeatsExpiredTotal.Add(float64(expiredSeats))
	m.HoldSweepDuration.Observe(elapsed.Seconds())
}

// ObserveLock は分散ロック操作の所要時間を記録する
func (m *Metrics) ObserveLock(operation string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failed"
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(elapsed.Seconds())
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
