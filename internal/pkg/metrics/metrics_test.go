package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	require.NotNil(t, m)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.HTTPRequestDuration)
	assert.NotNil(t, m.ReservationsTotal)
	assert.NotNil(t, m.BookingTransitionsTotal)
	assert.NotNil(t, m.HoldSeatsExpiredTotal)
	assert.NotNil(t, m.HoldSweepDuration)
	assert.NotNil(t, m.DistributedLockDuration)
}

func TestHTTPRequestsTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/matches", "200").Inc()
	m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/bookings", "201").Inc()
	m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/bookings", "409").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "http_requests_total" {
			found = true
			assert.Equal(t, 3, len(f.GetMetric()))
		}
	}
	assert.True(t, found, "http_requests_total metric not found")
}

func TestObserveReservation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveReservation("success")
	m.ObserveReservation("success")
	m.ObserveReservation("conflict")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReservationsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReservationsTotal.WithLabelValues("conflict")))
}

func TestObserveTransition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveTransition("confirmed")
	m.ObserveTransition("expired")
	m.ObserveTransition("expired")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingTransitionsTotal.WithLabelValues("confirmed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BookingTransitionsTotal.WithLabelValues("expired")))
}

func TestObserveSweep(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveSweep(3, 20*time.Millisecond)
	m.ObserveSweep(0, 5*time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HoldSeatsExpiredTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HoldSweepDuration))
}

func TestObserveLock(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveLock("acquire", true, 15*time.Millisecond)
	m.ObserveLock("acquire", false, 5*time.Millisecond)
	m.ObserveLock("release", true, 2*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "distributed_lock_duration_seconds" {
			found = true
			assert.Equal(t, 3, len(f.GetMetric()))
		}
	}
	assert.True(t, found, "distributed_lock_duration_seconds metric not found")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveReservation("success")
		m.ObserveTransition("confirmed")
		m.ObserveSweep(1, time.Millisecond)
		m.ObserveLock("acquire", true, time.Millisecond)
	})
}

func TestInit_CreatesDefaultMetrics(t *testing.T) {
	oldMetrics := defaultMetrics
	defer func() { defaultMetrics = oldMetrics }()

	// Init はデフォルトレジストリに登録するため、テストでは直接セット
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	defaultMetrics = m

	got := Get()
	assert.NotNil(t, got)
	assert.Equal(t, m, got)
}
