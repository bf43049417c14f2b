package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics handles all Prometheus metrics for the tokenmarket core.
type PrometheusMetrics struct {
	// Scheduler / tick metrics
	TickDuration *prometheus.HistogramVec
	TickSkipped  prometheus.Counter
	DueSetSize   prometheus.Gauge

	// Vendor fetch metrics
	FetchLatency  *prometheus.HistogramVec
	FetchFailures *prometheus.CounterVec
	CreditsUsed   *prometheus.CounterVec

	// Indicator engine metrics
	IndicatorPassDuration *prometheus.HistogramVec
	BarsProcessed         *prometheus.CounterVec

	// Alert engine metrics
	AlertEventsEmitted     *prometheus.CounterVec
	NotificationDeliveries *prometheus.CounterVec

	// Service health
	ServiceUptime prometheus.Gauge

	server *http.Server
}

// NewPrometheusMetrics creates and registers every tokenmarket metric family.
func NewPrometheusMetrics() *PrometheusMetrics {
	metrics := &PrometheusMetrics{
		TickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenmarket_tick_duration_seconds",
				Help:    "Duration of one scheduler tick",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),

		TickSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tokenmarket_tick_skipped_total",
				Help: "Total number of ticks skipped because the previous tick was still running",
			},
		),

		DueSetSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tokenmarket_due_set_size",
				Help: "Number of (token, timeframe) pairs due for fetch at the most recent tick",
			},
		),

		FetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenmarket_vendor_fetch_latency_seconds",
				Help:    "Vendor OHLCV fetch latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"vendor", "timeframe"},
		),

		FetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenmarket_vendor_fetch_failures_total",
				Help: "Vendor fetch failures by classification",
			},
			[]string{"vendor", "reason"},
		),

		CreditsUsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenmarket_vendor_credits_used_total",
				Help: "API credits consumed per vendor key",
			},
			[]string{"vendor", "key_label"},
		),

		IndicatorPassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenmarket_indicator_pass_duration_seconds",
				Help:    "Duration of one indicator engine pass",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"engine", "timeframe"},
		),

		BarsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenmarket_bars_processed_total",
				Help: "Total number of candle bars folded by an indicator engine",
			},
			[]string{"engine", "timeframe"},
		),

		AlertEventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenmarket_alert_events_emitted_total",
				Help: "Alert events emitted by the alert engine",
			},
			[]string{"event_type", "pair"},
		),

		NotificationDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenmarket_notification_deliveries_total",
				Help: "Notification delivery attempts by outcome",
			},
			[]string{"status"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tokenmarket_service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	prometheus.MustRegister(
		metrics.TickDuration,
		metrics.TickSkipped,
		metrics.DueSetSize,
		metrics.FetchLatency,
		metrics.FetchFailures,
		metrics.CreditsUsed,
		metrics.IndicatorPassDuration,
		metrics.BarsProcessed,
		metrics.AlertEventsEmitted,
		metrics.NotificationDeliveries,
		metrics.ServiceUptime,
	)

	return metrics
}

// Start starts the Prometheus metrics HTTP server.
func (m *PrometheusMetrics) Start(listenAddress string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	m.server = &http.Server{
		Addr:    listenAddress,
		Handler: mux,
	}

	log.Printf("starting metrics server on %s", listenAddress)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the Prometheus metrics server.
func (m *PrometheusMetrics) Stop() error {
	if m.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.server.Shutdown(ctx)
}

// RecordTick records a completed tick's duration and outcome.
func (m *PrometheusMetrics) RecordTick(outcome string, duration time.Duration) {
	m.TickDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordTickSkipped records a tick that was skipped due to overlap.
func (m *PrometheusMetrics) RecordTickSkipped() {
	m.TickSkipped.Inc()
}

// SetDueSetSize records the size of the most recent due set.
func (m *PrometheusMetrics) SetDueSetSize(n int) {
	m.DueSetSize.Set(float64(n))
}

// RecordFetch records one vendor fetch's latency.
func (m *PrometheusMetrics) RecordFetch(vendor, timeframe string, duration time.Duration) {
	m.FetchLatency.WithLabelValues(vendor, timeframe).Observe(duration.Seconds())
}

// RecordFetchFailure records a classified vendor fetch failure.
func (m *PrometheusMetrics) RecordFetchFailure(vendor, reason string) {
	m.FetchFailures.WithLabelValues(vendor, reason).Inc()
}

// RecordCreditsUsed records credits consumed by one vendor key.
func (m *PrometheusMetrics) RecordCreditsUsed(vendor, keyLabel string, credits int) {
	m.CreditsUsed.WithLabelValues(vendor, keyLabel).Add(float64(credits))
}

// RecordIndicatorPass records one indicator engine pass's duration and bar count.
func (m *PrometheusMetrics) RecordIndicatorPass(engine, timeframe string, duration time.Duration, bars int) {
	m.IndicatorPassDuration.WithLabelValues(engine, timeframe).Observe(duration.Seconds())
	m.BarsProcessed.WithLabelValues(engine, timeframe).Add(float64(bars))
}

// RecordAlertEvent records one emitted alert event.
func (m *PrometheusMetrics) RecordAlertEvent(eventType, pair string) {
	m.AlertEventsEmitted.WithLabelValues(eventType, pair).Inc()
}

// RecordNotificationDelivery records a notification send attempt's outcome.
func (m *PrometheusMetrics) RecordNotificationDelivery(status string) {
	m.NotificationDeliveries.WithLabelValues(status).Inc()
}

// SetServiceUptime sets the service uptime gauge.
func (m *PrometheusMetrics) SetServiceUptime(uptime time.Duration) {
	m.ServiceUptime.Set(uptime.Seconds())
}
