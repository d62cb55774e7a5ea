package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	impressionsReserved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ad_impressions_reserved_total",
			Help: "Impressions reserved by the serve endpoint",
		},
	)

	serveNoFill = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ad_serve_no_fill_total",
			Help: "Serve requests answered without an eligible ad",
		},
	)

	impressionsConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_impressions_confirmed_total",
			Help: "Impression confirmations partitioned by event",
		},
		[]string{"event"},
	)

	billedCents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ad_billed_cents_total",
			Help: "Minor units billed against ad and campaign budgets",
		},
	)
)

// Metrics returns a Fiber v3 middleware that records basic Prometheus metrics.
// Labels are kept low-cardinality by using the matched route path when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		method := c.Method()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path // Use route template to avoid high cardinality
		}

		labels := prometheus.Labels{
			"method": method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// RecordImpressionReserved counts a successful reservation
func RecordImpressionReserved() {
	impressionsReserved.Inc()
}

// RecordServeNoFill counts a serve request with no eligible ad
func RecordServeNoFill() {
	serveNoFill.Inc()
}

// RecordImpressionConfirmed counts one accepted confirmation event and,
// for the billing event, the billed minor units
func RecordImpressionConfirmed(event string, costCents int64) {
	impressionsConfirmed.WithLabelValues(event).Inc()
	if costCents > 0 {
		billedCents.Add(float64(costCents))
	}
}
