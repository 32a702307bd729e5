package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics records request counts and latency per service and route.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the server instruments with reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	return &HTTPMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swish",
			Subsystem: "sandbox",
			Name:      "http_requests_total",
			Help:      "Requests served by the sandbox services",
		}, []string{"service", "method", "route", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swish",
			Subsystem: "sandbox",
			Name:      "http_request_duration_seconds",
			Help:      "Sandbox request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method", "route"}),
	}
}

// Handler instruments every request served under service. Routes are labelled
// by their pattern so path parameters do not explode cardinality.
func (m *HTTPMetrics) Handler(service string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		route := c.Route().Path
		m.requests.WithLabelValues(service, c.Method(), route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(service, c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
