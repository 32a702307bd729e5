package transport

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the request instruments shared by every Client of a process.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the client instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swish",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total requests issued to remote services",
		}, []string{"service", "method", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swish",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Remote request latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"service", "method"}),
	}
}

func (m *Metrics) observe(service, method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(service, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(service, method).Observe(elapsed.Seconds())
}
