package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exchange outcome labels.
const (
	OutcomeSuccess       = "success"
	OutcomeRequestFailed = "request_failed"
	OutcomeUnreachable   = "unreachable"
	OutcomeServiceError  = "service_error"
	OutcomeParseFailed   = "parse_failed"
	OutcomeEmpty         = "empty"
)

var (
	ExchangeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "npcchat_exchanges_total",
			Help: "Total number of completed exchanges by outcome",
		},
		[]string{"outcome"},
	)

	ExchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "npcchat_exchange_duration_seconds",
			Help:    "Exchange duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "npcchat_dispatch_queue_depth",
			Help: "Current number of requests waiting for a concurrency slot",
		},
	)

	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "npcchat_dispatch_in_flight",
			Help: "Current number of exchanges mid-flight",
		},
	)
)

var registerOnce sync.Once

// Init registers all metrics with the default Prometheus registry.
// Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ExchangeTotal)
		prometheus.MustRegister(ExchangeDuration)
		prometheus.MustRegister(QueueDepth)
		prometheus.MustRegister(InFlight)
	})
}

// ObserveExchange records one completed exchange.
func ObserveExchange(outcome string, d time.Duration) {
	ExchangeTotal.WithLabelValues(outcome).Inc()
	ExchangeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
