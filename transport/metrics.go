package transport

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks transport behavior for hosts that scrape Prometheus. All
// observation methods are nil-receiver safe, so the client runs without a
// registry unless one is wired in.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetrics registers the transport collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "transactlab",
				Subsystem: "sdk_http",
				Name:      "requests_total",
				Help:      "Outbound requests by method and final status.",
			},
			[]string{"method", "status"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "transactlab",
				Subsystem: "sdk_http",
				Name:      "retries_total",
				Help:      "Retry attempts by trigger.",
			},
			[]string{"reason"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "transactlab",
				Subsystem: "sdk_http",
				Name:      "request_duration_seconds",
				Help:      "Wall-clock request duration including retries and backoff.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "transactlab",
			Subsystem: "sdk_http",
			Name:      "idempotency_cache_hits_total",
			Help:      "Requests answered from the idempotency cache.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "transactlab",
			Subsystem: "sdk_http",
			Name:      "idempotency_cache_misses_total",
			Help:      "Keyed requests that had to reach the network.",
		}),
	}
}

func (m *Metrics) observeRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(method, label).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) observeRetry(reason string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
