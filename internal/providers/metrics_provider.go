package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ledgerd/internal/structures"
)

// LedgerStats is the slice of the ledger service the gauges read from.
type LedgerStats interface {
	CachedMonths() int
	CategoriesCount() int
}

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObserveRemoteCallDuration(operation string, duration time.Duration)
	IncRemoteErrors(operation string)
	RegisterLedgerGauges(stats LedgerStats)
}

type MetricsProvider struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	remoteCallDuration *prometheus.HistogramVec
	remoteErrors       *prometheus.CounterVec
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObserveRemoteCallDuration(operation string, duration time.Duration) {
	m.remoteCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncRemoteErrors(operation string) {
	m.remoteErrors.WithLabelValues(operation).Inc()
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerd_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgerd_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerd_response_cache_hits_total",
			Help: "Total number of response cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerd_response_cache_misses_total",
			Help: "Total number of response cache misses",
		}),

		remoteCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgerd_remote_call_duration_seconds",
			Help:    "Remote API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		remoteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerd_remote_errors_total",
			Help: "Total number of failed remote API calls",
		}, []string{"operation"}),
	}

	return m
}

// RegisterLedgerGauges hooks the cache size gauges to the ledger service.
// Called once the service exists, it keeps the provider constructible
// before the service it observes.
func (m *MetricsProvider) RegisterLedgerGauges(stats LedgerStats) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ledgerd_cached_months",
		Help: "Number of months currently held in the cache",
	}, func() float64 {
		return float64(stats.CachedMonths())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ledgerd_categories",
		Help: "Number of known categories",
	}, func() float64 {
		return float64(stats.CategoriesCount())
	})
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                        {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration)        {}
func (n *noopMetrics) IncCacheHits()                                           {}
func (n *noopMetrics) IncCacheMisses()                                         {}
func (n *noopMetrics) ObserveRemoteCallDuration(_ string, _ time.Duration)     {}
func (n *noopMetrics) IncRemoteErrors(_ string)                                {}
func (n *noopMetrics) RegisterLedgerGauges(_ LedgerStats)                      {}
