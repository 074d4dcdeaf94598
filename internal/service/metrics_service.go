package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/course-registration-api/internal/models"
)

const metricsNamespace = "course"

// durationStat keeps a running count and total for averaged summary figures.
type durationStat struct {
	count uint64
	total uint64
}

func (d *durationStat) add(elapsed time.Duration) {
	atomic.AddUint64(&d.count, 1)
	atomic.AddUint64(&d.total, uint64(elapsed.Nanoseconds()))
}

func (d *durationStat) load() (uint64, float64) {
	count := atomic.LoadUint64(&d.count)
	if count == 0 {
		return 0, 0
	}
	total := atomic.LoadUint64(&d.total)
	return count, float64(total) / float64(count) / float64(time.Millisecond)
}

// MetricsService owns the Prometheus registry of the API. All methods accept a nil receiver.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration *prometheus.HistogramVec
	cacheOps     *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	txDuration   *prometheus.HistogramVec
	outcomes     *prometheus.CounterVec

	requests durationStat
	txs      durationStat
	hits     uint64
	misses   uint64

	mu           sync.Mutex
	outcomeCount map[string]uint64
}

// NewMetricsService builds a registry with HTTP, cache, transaction and outcome collectors
// alongside the Go runtime and process collectors.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry: prometheus.NewRegistry(),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		cacheOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "catalog_cache",
			Name:      "operation_seconds",
			Help:      "Catalog cache read and write latency.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		}, []string{"op"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "catalog_cache",
			Name:      "lookups_total",
			Help:      "Catalog cache lookups by result.",
		}, []string{"result"}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "registration_tx_duration_seconds",
			Help:      "Registration transaction latency by operation and result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "registration_outcomes_total",
			Help:      "Registration operations by reported outcome or error code.",
		}, []string{"operation", "outcome"}),
		outcomeCount: make(map[string]uint64),
	}

	m.registry.MustRegister(
		m.httpDuration,
		m.cacheOps,
		m.cacheLookups,
		m.txDuration,
		m.outcomes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request under its route template.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
	m.requests.add(elapsed)
}

// RecordCacheOperation records a catalog cache read.
func (m *MetricsService) RecordCacheOperation(hit bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues("get").Observe(elapsed.Seconds())
	result := "miss"
	if hit {
		result = "hit"
		atomic.AddUint64(&m.hits, 1)
	} else {
		atomic.AddUint64(&m.misses, 1)
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite records a catalog cache write.
func (m *MetricsService) ObserveCacheWrite(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues("set").Observe(elapsed.Seconds())
}

// ObserveTransaction records how long a registration transaction ran and whether it committed.
func (m *MetricsService) ObserveTransaction(operation string, committed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "rollback"
	if committed {
		result = "commit"
	}
	m.txDuration.WithLabelValues(operation, result).Observe(elapsed.Seconds())
	m.txs.add(elapsed)
}

// RecordOutcome counts the outcome reported by a registration operation.
func (m *MetricsService) RecordOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(operation, outcome).Inc()
	m.mu.Lock()
	m.outcomeCount[operation+":"+outcome]++
	m.mu.Unlock()
}

// Snapshot summarises the counters for the registrar metrics endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	requests, avgRequest := m.requests.load()
	txs, avgTx := m.txs.load()
	hits := atomic.LoadUint64(&m.hits)
	misses := atomic.LoadUint64(&m.misses)

	snap := models.MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequest,
		CacheHits:                hits,
		CacheMisses:              misses,
		TransactionsTotal:        txs,
		AverageTxDurationMs:      avgTx,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
	if lookups := hits + misses; lookups > 0 {
		snap.CacheHitRatio = float64(hits) / float64(lookups)
	}

	m.mu.Lock()
	snap.RegistrationOutcomes = make(map[string]uint64, len(m.outcomeCount))
	for key, n := range m.outcomeCount {
		snap.RegistrationOutcomes[key] = n
	}
	m.mu.Unlock()
	return snap
}
