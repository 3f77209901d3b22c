package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/duotopia/duotopia-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides
// lightweight snapshots for the ops endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	assessmentTotal *prometheus.CounterVec
	batchDuration   prometheus.Observer
	batchItems      *prometheus.CounterVec
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	assessmentCount      uint64
	assessmentFailures   uint64
	assessmentDuration   uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	providerLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speech_provider_duration_seconds",
		Help:    "Latency of speech-provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	assessmentTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_assessments_total",
		Help: "Total pronunciation assessments by outcome",
	}, []string{"outcome"})

	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "grading_batch_duration_seconds",
		Help:    "Duration of batch-grading runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	batchItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grading_items_total",
		Help: "Items processed by batch grading, by outcome",
	}, []string{"outcome"})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, providerLatency, assessmentTotal,
		batchDuration, batchItems, cacheHitRatio, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		providerLatency: providerLatency,
		assessmentTotal: assessmentTotal,
		batchDuration:   batchDuration,
		batchItems:      batchItems,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats
// for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveAssessment records one provider assessment call.
func (m *MetricsService) ObserveAssessment(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues("assess").Observe(duration.Seconds())
	m.assessmentTotal.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.assessmentCount, 1)
	atomic.AddUint64(&m.assessmentDuration, uint64(duration.Nanoseconds()))
	if outcome != "ok" {
		atomic.AddUint64(&m.assessmentFailures, 1)
	}
}

// ObserveTokenIssue records one provider token round-trip.
func (m *MetricsService) ObserveTokenIssue(duration time.Duration) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues("token").Observe(duration.Seconds())
}

// ObserveBatchGrade records a whole batch-grading run.
func (m *MetricsService) ObserveBatchGrade(duration time.Duration, ok, failed int) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(duration.Seconds())
	m.batchItems.WithLabelValues("ok").Add(float64(ok))
	m.batchItems.WithLabelValues("error").Add(float64(failed))
}

// RecordCacheOperation records cache hit/miss metrics and updates the hit
// ratio.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// Snapshot returns aggregated metrics suitable for the ops endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	assessments := atomic.LoadUint64(&m.assessmentCount)
	assessmentDuration := atomic.LoadUint64(&m.assessmentDuration)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	var avgAssessmentMs float64
	if assessments > 0 {
		avgAssessmentMs = float64(assessmentDuration) / float64(assessments) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		AssessmentsTotal:         assessments,
		AssessmentFailures:       atomic.LoadUint64(&m.assessmentFailures),
		AverageAssessmentMs:      avgAssessmentMs,
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
