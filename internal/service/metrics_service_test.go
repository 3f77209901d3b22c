package service

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest("GET", "/api/v1/auth/me", 200, 10*time.Millisecond)
	m.ObserveHTTPRequest("POST", "/api/v1/speech/upload-analysis", 201, 30*time.Millisecond)
	m.ObserveAssessment("ok", 400*time.Millisecond)
	m.ObserveAssessment("error", 200*time.Millisecond)
	m.RecordCacheOperation(true)
	m.RecordCacheOperation(true)
	m.RecordCacheOperation(false)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.RequestsTotal)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.001)
	assert.EqualValues(t, 2, snap.AssessmentsTotal)
	assert.EqualValues(t, 1, snap.AssessmentFailures)
	assert.InDelta(t, 300.0, snap.AverageAssessmentMs, 0.001)
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRatio, 0.001)
	assert.EqualValues(t, 2, snap.CacheHits)
	assert.EqualValues(t, 1, snap.CacheMisses)
	assert.False(t, snap.GeneratedAt.IsZero())
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/api/v1/schools", 200, time.Millisecond)
	m.ObserveTokenIssue(50 * time.Millisecond)
	m.ObserveBatchGrade(2*time.Second, 9, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "speech_provider_duration_seconds")
	assert.Contains(t, body, "grading_items_total")
	assert.Contains(t, body, "goroutines_total")
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
	m.RecordCacheOperation(true)
	assert.Zero(t, m.Snapshot().RequestsTotal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 503, rec.Code)
}
