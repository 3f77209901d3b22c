package models

import "time"

// SystemMetrics is a lightweight runtime snapshot for the ops endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	AssessmentsTotal         uint64    `json:"assessments_total"`
	AssessmentFailures       uint64    `json:"assessment_failures"`
	AverageAssessmentMs      float64   `json:"average_assessment_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
