package models

import "time"

// AssessmentScores carries the four pronunciation dimensions, each in
// [0,100].
type AssessmentScores struct {
	Accuracy      float64 `json:"accuracy"`
	Fluency       float64 `json:"fluency"`
	Pronunciation float64 `json:"pronunciation"`
	Completeness  float64 `json:"completeness"`
}

// Valid reports whether every dimension is inside [0,100].
func (s AssessmentScores) Valid() bool {
	for _, v := range []float64{s.Accuracy, s.Fluency, s.Pronunciation, s.Completeness} {
		if v < 0 || v > 100 {
			return false
		}
	}
	return true
}

// AssessmentResult is a parsed provider response.
type AssessmentResult struct {
	Scores         AssessmentScores `json:"scores"`
	RecognizedText string           `json:"recognized_text"`
	Raw            []byte           `json:"-"`
}

// AssessmentAttempt records one speech-assessment upload. AnalysisID is
// client-chosen and unique; it anchors upload idempotency and point
// deduction.
type AssessmentAttempt struct {
	ID            string    `db:"id" json:"id"`
	ProgressID    *string   `db:"progress_id" json:"progress_id,omitempty"`
	AnalysisID    string    `db:"analysis_id" json:"analysis_id"`
	LatencyMs     int64     `db:"latency_ms" json:"latency_ms"`
	RawAssessment []byte    `db:"raw_assessment" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// QuotaLedgerEntry is a point deduction keyed by analysis id so that
// retried uploads debit at most once.
type QuotaLedgerEntry struct {
	ID         string    `db:"id" json:"id"`
	TeacherID  *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	StudentID  *string   `db:"student_id" json:"student_id,omitempty"`
	Reason     string    `db:"reason" json:"reason"`
	AnalysisID string    `db:"analysis_id" json:"analysis_id"`
	Delta      int       `db:"delta" json:"delta"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
