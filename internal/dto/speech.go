package dto

// SpeechToken is the scoped credential handed to browsers. ExpiresIn is
// in seconds; clients should cache until expires_at minus 60s.
type SpeechToken struct {
	Token     string `json:"token"`
	Region    string `json:"region"`
	ExpiresIn int64  `json:"expires_in"`
}

// UploadAnalysisRequest carries the multipart upload fields. AnalysisID is
// the client-chosen idempotency key.
type UploadAnalysisRequest struct {
	AnalysisID   string `json:"analysis_id" validate:"required,uuid4"`
	AnalysisJSON []byte `json:"-"`
	Audio        []byte `json:"-"`
	AudioName    string `json:"-"`
	LatencyMs    int64  `json:"latency_ms"`
	ProgressID   string `json:"progress_id"`
}

// UploadAnalysisResponse reports the persistence outcome. Persisted is
// false for retried uploads and teacher previews.
type UploadAnalysisResponse struct {
	AnalysisID string `json:"analysis_id"`
	Persisted  bool   `json:"persisted"`
	Duplicate  bool   `json:"duplicate"`
}
