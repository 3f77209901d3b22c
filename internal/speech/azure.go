package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/duotopia/duotopia-api/internal/models"
	"github.com/duotopia/duotopia-api/pkg/config"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
)

// Provider abstracts the external pronunciation-assessment service.
type Provider interface {
	// IssueToken exchanges the long-lived provider key for a short-lived
	// scoped credential usable directly from a browser.
	IssueToken(ctx context.Context) (token string, expiresIn time.Duration, err error)
	// Assess runs a server-side pronunciation assessment of audio against
	// a reference text.
	Assess(ctx context.Context, referenceText string, audio []byte) (*models.AssessmentResult, error)
	// Region returns the provider region clients must target.
	Region() string
}

// AzureClient talks to the Azure Cognitive Services speech endpoints. One
// instance owns a process-wide pooled HTTP client created at startup and
// closed at shutdown; callers borrow, never own.
type AzureClient struct {
	key      string
	region   string
	tokenTTL time.Duration
	http     *http.Client
	logger   *zap.Logger
}

// NewAzureClient builds the provider client from config.
func NewAzureClient(cfg config.SpeechConfig, logger *zap.Logger) *AzureClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 100
	}
	keepalive := cfg.KeepaliveConns
	if keepalive <= 0 {
		keepalive = 20
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 || ttl > 10*time.Minute {
		ttl = 10 * time.Minute
	}

	transport := &http.Transport{
		MaxConnsPerHost:     maxConns,
		MaxIdleConns:        keepalive,
		MaxIdleConnsPerHost: keepalive,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &AzureClient{
		key:      cfg.ProviderKey,
		region:   cfg.ProviderRegion,
		tokenTTL: ttl,
		http:     &http.Client{Transport: transport, Timeout: timeout},
		logger:   logger,
	}
}

// Region returns the configured provider region.
func (c *AzureClient) Region() string { return c.region }

// Close releases pooled connections. Called once at process shutdown.
func (c *AzureClient) Close() {
	if t, ok := c.http.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

// IssueToken fetches a scoped credential from the STS endpoint. The token
// is valid for at most ten minutes and never carries the provider key.
func (c *AzureClient) IssueToken(ctx context.Context) (string, time.Duration, error) {
	url := fmt.Sprintf("https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken", c.region)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Length", "0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, appErrors.Wrap(err, appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, "token issuance failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, appErrors.Wrap(err, appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, "token read failed")
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, appErrors.Wrap(fmt.Errorf("status %d", resp.StatusCode), appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, "token issuance rejected")
	}

	return string(body), c.tokenTTL, nil
}

// assessmentParams is the Pronunciation-Assessment header payload.
type assessmentParams struct {
	ReferenceText string `json:"ReferenceText"`
	GradingSystem string `json:"GradingSystem"`
	Granularity   string `json:"Granularity"`
	Dimension     string `json:"Dimension"`
}

type azureAssessment struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	NBest             []struct {
		PronScore         float64 `json:"PronScore"`
		AccuracyScore     float64 `json:"AccuracyScore"`
		FluencyScore      float64 `json:"FluencyScore"`
		CompletenessScore float64 `json:"CompletenessScore"`
		Display           string  `json:"Display"`
	} `json:"NBest"`
}

// Assess posts audio to the short-audio recognition endpoint with
// pronunciation assessment enabled and parses the score blob.
func (c *AzureClient) Assess(ctx context.Context, referenceText string, audio []byte) (*models.AssessmentResult, error) {
	params, err := json.Marshal(assessmentParams{
		ReferenceText: referenceText,
		GradingSystem: "HundredMark",
		Granularity:   "Word",
		Dimension:     "Comprehensive",
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1?language=en-US&format=detailed", c.region)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(audio))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "audio/wav; codecs=audio/pcm; samplerate=16000")
	req.Header.Set("Pronunciation-Assessment", base64.StdEncoding.EncodeToString(params))
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, "assessment call failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, "assessment read failed")
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("provider rejected assessment", zap.Int("status", resp.StatusCode))
		return nil, appErrors.Wrap(fmt.Errorf("status %d", resp.StatusCode), appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, "assessment rejected")
	}

	return ParseAssessment(body)
}

// ParseAssessment decodes a provider score blob. Blobs without a usable
// NBest entry yield an error so the caller can persist the attempt with
// null scores.
func ParseAssessment(raw []byte) (*models.AssessmentResult, error) {
	var parsed azureAssessment
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, "malformed assessment blob")
	}
	if len(parsed.NBest) == 0 {
		return nil, appErrors.Clone(appErrors.ErrProvider, "assessment blob has no hypotheses")
	}

	best := parsed.NBest[0]
	result := &models.AssessmentResult{
		Scores: models.AssessmentScores{
			Accuracy:      best.AccuracyScore,
			Fluency:       best.FluencyScore,
			Pronunciation: best.PronScore,
			Completeness:  best.CompletenessScore,
		},
		RecognizedText: parsed.DisplayText,
		Raw:            raw,
	}
	if result.RecognizedText == "" {
		result.RecognizedText = best.Display
	}
	if !result.Scores.Valid() {
		return nil, appErrors.Clone(appErrors.ErrProvider, "assessment scores out of range")
	}
	return result, nil
}
