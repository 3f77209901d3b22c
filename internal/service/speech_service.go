package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/duotopia/duotopia-api/internal/dto"
	"github.com/duotopia/duotopia-api/internal/models"
	"github.com/duotopia/duotopia-api/internal/repository"
	"github.com/duotopia/duotopia-api/internal/speech"
	"github.com/duotopia/duotopia-api/pkg/config"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
	"github.com/duotopia/duotopia-api/pkg/jobs"
)

const (
	tokenCacheKey  = "speech:token"
	quotaKindToken = "speech_token"

	// Clients must stop using a cached token a minute before expiry.
	tokenSafetyMargin = 60 * time.Second
)

// JobTypeRecordingWrite is the queue job type for async audio blob writes.
const JobTypeRecordingWrite = "recording_write"

// RecordingWritePayload carries one audio blob to the writer queue.
type RecordingWritePayload struct {
	Filename string
	Data     []byte
}

type tokenCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type quotaCounter interface {
	Count(ctx context.Context, kind, principal string) (int64, error)
	Incr(ctx context.Context, kind, principal string) (int64, error)
}

type assessmentStore interface {
	SaveUpload(ctx context.Context, attempt *models.AssessmentAttempt, progress *repository.ProgressScoreUpdate, ledger repository.LedgerInfo) (bool, error)
	FindProgress(ctx context.Context, id string) (*models.StudentItemProgress, error)
}

type recordingEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type recordingOpener interface {
	Open(filename string) (*os.File, error)
}

type urlSigner interface {
	Generate(recordingID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (recordingID, relPath string, expiresAt time.Time, err error)
}

// cachedToken is the Redis-persisted credential shape.
type cachedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SpeechService fronts the pronunciation-assessment provider: scoped
// token issuance for browsers and persistence of client-run assessments.
type SpeechService struct {
	provider  speech.Provider
	cache     tokenCache
	quota     quotaCounter
	attempts  assessmentStore
	blobs     recordingEnqueuer
	files     recordingOpener
	signer    urlSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.SpeechConfig
	maxBytes  int64
	group     singleflight.Group
}

// NewSpeechService constructs a SpeechService.
func NewSpeechService(
	provider speech.Provider,
	cache tokenCache,
	quota quotaCounter,
	attempts assessmentStore,
	blobs recordingEnqueuer,
	files recordingOpener,
	signer urlSigner,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.SpeechConfig,
	maxBytes int64,
) *SpeechService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &SpeechService{
		provider:  provider,
		cache:     cache,
		quota:     quota,
		attempts:  attempts,
		blobs:     blobs,
		files:     files,
		signer:    signer,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		maxBytes:  maxBytes,
	}
}

// IssueToken hands the caller a short-lived provider credential. The
// cached token is shared process-wide, but issuance coalesces per
// principal so a stalled round-trip for one caller never serializes the
// rest; subsequent callers hit the cache until one minute before expiry.
// Demo callers are capped per day; authenticated callers follow their
// own (possibly unlimited) cap.
func (s *SpeechService) IssueToken(ctx context.Context, actor *models.JWTClaims, clientKey string) (*dto.SpeechToken, error) {
	limit := s.cfg.DemoDailyQuota
	principal := "demo:" + clientKey
	if actor != nil {
		limit = s.cfg.AuthDailyQuota
		principal = actor.Kind + ":" + actor.UserID
	}

	if limit > 0 {
		used, err := s.quota.Count(ctx, quotaKindToken, principal)
		switch {
		case err != nil:
			// Quota accounting must not take the feature down.
			s.logger.Warn("quota counter unavailable", zap.Error(err))
		case used >= int64(limit):
			// Already exhausted: reject on the read path, no further debit.
			return nil, s.rateLimited(actor, limit)
		default:
			count, err := s.quota.Incr(ctx, quotaKindToken, principal)
			if err != nil {
				s.logger.Warn("quota counter unavailable", zap.Error(err))
			} else if count > int64(limit) {
				return nil, s.rateLimited(actor, limit)
			}
		}
	}

	var cached cachedToken
	if err := s.cache.Get(ctx, tokenCacheKey, &cached); err == nil {
		if remaining := time.Until(cached.ExpiresAt); remaining > tokenSafetyMargin {
			return &dto.SpeechToken{Token: cached.Token, Region: s.provider.Region(), ExpiresIn: int64(remaining.Seconds())}, nil
		}
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("token cache read failed", zap.Error(err))
	}

	value, err, _ := s.group.Do(principal, func() (interface{}, error) {
		token, ttl, err := s.provider.IssueToken(ctx)
		if err != nil {
			return nil, err
		}
		fresh := cachedToken{Token: token, ExpiresAt: time.Now().Add(ttl)}
		cacheTTL := ttl - tokenSafetyMargin
		if cacheTTL > 0 {
			if err := s.cache.Set(ctx, tokenCacheKey, fresh, cacheTTL); err != nil {
				s.logger.Warn("token cache write failed", zap.Error(err))
			}
		}
		return fresh, nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	fresh := value.(cachedToken)
	return &dto.SpeechToken{
		Token:     fresh.Token,
		Region:    s.provider.Region(),
		ExpiresIn: int64(time.Until(fresh.ExpiresAt).Seconds()),
	}, nil
}

func (s *SpeechService) rateLimited(actor *models.JWTClaims, limit int) error {
	suggestion := "sign in for a higher daily limit"
	if actor != nil {
		suggestion = "try again after the daily reset"
	}
	return appErrors.RateLimited(limit, repository.NextReset(time.Now()), suggestion)
}

// UploadAnalysis persists one client-run assessment. The client-chosen
// analysis id makes the operation idempotent: a retried upload returns
// Duplicate without writing anything. Teacher calls are previews and are
// never persisted. A score blob that fails to parse still stores the
// recording so the item can be re-assessed later.
func (s *SpeechService) UploadAnalysis(ctx context.Context, actor *models.JWTClaims, req dto.UploadAnalysisRequest) (*dto.UploadAnalysisResponse, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}
	if int64(len(req.Audio)) > s.maxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("audio exceeds %d bytes", s.maxBytes))
	}

	result, parseErr := speech.ParseAssessment(req.AnalysisJSON)
	if parseErr != nil {
		s.logger.Warn("unparseable assessment blob",
			zap.String("analysis_id", req.AnalysisID), zap.Error(parseErr))
	}

	if actor.IsTeacher() {
		// Teachers trying out content see their result but leave no trace.
		return &dto.UploadAnalysisResponse{AnalysisID: req.AnalysisID, Persisted: false}, nil
	}

	attempt := &models.AssessmentAttempt{
		AnalysisID:    req.AnalysisID,
		LatencyMs:     req.LatencyMs,
		RawAssessment: req.AnalysisJSON,
		CreatedAt:     time.Now().UTC(),
	}

	var progress *repository.ProgressScoreUpdate
	recordingName := ""
	if req.ProgressID != "" {
		if _, err := s.attempts.FindProgress(ctx, req.ProgressID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "progress item not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress item")
		}
		attempt.ProgressID = &req.ProgressID

		progress = &repository.ProgressScoreUpdate{ProgressID: req.ProgressID, Raw: req.AnalysisJSON}
		if len(req.Audio) > 0 {
			recordingName = recordingPath(req.ProgressID, req.AnalysisID, req.AudioName)
			progress.RecordingURL = recordingName
		}
		if parseErr == nil {
			progress.Scores = &result.Scores
			if result.RecognizedText != "" {
				progress.Transcription = &result.RecognizedText
			}
		}
	}

	ledger := repository.LedgerInfo{Reason: "speech_assessment"}
	if actor.IsStudent() {
		id := actor.UserID
		ledger.StudentID = &id
	}

	persisted, err := s.attempts.SaveUpload(ctx, attempt, progress, ledger)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist upload")
	}
	if !persisted {
		return &dto.UploadAnalysisResponse{AnalysisID: req.AnalysisID, Duplicate: true}, nil
	}

	if recordingName != "" {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    JobTypeRecordingWrite,
			Payload: RecordingWritePayload{Filename: recordingName, Data: req.Audio},
		}
		if err := s.blobs.Enqueue(job); err != nil {
			// The row already references the path; the writer will catch up
			// on the next upload for this item.
			s.logger.Error("failed to enqueue recording write",
				zap.String("analysis_id", req.AnalysisID), zap.Error(err))
		}
	}

	return &dto.UploadAnalysisResponse{AnalysisID: req.AnalysisID, Persisted: true}, nil
}

// SignRecordingURL issues a time-boxed download token for a progress
// item's stored recording.
func (s *SpeechService) SignRecordingURL(ctx context.Context, progressID string) (string, time.Time, error) {
	row, err := s.attempts.FindProgress(ctx, progressID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "progress item not found")
		}
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress item")
	}
	if row.RecordingURL == nil || *row.RecordingURL == "" {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "no recording for this item")
	}

	token, expiresAt, err := s.signer.Generate(progressID, *row.RecordingURL)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign recording url")
	}
	return token, expiresAt, nil
}

// OpenRecording validates a download token and opens the referenced blob.
func (s *SpeechService) OpenRecording(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "recording not found")
	}
	return file, nil
}

// recordingPath builds the stored blob name for an upload. The extension
// follows the uploaded filename, defaulting to webm.
func recordingPath(progressID, analysisID, audioName string) string {
	ext := path.Ext(audioName)
	if ext == "" {
		ext = ".webm"
	}
	return fmt.Sprintf("%s/%s%s", progressID, analysisID, ext)
}
