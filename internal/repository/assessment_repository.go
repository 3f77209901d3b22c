package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/duotopia/duotopia-api/internal/models"
)

// AssessmentRepository persists client-uploaded assessment attempts. The
// analysis_id uniqueness constraint makes SaveUpload idempotent: the second
// upload with the same id changes nothing.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs an AssessmentRepository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// ProgressScoreUpdate carries the optional StudentItemProgress mutation
// attached to an upload. Scores may be nil when the provider blob failed
// to parse; in that case only the recording and raw blob are stored and
// the assessment timestamp stays null.
type ProgressScoreUpdate struct {
	ProgressID    string
	RecordingURL  string
	Transcription *string
	Scores        *models.AssessmentScores
	Raw           []byte
}

// LedgerInfo identifies the debited principal.
type LedgerInfo struct {
	TeacherID *string
	StudentID *string
	Reason    string
}

// SaveUpload atomically persists the attempt row, the optional progress
// update, and the quota ledger debit. Returns false without side effects
// when an attempt with the same analysis id already exists.
func (r *AssessmentRepository) SaveUpload(ctx context.Context, attempt *models.AssessmentAttempt, progress *ProgressScoreUpdate, ledger LedgerInfo) (bool, error) {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin upload: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const attemptQuery = `INSERT INTO assessment_attempts (id, progress_id, analysis_id, latency_ms, raw_assessment, created_at)
		VALUES (:id, :progress_id, :analysis_id, :latency_ms, :raw_assessment, :created_at)
		ON CONFLICT (analysis_id) DO NOTHING`
	res, err := tx.NamedExecContext(ctx, attemptQuery, attempt)
	if err != nil {
		return false, fmt.Errorf("insert attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Retried upload: the first attempt already committed.
		return false, tx.Commit()
	}

	if progress != nil {
		// NULLIF keeps the stored recording when the upload carried no
		// audio blob: scores may update without re-recording.
		if progress.Scores != nil {
			const query = `UPDATE student_item_progress SET
					recording_url = COALESCE(NULLIF($2, ''), recording_url), transcription = $3,
					accuracy_score = $4, fluency_score = $5, pronunciation_score = $6, completeness_score = $7,
					raw_assessment = $8, last_assessment_at = $9
				WHERE id = $1`
			if _, err := tx.ExecContext(ctx, query,
				progress.ProgressID, progress.RecordingURL, progress.Transcription,
				progress.Scores.Accuracy, progress.Scores.Fluency, progress.Scores.Pronunciation, progress.Scores.Completeness,
				progress.Raw, attempt.CreatedAt); err != nil {
				return false, fmt.Errorf("update progress scores: %w", err)
			}
		} else {
			// Unparseable score blob: keep the recording, leave scores and
			// the assessment timestamp null.
			const query = `UPDATE student_item_progress SET recording_url = COALESCE(NULLIF($2, ''), recording_url), raw_assessment = $3 WHERE id = $1`
			if _, err := tx.ExecContext(ctx, query, progress.ProgressID, progress.RecordingURL, progress.Raw); err != nil {
				return false, fmt.Errorf("update progress recording: %w", err)
			}
		}
	}

	reason := ledger.Reason
	if reason == "" {
		reason = "speech_assessment"
	}
	const ledgerQuery = `INSERT INTO quota_ledger (id, teacher_id, student_id, reason, analysis_id, delta, created_at)
		VALUES ($1, $2, $3, $4, $5, -1, $6) ON CONFLICT (analysis_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, ledgerQuery, uuid.NewString(), ledger.TeacherID, ledger.StudentID, reason, attempt.AnalysisID, attempt.CreatedAt); err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// FindProgress loads a StudentItemProgress row (without reference text).
func (r *AssessmentRepository) FindProgress(ctx context.Context, id string) (*models.StudentItemProgress, error) {
	const query = `SELECT p.id, p.student_assignment_id, p.content_item_id, p.recording_url, p.transcription,
			p.accuracy_score, p.fluency_score, p.pronunciation_score, p.completeness_score,
			p.raw_assessment, p.item_feedback, p.last_assessment_at, '' AS reference_text
		FROM student_item_progress p WHERE p.id = $1`
	var row models.StudentItemProgress
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return &row, nil
}
