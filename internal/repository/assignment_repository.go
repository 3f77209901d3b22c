package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/duotopia/duotopia-api/internal/models"
)

// AssignmentRepository reads the assignment graph and persists grading
// results.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindAssignment fetches an assignment.
func (r *AssignmentRepository) FindAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, teacher_id, classroom_id, title, created_at FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// SchoolOfAssignment resolves the school owning the assignment's
// classroom, or "" when the classroom is unlinked.
func (r *AssignmentRepository) SchoolOfAssignment(ctx context.Context, assignmentID string) (string, error) {
	const query = `SELECT COALESCE(cs.school_id, '') FROM assignments a
		LEFT JOIN classroom_schools cs ON cs.classroom_id = a.classroom_id
		WHERE a.id = $1`
	var schoolID string
	if err := r.db.GetContext(ctx, &schoolID, query, assignmentID); err != nil {
		return "", err
	}
	return schoolID, nil
}

// ListStudentAssignments returns every student's copy of the assignment
// with the student name attached.
func (r *AssignmentRepository) ListStudentAssignments(ctx context.Context, assignmentID string) ([]models.StudentAssignment, error) {
	const query = `SELECT sa.id, sa.student_id, sa.assignment_id, sa.status, sa.feedback, sa.submitted_at, sa.created_at, sa.updated_at, s.name AS student_name
		FROM student_assignments sa
		JOIN students s ON s.id = sa.student_id
		WHERE sa.assignment_id = $1
		ORDER BY s.name`
	var rows []models.StudentAssignment
	if err := r.db.SelectContext(ctx, &rows, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list student assignments: %w", err)
	}
	return rows, nil
}

// ListItemProgress returns a student assignment's item rows joined to the
// content items for the reference text, in item order.
func (r *AssignmentRepository) ListItemProgress(ctx context.Context, studentAssignmentID string) ([]models.StudentItemProgress, error) {
	const query = `SELECT p.id, p.student_assignment_id, p.content_item_id, p.recording_url, p.transcription,
			p.accuracy_score, p.fluency_score, p.pronunciation_score, p.completeness_score,
			p.raw_assessment, p.item_feedback, p.last_assessment_at, ci.text AS reference_text
		FROM student_item_progress p
		JOIN content_items ci ON ci.id = p.content_item_id
		WHERE p.student_assignment_id = $1
		ORDER BY ci.position`
	var rows []models.StudentItemProgress
	if err := r.db.SelectContext(ctx, &rows, query, studentAssignmentID); err != nil {
		return nil, fmt.Errorf("list item progress: %w", err)
	}
	return rows, nil
}

// ItemScoreUpdate carries one graded item's persistence payload.
type ItemScoreUpdate struct {
	ProgressID    string
	AnalysisID    string
	Scores        models.AssessmentScores
	Transcription string
	Raw           []byte
	Feedback      string
	LatencyMs     int64
	AssessedAt    time.Time
}

// PersistStudentGrading commits one student's batch-grading output
// atomically: every item update, the matching assessment attempt and
// ledger rows, and the assignment-level feedback.
func (r *AssignmentRepository) PersistStudentGrading(ctx context.Context, studentAssignmentID, teacherID, feedback string, updates []ItemScoreUpdate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grading commit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const itemQuery = `UPDATE student_item_progress SET
			accuracy_score = $2, fluency_score = $3, pronunciation_score = $4, completeness_score = $5,
			transcription = $6, raw_assessment = $7, item_feedback = $8, last_assessment_at = $9
		WHERE id = $1`
	const attemptQuery = `INSERT INTO assessment_attempts (id, progress_id, analysis_id, latency_ms, raw_assessment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (analysis_id) DO NOTHING`
	const ledgerQuery = `INSERT INTO quota_ledger (id, teacher_id, student_id, reason, analysis_id, delta, created_at)
		VALUES ($1, $2, NULL, 'batch_grade', $3, -1, $4) ON CONFLICT (analysis_id) DO NOTHING`

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, itemQuery,
			u.ProgressID, u.Scores.Accuracy, u.Scores.Fluency, u.Scores.Pronunciation, u.Scores.Completeness,
			u.Transcription, u.Raw, u.Feedback, u.AssessedAt); err != nil {
			return fmt.Errorf("update item scores: %w", err)
		}
		if _, err := tx.ExecContext(ctx, attemptQuery,
			uuid.NewString(), u.ProgressID, u.AnalysisID, u.LatencyMs, u.Raw, u.AssessedAt); err != nil {
			return fmt.Errorf("insert assessment attempt: %w", err)
		}
		if _, err := tx.ExecContext(ctx, ledgerQuery, uuid.NewString(), teacherID, u.AnalysisID, u.AssessedAt); err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}

	const feedbackQuery = `UPDATE student_assignments SET feedback = $2, status = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, feedbackQuery, studentAssignmentID, feedback, models.AssignmentGraded, time.Now().UTC()); err != nil {
		return fmt.Errorf("update assignment feedback: %w", err)
	}

	return tx.Commit()
}
