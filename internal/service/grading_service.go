package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/duotopia/duotopia-api/internal/authz"
	"github.com/duotopia/duotopia-api/internal/dto"
	"github.com/duotopia/duotopia-api/internal/models"
	"github.com/duotopia/duotopia-api/internal/repository"
	"github.com/duotopia/duotopia-api/pkg/config"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
)

type gradingRepository interface {
	FindAssignment(ctx context.Context, id string) (*models.Assignment, error)
	SchoolOfAssignment(ctx context.Context, assignmentID string) (string, error)
	ListStudentAssignments(ctx context.Context, assignmentID string) ([]models.StudentAssignment, error)
	ListItemProgress(ctx context.Context, studentAssignmentID string) ([]models.StudentItemProgress, error)
	PersistStudentGrading(ctx context.Context, studentAssignmentID, teacherID, feedback string, updates []repository.ItemScoreUpdate) error
}

type assessor interface {
	Assess(ctx context.Context, referenceText string, audio []byte) (*models.AssessmentResult, error)
}

type permissionChecker interface {
	Check(principal, resource, action, domain string) bool
}

// GradingService runs batch auto-grading: it discovers every item with
// audio but no score, assesses them server-side with bounded concurrency,
// and commits each student's results in a single transaction.
type GradingService struct {
	repo     gradingRepository
	provider assessor
	files    recordingOpener
	engine   permissionChecker
	logger   *zap.Logger

	workers     int
	itemTimeout time.Duration
}

// NewGradingService constructs a GradingService.
func NewGradingService(repo gradingRepository, provider assessor, files recordingOpener, engine permissionChecker, logger *zap.Logger, cfg config.GradingConfig) *GradingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	timeout := cfg.ItemTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GradingService{
		repo:        repo,
		provider:    provider,
		files:       files,
		engine:      engine,
		logger:      logger,
		workers:     workers,
		itemTimeout: timeout,
	}
}

// BatchGrade grades every student copy of an assignment. A student whose
// persistence fails gets a status=error row; everything else proceeds.
// Individual item failures never abort the batch.
func (s *GradingService) BatchGrade(ctx context.Context, actor *models.JWTClaims, assignmentID string) ([]dto.StudentResult, error) {
	assignment, err := s.repo.FindAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if err := s.authorize(ctx, actor, assignment); err != nil {
		return nil, err
	}

	studentCopies, err := s.repo.ListStudentAssignments(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student assignments")
	}

	results := make([]dto.StudentResult, 0, len(studentCopies))
	for i := range studentCopies {
		sa := &studentCopies[i]
		result, err := s.gradeStudent(ctx, actor.UserID, sa)
		if err != nil {
			s.logger.Error("student grading failed",
				zap.String("assignment_id", assignmentID),
				zap.String("student_id", sa.StudentID),
				zap.Error(err))
			row := dto.StudentResult{
				StudentID:   sa.StudentID,
				StudentName: sa.StudentName,
				Status:      dto.GradeStatusError,
			}
			if result != nil {
				row.TotalItems = result.TotalItems
				row.CompletedItems = result.CompletedItems
				row.MissingItems = result.MissingItems
			}
			results = append(results, row)
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// authorize allows the owning teacher, or any principal the policy grants
// assignment updates in the classroom's school (or its parent org).
func (s *GradingService) authorize(ctx context.Context, actor *models.JWTClaims, assignment *models.Assignment) error {
	if actor == nil || !actor.IsTeacher() {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	if assignment.TeacherID == actor.UserID {
		return nil
	}
	schoolID, err := s.repo.SchoolOfAssignment(ctx, assignment.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve assignment school")
	}
	if schoolID == "" || !s.engine.Check(actor.UserID, authz.ResourceAssignment, authz.ActionUpdate, authz.SchoolDomain(schoolID)) {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return nil
}

func (s *GradingService) gradeStudent(ctx context.Context, teacherID string, sa *models.StudentAssignment) (*dto.StudentResult, error) {
	items, err := s.repo.ListItemProgress(ctx, sa.ID)
	if err != nil {
		return nil, err
	}

	// Provider calls run concurrently; persistence commits once, after
	// every call has returned, so readers see all-or-nothing per student.
	graded := make([]*repository.ItemScoreUpdate, len(items))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range items {
		item := &items[i]
		if !item.EligibleForAssessment() {
			continue
		}
		idx := i
		g.Go(func() error {
			update := s.assessItem(gctx, item)
			if update != nil {
				mu.Lock()
				graded[idx] = update
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // item failures are tolerated, never propagated

	updates := make([]repository.ItemScoreUpdate, 0, len(items))
	for _, u := range graded {
		if u != nil {
			updates = append(updates, *u)
		}
	}

	// On persist failure the aggregate is still returned so the caller's
	// error row reports how many items remain unscored.
	result := aggregateStudent(sa, items, graded)
	if err := s.repo.PersistStudentGrading(ctx, sa.ID, teacherID, result.Feedback, updates); err != nil {
		return result, err
	}
	return result, nil
}

// assessItem runs one provider call under the per-item timeout. Any
// failure leaves the item unscored and is only logged.
func (s *GradingService) assessItem(ctx context.Context, item *models.StudentItemProgress) *repository.ItemScoreUpdate {
	tctx, cancel := context.WithTimeout(ctx, s.itemTimeout)
	defer cancel()

	audio, err := s.readRecording(*item.RecordingURL)
	if err != nil {
		s.logger.Warn("recording unreadable", zap.String("progress_id", item.ID), zap.Error(err))
		return nil
	}

	start := time.Now()
	assessed, err := s.provider.Assess(tctx, item.ReferenceText, audio)
	if err != nil {
		s.logger.Warn("item assessment failed", zap.String("progress_id", item.ID), zap.Error(err))
		return nil
	}

	return &repository.ItemScoreUpdate{
		ProgressID:    item.ID,
		AnalysisID:    uuid.NewString(),
		Scores:        assessed.Scores,
		Transcription: assessed.RecognizedText,
		Raw:           assessed.Raw,
		Feedback:      itemFeedback(assessed.Scores),
		LatencyMs:     time.Since(start).Milliseconds(),
		AssessedAt:    time.Now().UTC(),
	}
}

func (s *GradingService) readRecording(name string) ([]byte, error) {
	file, err := s.files.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close() //nolint:errcheck
	return io.ReadAll(file)
}

// aggregateStudent folds prior scores and this run's results into the
// student's reported row. Completion counts audio; missing counts absent
// scores; after a provider failure the two legitimately differ.
func aggregateStudent(sa *models.StudentAssignment, items []models.StudentItemProgress, graded []*repository.ItemScoreUpdate) *dto.StudentResult {
	totalItems := len(items)
	completed := 0
	scored := 0
	var sums dimensionMeans

	for i := range items {
		item := &items[i]
		if item.RecordingURL != nil {
			completed++
		}

		var scores *models.AssessmentScores
		switch {
		case graded[i] != nil:
			scores = &graded[i].Scores
		case item.HasScores():
			scores = &models.AssessmentScores{
				Accuracy:      *item.AccuracyScore,
				Fluency:       *item.FluencyScore,
				Pronunciation: *item.PronunciationScore,
				Completeness:  *item.CompletenessScore,
			}
		}
		if scores == nil {
			continue
		}
		scored++
		sums.Accuracy += scores.Accuracy
		sums.Fluency += scores.Fluency
		sums.Pronunciation += scores.Pronunciation
		sums.Completeness += scores.Completeness
	}

	var means dimensionMeans
	if scored > 0 {
		n := float64(scored)
		means = dimensionMeans{
			Accuracy:      sums.Accuracy / n,
			Fluency:       sums.Fluency / n,
			Pronunciation: sums.Pronunciation / n,
			Completeness:  sums.Completeness / n,
		}
	}
	totalScore := round2((means.Accuracy + means.Fluency + means.Pronunciation + means.Completeness) / 4)

	return &dto.StudentResult{
		StudentID:        sa.StudentID,
		StudentName:      sa.StudentName,
		TotalScore:       totalScore,
		MissingItems:     totalItems - scored,
		TotalItems:       totalItems,
		CompletedItems:   completed,
		AvgPronunciation: round1(means.Pronunciation),
		AvgAccuracy:      round1(means.Accuracy),
		AvgFluency:       round1(means.Fluency),
		AvgCompleteness:  round1(means.Completeness),
		Feedback:         assignmentFeedback(totalItems, completed, totalScore, means),
		Status:           dto.GradeStatusOK,
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
