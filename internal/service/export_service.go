package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/duotopia/duotopia-api/internal/authz"
	"github.com/duotopia/duotopia-api/internal/models"
	"github.com/duotopia/duotopia-api/internal/repository"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
	"github.com/duotopia/duotopia-api/pkg/export"
)

// Grade-sheet export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes grade-sheet export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       string
	ExpiresAt    time.Time
}

// ExportService renders an assignment's grade sheet to CSV or PDF and
// serves it through time-boxed signed download URLs.
type ExportService struct {
	repo    gradingRepository
	engine  permissionChecker
	storage exportStorage
	signer  urlSigner
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(repo gradingRepository, engine permissionChecker, storage exportStorage, signer urlSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		repo:    repo,
		engine:  engine,
		storage: storage,
		signer:  signer,
		csv:     csv,
		pdf:     pdf,
		logger:  logger,
		cfg:     cfg,
	}
}

var gradeSheetHeaders = []string{
	"student_name", "total_score", "completed_items", "total_items",
	"avg_accuracy", "avg_fluency", "avg_pronunciation", "avg_completeness", "feedback",
}

// GenerateGradeSheet renders the assignment's per-student aggregates from
// stored scores. No provider calls happen here.
func (s *ExportService) GenerateGradeSheet(ctx context.Context, actor *models.JWTClaims, assignmentID, format string) (*ExportResult, error) {
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

	dataset, err := s.buildDataset(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, assignment.Title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render grade sheet")
	}

	filename := fmt.Sprintf("%s/grade-sheet-%d.%s", assignmentID, time.Now().UTC().Unix(), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grade sheet")
	}

	token, expiresAt, err := s.signer.Generate(assignmentID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// Open validates a download token and opens the stored file.
func (s *ExportService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	return file, nil
}

// Cleanup removes rendered files older than ttl (configured TTL when <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) authorize(ctx context.Context, actor *models.JWTClaims, assignment *models.Assignment) error {
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
	if schoolID == "" || !s.engine.Check(actor.UserID, authz.ResourceAssignment, authz.ActionRead, authz.SchoolDomain(schoolID)) {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return nil
}

func (s *ExportService) buildDataset(ctx context.Context, assignmentID string) (export.Dataset, error) {
	studentCopies, err := s.repo.ListStudentAssignments(ctx, assignmentID)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student assignments")
	}

	rows := make([]map[string]string, 0, len(studentCopies))
	for i := range studentCopies {
		sa := &studentCopies[i]
		items, err := s.repo.ListItemProgress(ctx, sa.ID)
		if err != nil {
			return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list item progress")
		}
		result := aggregateStudent(sa, items, make([]*repository.ItemScoreUpdate, len(items)))
		rows = append(rows, map[string]string{
			"student_name":      result.StudentName,
			"total_score":       strconv.FormatFloat(result.TotalScore, 'f', 2, 64),
			"completed_items":   strconv.Itoa(result.CompletedItems),
			"total_items":       strconv.Itoa(result.TotalItems),
			"avg_accuracy":      strconv.FormatFloat(result.AvgAccuracy, 'f', 1, 64),
			"avg_fluency":       strconv.FormatFloat(result.AvgFluency, 'f', 1, 64),
			"avg_pronunciation": strconv.FormatFloat(result.AvgPronunciation, 'f', 1, 64),
			"avg_completeness":  strconv.FormatFloat(result.AvgCompleteness, 'f', 1, 64),
			"feedback":          result.Feedback,
		})
	}

	return export.Dataset{Headers: gradeSheetHeaders, Rows: rows}, nil
}
