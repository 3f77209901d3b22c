package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotopia/duotopia-api/internal/models"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
	"github.com/duotopia/duotopia-api/pkg/storage"
)

func scoredItem(id string, acc, flu, pron, comp float64) models.StudentItemProgress {
	return models.StudentItemProgress{
		ID:                 id,
		RecordingURL:       strPtr("audio.webm"),
		AccuracyScore:      f64Ptr(acc),
		FluencyScore:       f64Ptr(flu),
		PronunciationScore: f64Ptr(pron),
		CompletenessScore:  f64Ptr(comp),
		LastAssessmentAt:   timePtr(time.Now()),
	}
}

func newExportFixture(t *testing.T, repo *fakeGradingRepo) (*ExportService, *storage.LocalStorage, *storage.SignedURLSigner) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	svc := NewExportService(repo, denyAll{}, files, signer, ExportConfig{}, nil, nil, nil)
	return svc, files, signer
}

func TestGenerateGradeSheetCSV(t *testing.T) {
	repo := &fakeGradingRepo{
		assignment: &models.Assignment{ID: "a1", TeacherID: "t1", Title: "朗讀練習一"},
		students:   []models.StudentAssignment{{ID: "sa1", StudentID: "stu1", StudentName: "Amy"}},
		items: map[string][]models.StudentItemProgress{
			"sa1": {
				scoredItem("p1", 85, 90, 88, 92),
				{ID: "p2", ReferenceText: "second sentence"},
				{ID: "p3", ReferenceText: "third sentence"},
			},
		},
	}
	svc, files, signer := newExportFixture(t, repo)

	result, err := svc.GenerateGradeSheet(context.Background(), teacherClaims("t1"), "a1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/"), result.URL)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	// The download token resolves back to the stored file.
	_, relPath, _, err := signer.Parse(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, result.RelativePath, relPath)

	file, err := files.Open(relPath)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, gradeSheetHeaders, records[0])

	row := records[1]
	assert.Equal(t, "Amy", row[0])
	assert.Equal(t, "88.75", row[1])
	assert.Equal(t, "1", row[2])
	assert.Equal(t, "3", row[3])
	assert.Equal(t, "85.0", row[4])
	assert.Equal(t, "90.0", row[5])
	assert.Equal(t, "88.0", row[6])
	assert.Equal(t, "92.0", row[7])
	assert.True(t, strings.HasPrefix(row[8], "完成了 1/3 題"), row[8])
}

func TestGenerateGradeSheetPDF(t *testing.T) {
	repo := &fakeGradingRepo{
		assignment: &models.Assignment{ID: "a1", TeacherID: "t1", Title: "朗讀練習一"},
		students:   []models.StudentAssignment{{ID: "sa1", StudentID: "stu1", StudentName: "Amy"}},
		items: map[string][]models.StudentItemProgress{
			"sa1": {scoredItem("p1", 80, 80, 80, 80)},
		},
	}
	svc, files, _ := newExportFixture(t, repo)

	result, err := svc.GenerateGradeSheet(context.Background(), teacherClaims("t1"), "a1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, ExportFormatPDF, result.Format)

	file, err := files.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()

	header := make([]byte, 5)
	_, err = file.Read(header)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(header, []byte("%PDF-")))
}

func TestGenerateGradeSheetUnsupportedFormat(t *testing.T) {
	repo := &fakeGradingRepo{assignment: &models.Assignment{ID: "a1", TeacherID: "t1"}}
	svc, _, _ := newExportFixture(t, repo)

	_, err := svc.GenerateGradeSheet(context.Background(), teacherClaims("t1"), "a1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGenerateGradeSheetAuthorization(t *testing.T) {
	repo := &fakeGradingRepo{
		assignment: &models.Assignment{ID: "a1", TeacherID: "t1"},
		school:     "sch1",
	}
	svc, _, _ := newExportFixture(t, repo)

	_, err := svc.GenerateGradeSheet(context.Background(), teacherClaims("t2"), "a1", ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.GenerateGradeSheet(context.Background(),
		&models.JWTClaims{UserID: "stu1", Kind: models.PrincipalStudent}, "a1", ExportFormatCSV)
	require.Error(t, err)

	// A read grant on the owning school is enough.
	files, ferr := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, ferr)
	granted := NewExportService(repo, allowAll{}, files,
		storage.NewSignedURLSigner("test-secret", time.Minute), ExportConfig{}, nil, nil, nil)
	_, err = granted.GenerateGradeSheet(context.Background(), teacherClaims("t2"), "a1", ExportFormatCSV)
	require.NoError(t, err)
}

func TestOpenRejectsInvalidToken(t *testing.T) {
	svc, _, _ := newExportFixture(t, &fakeGradingRepo{})

	_, err := svc.Open("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestOpenMissingFileIsNotFound(t *testing.T) {
	svc, _, signer := newExportFixture(t, &fakeGradingRepo{})

	token, _, err := signer.Generate("a1", "a1/grade-sheet-1.csv")
	require.NoError(t, err)

	_, err = svc.Open(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCleanupRemovesExpiredExports(t *testing.T) {
	repo := &fakeGradingRepo{assignment: &models.Assignment{ID: "a1", TeacherID: "t1"}}
	svc, files, _ := newExportFixture(t, repo)

	result, err := svc.GenerateGradeSheet(context.Background(), teacherClaims("t1"), "a1", ExportFormatCSV)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	removed, err := svc.Cleanup(time.Nanosecond)
	require.NoError(t, err)
	assert.Contains(t, removed, result.RelativePath)

	_, err = files.Open(result.RelativePath)
	require.Error(t, err)
}
