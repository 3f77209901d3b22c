package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotopia/duotopia-api/internal/models"
)

func TestSchoolOfAssignment(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(cs.school_id, '') FROM assignments a")).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"school_id"}).AddRow("sch-1"))

	schoolID, err := repo.SchoolOfAssignment(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, "sch-1", schoolID)
}

func TestSchoolOfAssignmentUnlinkedClassroom(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(cs.school_id, '')")).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"school_id"}).AddRow(""))

	schoolID, err := repo.SchoolOfAssignment(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Empty(t, schoolID)
}

func TestListItemProgressJoinsReferenceText(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "student_assignment_id", "content_item_id", "recording_url", "transcription",
		"accuracy_score", "fluency_score", "pronunciation_score", "completeness_score",
		"raw_assessment", "item_feedback", "last_assessment_at", "reference_text",
	}).AddRow("p-1", "sa-1", "ci-1", sql.NullString{String: "sa-1/p-1.webm", Valid: true}, nil,
		nil, nil, nil, nil, nil, nil, nil, "the quick brown fox")

	mock.ExpectQuery(regexp.QuoteMeta("JOIN content_items ci ON ci.id = p.content_item_id")).
		WithArgs("sa-1").
		WillReturnRows(rows)

	items, err := repo.ListItemProgress(context.Background(), "sa-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "the quick brown fox", items[0].ReferenceText)
	assert.True(t, items[0].EligibleForAssessment())
	assert.False(t, items[0].HasScores())
}

func TestPersistStudentGradingCommitsAtomically(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	update := ItemScoreUpdate{
		ProgressID:    "p-1",
		AnalysisID:    "an-1",
		Scores:        models.AssessmentScores{Accuracy: 85, Fluency: 90, Pronunciation: 88, Completeness: 92},
		Transcription: "the quick brown fox",
		Raw:           []byte(`{}`),
		Feedback:      "準確度良好，流暢度優秀，發音良好，完整度優秀。",
		LatencyMs:     830,
		AssessedAt:    time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_item_progress SET")).
		WithArgs("p-1", 85.0, 90.0, 88.0, 92.0, update.Transcription, update.Raw, update.Feedback, update.AssessedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assessment_attempts")).
		WithArgs(sqlmock.AnyArg(), "p-1", "an-1", int64(830), update.Raw, update.AssessedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quota_ledger")).
		WithArgs(sqlmock.AnyArg(), "t-1", "an-1", update.AssessedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_assignments SET feedback = $2, status = $3")).
		WithArgs("sa-1", "完成了 1/1 題，整體表現良好，再多加練習即可更上一層樓。", models.AssignmentGraded, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.PersistStudentGrading(context.Background(), "sa-1", "t-1",
		"完成了 1/1 題，整體表現良好，再多加練習即可更上一層樓。", []ItemScoreUpdate{update})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistStudentGradingRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	update := ItemScoreUpdate{ProgressID: "p-1", AnalysisID: "an-1", AssessedAt: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_item_progress SET")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.PersistStudentGrading(context.Background(), "sa-1", "t-1", "feedback", []ItemScoreUpdate{update})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
