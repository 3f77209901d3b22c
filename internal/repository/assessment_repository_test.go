package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotopia/duotopia-api/internal/models"
)

func TestSaveUploadFirstAttemptPersistsEverything(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	progressID := "prog-1"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assessment_attempts")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_item_progress SET")).
		WithArgs(progressID, "prog-1/an-1.webm", "the quick brown fox",
			85.0, 90.0, 88.0, 92.0, []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quota_ledger")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transcription := "the quick brown fox"
	persisted, err := repo.SaveUpload(context.Background(),
		&models.AssessmentAttempt{AnalysisID: "an-1", ProgressID: &progressID},
		&ProgressScoreUpdate{
			ProgressID:    progressID,
			RecordingURL:  "prog-1/an-1.webm",
			Transcription: &transcription,
			Scores:        &models.AssessmentScores{Accuracy: 85, Fluency: 90, Pronunciation: 88, Completeness: 92},
			Raw:           []byte(`{}`),
		},
		LedgerInfo{})
	require.NoError(t, err)
	assert.True(t, persisted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUploadWithoutAudioKeepsStoredRecording(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	progressID := "prog-1"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assessment_attempts")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// An empty recording path must not clobber a previously stored one.
	mock.ExpectExec(regexp.QuoteMeta("recording_url = COALESCE(NULLIF($2, ''), recording_url)")).
		WithArgs(progressID, "", "fox",
			85.0, 90.0, 88.0, 92.0, []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quota_ledger")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transcription := "fox"
	persisted, err := repo.SaveUpload(context.Background(),
		&models.AssessmentAttempt{AnalysisID: "an-2", ProgressID: &progressID},
		&ProgressScoreUpdate{
			ProgressID:    progressID,
			Transcription: &transcription,
			Scores:        &models.AssessmentScores{Accuracy: 85, Fluency: 90, Pronunciation: 88, Completeness: 92},
			Raw:           []byte(`{}`),
		},
		LedgerInfo{})
	require.NoError(t, err)
	assert.True(t, persisted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUploadDuplicateAnalysisIDIsNoOp(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assessment_attempts")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	persisted, err := repo.SaveUpload(context.Background(),
		&models.AssessmentAttempt{AnalysisID: "an-1"}, nil, LedgerInfo{})
	require.NoError(t, err)
	assert.False(t, persisted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUploadWithoutScoresKeepsTimestampNull(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assessment_attempts")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Unparseable blob path: only recording_url and raw_assessment change.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_item_progress SET recording_url = COALESCE(NULLIF($2, ''), recording_url), raw_assessment = $3 WHERE id = $1")).
		WithArgs("prog-1", "prog-1/an-1.webm", []byte(`{"NBest":[]}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quota_ledger")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	persisted, err := repo.SaveUpload(context.Background(),
		&models.AssessmentAttempt{AnalysisID: "an-1"},
		&ProgressScoreUpdate{ProgressID: "prog-1", RecordingURL: "prog-1/an-1.webm", Raw: []byte(`{"NBest":[]}`)},
		LedgerInfo{})
	require.NoError(t, err)
	assert.True(t, persisted)
	require.NoError(t, mock.ExpectationsWereMet())
}
