package models

import "time"

// StudentAssignment statuses.
const (
	AssignmentNotStarted = "NOT_STARTED"
	AssignmentInProgress = "IN_PROGRESS"
	AssignmentSubmitted  = "SUBMITTED"
	AssignmentGraded     = "GRADED"
	AssignmentReturned   = "RETURNED"
)

// Classroom groups students under an owning teacher.
type Classroom struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Content is an ordered collection of practice items inside a lesson.
type Content struct {
	ID       string `db:"id" json:"id"`
	LessonID string `db:"lesson_id" json:"lesson_id"`
	Type     string `db:"type" json:"type"`
	Position int    `db:"position" json:"position"`
}

// ContentItem is a single practice sentence. Items are immutable once a
// StudentItemProgress references them; edits create new items.
type ContentItem struct {
	ID          string  `db:"id" json:"id"`
	ContentID   string  `db:"content_id" json:"content_id"`
	Position    int     `db:"position" json:"position"`
	Text        string  `db:"text" json:"text"`
	Translation *string `db:"translation" json:"translation,omitempty"`
	AudioURL    *string `db:"audio_url" json:"audio_url,omitempty"`
}

// Assignment ties ordered contents to a classroom.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	Title       string    `db:"title" json:"title"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// StudentAssignment is one student's copy of an assignment.
type StudentAssignment struct {
	ID           string     `db:"id" json:"id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	AssignmentID string     `db:"assignment_id" json:"assignment_id"`
	Status       string     `db:"status" json:"status"`
	Feedback     *string    `db:"feedback" json:"feedback,omitempty"`
	SubmittedAt  *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	StudentName string `db:"student_name" json:"student_name"`
}

// StudentContentProgress tracks per-content completion.
type StudentContentProgress struct {
	ID                  string `db:"id" json:"id"`
	StudentAssignmentID string `db:"student_assignment_id" json:"student_assignment_id"`
	ContentID           string `db:"content_id" json:"content_id"`
	Position            int    `db:"position" json:"position"`
	Status              string `db:"status" json:"status"`
}

// StudentItemProgress tracks one student's work on one content item. The
// four score dimensions are either all set (each in [0,100]) or all null,
// and are null whenever RecordingURL is null.
type StudentItemProgress struct {
	ID                  string     `db:"id" json:"id"`
	StudentAssignmentID string     `db:"student_assignment_id" json:"student_assignment_id"`
	ContentItemID       string     `db:"content_item_id" json:"content_item_id"`
	RecordingURL        *string    `db:"recording_url" json:"recording_url,omitempty"`
	Transcription       *string    `db:"transcription" json:"transcription,omitempty"`
	AccuracyScore       *float64   `db:"accuracy_score" json:"accuracy_score,omitempty"`
	FluencyScore        *float64   `db:"fluency_score" json:"fluency_score,omitempty"`
	PronunciationScore  *float64   `db:"pronunciation_score" json:"pronunciation_score,omitempty"`
	CompletenessScore   *float64   `db:"completeness_score" json:"completeness_score,omitempty"`
	RawAssessment       []byte     `db:"raw_assessment" json:"-"`
	ItemFeedback        *string    `db:"item_feedback" json:"item_feedback,omitempty"`
	LastAssessmentAt    *time.Time `db:"last_assessment_at" json:"last_assessment_at,omitempty"`

	ReferenceText string `db:"reference_text" json:"reference_text"`
}

// HasScores reports whether the item carries a full score set.
func (p *StudentItemProgress) HasScores() bool {
	return p.AccuracyScore != nil && p.FluencyScore != nil &&
		p.PronunciationScore != nil && p.CompletenessScore != nil
}

// EligibleForAssessment reports whether batch grading should assess the
// item: audio exists and no assessment has been recorded.
func (p *StudentItemProgress) EligibleForAssessment() bool {
	return p.RecordingURL != nil && p.LastAssessmentAt == nil
}
