package dto

// Grading result statuses.
const (
	GradeStatusOK    = "ok"
	GradeStatusError = "error"
)

// StudentResult is one student's aggregate from a batch-grading run.
// completed_items counts items with audio; missing_items counts items
// without scores — after a provider failure the two differ.
type StudentResult struct {
	StudentID        string  `json:"student_id"`
	StudentName      string  `json:"student_name"`
	TotalScore       float64 `json:"total_score"`
	MissingItems     int     `json:"missing_items"`
	TotalItems       int     `json:"total_items"`
	CompletedItems   int     `json:"completed_items"`
	AvgPronunciation float64 `json:"avg_pronunciation"`
	AvgAccuracy      float64 `json:"avg_accuracy"`
	AvgFluency       float64 `json:"avg_fluency"`
	AvgCompleteness  float64 `json:"avg_completeness"`
	Feedback         string  `json:"feedback"`
	Status           string  `json:"status"`
}
