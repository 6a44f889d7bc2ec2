package dto

import "time"

// SubmissionReportItem is one line of a submission report.
type SubmissionReportItem struct {
	QuestionIndex int      `json:"question_index"`
	QuestionType  string   `json:"question_type"`
	MarksAwarded  *float64 `json:"marks_awarded"`
	MarksPossible int      `json:"marks_possible"`
	IsCorrect     *bool    `json:"is_correct"`
	PendingReview bool     `json:"pending_review"`
	Feedback      string   `json:"feedback"`
}

// SubmissionReport summarises a graded submission for learners and parents.
type SubmissionReport struct {
	SubmissionID    uint                   `json:"submission_id"`
	AssessmentID    uint                   `json:"assessment_id"`
	AssessmentTitle string                 `json:"assessment_title"`
	ChildID         uint                   `json:"child_id"`
	RetakeNumber    int                    `json:"retake_number"`
	Status          string                 `json:"status"`
	TotalMarks      int                    `json:"total_marks"`
	MarksObtained   int                    `json:"marks_obtained"`
	Percentage      float64                `json:"percentage"`
	CorrectCount    int                    `json:"correct_count"`
	PendingCount    int                    `json:"pending_count"`
	OverallComment  string                 `json:"overall_comment"`
	Items           []SubmissionReportItem `json:"items"`
	GradedAt        *time.Time             `json:"graded_at"`
	GeneratedAt     time.Time              `json:"generated_at"`
	CacheHit        bool                   `json:"cache_hit"`
}
