package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// SubmissionStatusPending indicates at least one item awaits a human grader.
	SubmissionStatusPending = "pending"
	// SubmissionStatusGraded indicates every item is scored.
	SubmissionStatusGraded = "graded"
)

// Submission is one child's completed answer set for one assessment attempt.
type Submission struct {
	ID             uint                     `gorm:"primaryKey" json:"id"`
	AssessmentID   uint                     `gorm:"not null;uniqueIndex:idx_submission_attempt,priority:1" json:"assessment_id"`
	ChildID        uint                     `gorm:"not null;uniqueIndex:idx_submission_attempt,priority:2;index" json:"child_id"`
	RetakeNumber   int                      `gorm:"not null;uniqueIndex:idx_submission_attempt,priority:3" json:"retake_number"`
	UserID         uint                     `gorm:"not null;index" json:"user_id"`
	TotalMarks     int                      `gorm:"not null" json:"total_marks"`
	MarksObtained  int                      `gorm:"not null" json:"marks_obtained"`
	Status         string                   `gorm:"size:32;not null;index" json:"status"`
	OverallComment string                   `gorm:"type:text" json:"overall_comment"`
	StartedAt      *time.Time               `json:"started_at"`
	FinishedAt     *time.Time               `json:"finished_at"`
	GradedAt       *time.Time               `json:"graded_at"`
	GradedBy       *uint                    `json:"graded_by"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
	Assessment     Assessment               `gorm:"foreignKey:AssessmentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Items          []SubmissionItem         `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"items"`
	History        []SubmissionGradeHistory `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"history"`
}

// IsGraded reports whether the submission has a final aggregate.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}

// SubmissionItem is one graded question instance inside a submission. The
// question definition is copied at submit time so later edits to the bank do
// not change historical grades.
type SubmissionItem struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	SubmissionID     uint              `gorm:"not null;index" json:"submission_id"`
	QuestionID       *uint             `json:"question_id"`
	QuestionIndex    int               `gorm:"not null" json:"question_index"`
	QuestionType     string            `gorm:"size:32;not null" json:"question_type"`
	QuestionData     datatypes.JSON    `gorm:"type:json" json:"question_data"`
	Answer           datatypes.JSON    `gorm:"type:json" json:"answer"`
	IsCorrect        *bool             `json:"is_correct"`
	MarksAwarded     *float64          `json:"marks_awarded"`
	MarksPossible    int               `gorm:"not null" json:"marks_possible"`
	GradingMetadata  datatypes.JSONMap `gorm:"type:json" json:"grading_metadata"`
	DetailedFeedback string            `gorm:"type:text" json:"detailed_feedback"`
	TimeSpent        int               `json:"time_spent"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Submission       *Submission       `gorm:"foreignKey:SubmissionID" json:"-"`
}

// RequiresReview reports the requires_human_review metadata flag.
func (i SubmissionItem) RequiresReview() bool {
	return metadataBool(i.GradingMetadata, "requires_human_review")
}

// ManuallyGraded reports whether a human has overridden the item.
func (i SubmissionItem) ManuallyGraded() bool {
	return metadataBool(i.GradingMetadata, "manually_graded")
}

func metadataBool(metadata datatypes.JSONMap, key string) bool {
	if metadata == nil {
		return false
	}
	value, ok := metadata[key].(bool)
	return ok && value
}

// SubmissionGradeHistory records every manual override of an item.
type SubmissionGradeHistory struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SubmissionID     uint      `gorm:"not null;index" json:"submission_id"`
	SubmissionItemID uint      `gorm:"not null;index" json:"submission_item_id"`
	PreviousMarks    *float64  `json:"previous_marks"`
	Marks            float64   `gorm:"not null" json:"marks"`
	Feedback         string    `gorm:"type:text" json:"feedback"`
	FlagID           *uint     `json:"flag_id"`
	GradedBy         uint      `gorm:"not null" json:"graded_by"`
	GradedAt         time.Time `gorm:"not null" json:"graded_at"`
}
