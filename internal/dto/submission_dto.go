package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// SubmitAssessmentRequest is the single atomic submit call for an attempt.
// Answers and TimeSpent are keyed by the question's position.
type SubmitAssessmentRequest struct {
	ChildID   uint                    `json:"child_id" validate:"required,gt=0"`
	Answers   map[int]json.RawMessage `json:"answers"`
	TimeSpent map[int]int             `json:"time_spent" validate:"omitempty,dive,gte=0"`
	StartedAt *time.Time              `json:"started_at"`
}

// SubmissionItemResponse is one graded question inside a submission.
type SubmissionItemResponse struct {
	ID                  uint                   `json:"id"`
	QuestionID          *uint                  `json:"question_id"`
	QuestionIndex       int                    `json:"question_index"`
	QuestionType        string                 `json:"question_type"`
	Answer              json.RawMessage        `json:"answer"`
	IsCorrect           *bool                  `json:"is_correct"`
	MarksAwarded        *float64               `json:"marks_awarded"`
	MarksPossible       int                    `json:"marks_possible"`
	RequiresHumanReview bool                   `json:"requires_human_review"`
	PendingReview       bool                   `json:"pending_review"`
	Feedback            string                 `json:"feedback"`
	GradingMetadata     map[string]interface{} `json:"grading_metadata"`
	TimeSpent           int                    `json:"time_spent"`
}

// SubmissionGradeHistoryResponse serializes grading history entries.
type SubmissionGradeHistoryResponse struct {
	SubmissionItemID uint      `json:"submission_item_id"`
	PreviousMarks    *float64  `json:"previous_marks"`
	Marks            float64   `json:"marks"`
	Feedback         string    `json:"feedback"`
	FlagID           *uint     `json:"flag_id"`
	GradedBy         uint      `json:"graded_by"`
	GradedAt         time.Time `json:"graded_at"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID             uint                             `json:"id"`
	AssessmentID   uint                             `json:"assessment_id"`
	ChildID        uint                             `json:"child_id"`
	UserID         uint                             `json:"user_id"`
	RetakeNumber   int                              `json:"retake_number"`
	TotalMarks     int                              `json:"total_marks"`
	MarksObtained  int                              `json:"marks_obtained"`
	Status         string                           `json:"status"`
	OverallComment string                           `json:"overall_comment"`
	StartedAt      *time.Time                       `json:"started_at"`
	FinishedAt     *time.Time                       `json:"finished_at"`
	GradedAt       *time.Time                       `json:"graded_at"`
	GradedBy       *uint                            `json:"graded_by"`
	Items          []SubmissionItemResponse         `json:"items"`
	History        []SubmissionGradeHistoryResponse `json:"history"`
	CreatedAt      time.Time                        `json:"created_at"`
}

// NewSubmissionItemResponse converts an item model into a DTO.
func NewSubmissionItemResponse(model models.SubmissionItem) SubmissionItemResponse {
	requiresReview := model.RequiresReview()
	answer := json.RawMessage(model.Answer)
	if len(answer) == 0 {
		answer = json.RawMessage("null")
	}

	return SubmissionItemResponse{
		ID:                  model.ID,
		QuestionID:          model.QuestionID,
		QuestionIndex:       model.QuestionIndex,
		QuestionType:        model.QuestionType,
		Answer:              answer,
		IsCorrect:           model.IsCorrect,
		MarksAwarded:        model.MarksAwarded,
		MarksPossible:       model.MarksPossible,
		RequiresHumanReview: requiresReview,
		PendingReview:       requiresReview && !model.ManuallyGraded(),
		Feedback:            model.DetailedFeedback,
		GradingMetadata:     metadataFromJSON(model.GradingMetadata),
		TimeSpent:           model.TimeSpent,
	}
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:             model.ID,
		AssessmentID:   model.AssessmentID,
		ChildID:        model.ChildID,
		UserID:         model.UserID,
		RetakeNumber:   model.RetakeNumber,
		TotalMarks:     model.TotalMarks,
		MarksObtained:  model.MarksObtained,
		Status:         model.Status,
		OverallComment: model.OverallComment,
		StartedAt:      model.StartedAt,
		FinishedAt:     model.FinishedAt,
		GradedAt:       model.GradedAt,
		GradedBy:       model.GradedBy,
		Items:          make([]SubmissionItemResponse, 0, len(model.Items)),
		History:        make([]SubmissionGradeHistoryResponse, 0, len(model.History)),
		CreatedAt:      model.CreatedAt,
	}

	for _, item := range model.Items {
		response.Items = append(response.Items, NewSubmissionItemResponse(item))
	}

	for _, entry := range model.History {
		response.History = append(response.History, SubmissionGradeHistoryResponse{
			SubmissionItemID: entry.SubmissionItemID,
			PreviousMarks:    entry.PreviousMarks,
			Marks:            entry.Marks,
			Feedback:         entry.Feedback,
			FlagID:           entry.FlagID,
			GradedBy:         entry.GradedBy,
			GradedAt:         entry.GradedAt,
		})
	}

	return response
}

// ManualGradeRequest carries a grader's batch of item overrides keyed by item id.
type ManualGradeRequest struct {
	Items          map[uint]float64 `json:"items" validate:"required,min=1,dive,gte=0"`
	Feedback       map[uint]string  `json:"feedback" validate:"omitempty,dive,max=5000"`
	OverallComment *string          `json:"overall_comment" validate:"omitempty,max=5000"`
}

// Skip reasons reported for items a manual grading batch did not apply.
const (
	SkipReasonNotFound     = "not_found"
	SkipReasonAlreadyFinal = "already_final"
	SkipReasonExceedsMax   = "exceeds_max"
)

// SkippedItem names an item id left untouched by a batch and why.
type SkippedItem struct {
	ItemID uint   `json:"item_id"`
	Reason string `json:"reason"`
}

// ManualGradeResponse reports which items of a batch were actually applied.
type ManualGradeResponse struct {
	Submission SubmissionResponse `json:"submission"`
	Applied    []uint             `json:"applied"`
	Skipped    []SkippedItem      `json:"skipped"`
}
