package dto

import (
	"time"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// GradingFlagCreateRequest files a dispute against one submission item.
type GradingFlagCreateRequest struct {
	SubmissionItemID uint   `json:"submission_item_id" validate:"required,gt=0"`
	ChildID          uint   `json:"child_id" validate:"required,gt=0"`
	Reason           string `json:"reason" validate:"required,oneof=incorrect_grade unfair_scoring missed_content ai_misunderstood partial_credit_issue other"`
	Explanation      string `json:"explanation" validate:"required,min=3,max=2000"`
}

// GradingFlagResolveRequest closes a dispute, optionally with a new grade.
type GradingFlagResolveRequest struct {
	Resolution string   `json:"resolution" validate:"required,oneof=approved dismissed"`
	NewGrade   *float64 `json:"new_grade" validate:"omitempty,gte=0"`
	Comment    string   `json:"comment" validate:"omitempty,max=2000"`
}

// GradingFlagBulkResolveRequest closes several disputes without grade changes.
type GradingFlagBulkResolveRequest struct {
	FlagIDs    []uint `json:"flag_ids" validate:"required,min=1,max=100,dive,gt=0"`
	Resolution string `json:"resolution" validate:"required,oneof=approved dismissed"`
	Comment    string `json:"comment" validate:"omitempty,max=500"`
}

// GradingFlagBulkResolveResponse reports how many flags were closed.
type GradingFlagBulkResolveResponse struct {
	Updated int    `json:"updated"`
	Skipped []uint `json:"skipped"`
}

// GradingFlagListRequest defines filters for the admin flag queue.
type GradingFlagListRequest struct {
	Page     int
	PageSize int
	Status   string
	ChildID  uint
}

// GradingFlagResponse serializes a dispute.
type GradingFlagResponse struct {
	ID               uint       `json:"id"`
	SubmissionItemID uint       `json:"submission_item_id"`
	SubmissionID     uint       `json:"submission_id"`
	ChildID          uint       `json:"child_id"`
	UserID           uint       `json:"user_id"`
	Reason           string     `json:"reason"`
	Explanation      string     `json:"explanation"`
	OriginalGrade    *float64   `json:"original_grade"`
	Status           string     `json:"status"`
	ReviewedBy       *uint      `json:"reviewed_by"`
	FinalGrade       *float64   `json:"final_grade"`
	GradeChanged     bool       `json:"grade_changed"`
	AdminComment     string     `json:"admin_comment"`
	ReviewedAt       *time.Time `json:"reviewed_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// GradingFlagListResponse wraps a page of disputes.
type GradingFlagListResponse struct {
	Items      []GradingFlagResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

// GradingFlagStatsResponse summarises the dispute queue.
type GradingFlagStatsResponse struct {
	ByStatus        map[string]int64 `json:"by_status"`
	PendingByReason map[string]int64 `json:"pending_by_reason"`
	TotalPending    int64            `json:"total_pending"`
}

// NewGradingFlagResponse converts a flag model into a DTO.
func NewGradingFlagResponse(model models.GradingFlag) GradingFlagResponse {
	return GradingFlagResponse{
		ID:               model.ID,
		SubmissionItemID: model.SubmissionItemID,
		SubmissionID:     model.SubmissionID,
		ChildID:          model.ChildID,
		UserID:           model.UserID,
		Reason:           model.Reason,
		Explanation:      model.Explanation,
		OriginalGrade:    model.OriginalGrade,
		Status:           model.Status,
		ReviewedBy:       model.ReviewedBy,
		FinalGrade:       model.FinalGrade,
		GradeChanged:     model.GradeChanged,
		AdminComment:     model.AdminComment,
		ReviewedAt:       model.ReviewedAt,
		CreatedAt:        model.CreatedAt,
	}
}
