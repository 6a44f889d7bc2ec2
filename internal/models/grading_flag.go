package models

import "time"

const (
	// GradingFlagStatusPending is an open dispute.
	GradingFlagStatusPending = "pending"
	// GradingFlagStatusResolved is a dispute closed after review.
	GradingFlagStatusResolved = "resolved"
	// GradingFlagStatusDismissed is a dispute closed without a grade change.
	GradingFlagStatusDismissed = "dismissed"

	// GradingFlagOpenMarker fills OpenMarker while a flag is pending. Resolved
	// flags store NULL so the unique index only covers open disputes.
	GradingFlagOpenMarker = "open"
)

// GradingFlag is a request to re-review one submission item.
type GradingFlag struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	SubmissionItemID uint            `gorm:"not null;uniqueIndex:idx_grading_flag_open,priority:1" json:"submission_item_id"`
	UserID           uint            `gorm:"not null;uniqueIndex:idx_grading_flag_open,priority:2;index" json:"user_id"`
	OpenMarker       *string         `gorm:"size:8;uniqueIndex:idx_grading_flag_open,priority:3" json:"-"`
	SubmissionID     uint            `gorm:"not null;index" json:"submission_id"`
	ChildID          uint            `gorm:"not null;index" json:"child_id"`
	Reason           string          `gorm:"size:64;not null" json:"reason"`
	Explanation      string          `gorm:"type:text" json:"explanation"`
	OriginalGrade    *float64        `json:"original_grade"`
	Status           string          `gorm:"size:32;not null;index" json:"status"`
	ReviewedBy       *uint           `json:"reviewed_by"`
	FinalGrade       *float64        `json:"final_grade"`
	GradeChanged     bool            `gorm:"not null;default:false" json:"grade_changed"`
	AdminComment     string          `gorm:"type:text" json:"admin_comment"`
	ReviewedAt       *time.Time      `json:"reviewed_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	SubmissionItem   *SubmissionItem `gorm:"foreignKey:SubmissionItemID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsPending reports whether the flag is still open.
func (f GradingFlag) IsPending() bool {
	return f.Status == GradingFlagStatusPending
}
