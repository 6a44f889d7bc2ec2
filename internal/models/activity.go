package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions and entity types written by the grading workflow.
const (
	ActivitySubmissionManuallyGraded = "submission.manually_graded"
	ActivityGradingFlagPrefix        = "grading_flag."

	ActivityEntitySubmission  = "submission"
	ActivityEntityGradingFlag = "grading_flag"
)

// ActivityLog is one entry of the grading audit trail. Entries are append only.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null;index:idx_activity_entity,priority:1" json:"entity_type"`
	EntityID   *uint             `gorm:"index:idx_activity_entity,priority:2" json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}

// GradingFlagActivity returns the audit action for a flag reaching status.
func GradingFlagActivity(status string) string {
	return ActivityGradingFlagPrefix + status
}
