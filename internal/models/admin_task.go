package models

import "time"

const (
	// AdminTaskStatusOpen marks a task waiting in the admin queue.
	AdminTaskStatusOpen = "open"
	// AdminTaskStatusCompleted marks a finished task.
	AdminTaskStatusCompleted = "completed"
)

// AdminTask is a work item in the teacher/admin queue.
type AdminTask struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Type        string     `gorm:"size:64;not null;index" json:"type"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	AssignedTo  *uint      `gorm:"index" json:"assigned_to"`
	RelatedType string     `gorm:"size:64;not null;index:idx_admin_task_related,priority:1" json:"related_type"`
	RelatedID   uint       `gorm:"not null;index:idx_admin_task_related,priority:2" json:"related_id"`
	Priority    string     `gorm:"size:16;not null;default:normal" json:"priority"`
	Status      string     `gorm:"size:32;not null;default:open" json:"status"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
