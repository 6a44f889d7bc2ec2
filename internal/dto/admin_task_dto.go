package dto

import (
	"time"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// AdminTaskResponse serializes an admin work item.
type AdminTaskResponse struct {
	ID          uint       `json:"id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssignedTo  *uint      `json:"assigned_to"`
	RelatedType string     `json:"related_type"`
	RelatedID   uint       `json:"related_id"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewAdminTaskResponse converts a task model into a DTO.
func NewAdminTaskResponse(model models.AdminTask) AdminTaskResponse {
	return AdminTaskResponse{
		ID:          model.ID,
		Type:        model.Type,
		Title:       model.Title,
		Description: model.Description,
		AssignedTo:  model.AssignedTo,
		RelatedType: model.RelatedType,
		RelatedID:   model.RelatedID,
		Priority:    model.Priority,
		Status:      model.Status,
		CompletedAt: model.CompletedAt,
		CreatedAt:   model.CreatedAt,
	}
}
