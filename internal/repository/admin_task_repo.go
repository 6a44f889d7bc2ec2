package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// AdminTaskRepository persists admin work items.
type AdminTaskRepository interface {
	Create(ctx context.Context, task *models.AdminTask) error
	CompleteRelated(ctx context.Context, taskType, relatedType string, relatedID uint, completedAt time.Time) (int64, error)
	ListOpen(ctx context.Context, assignedTo *uint) ([]models.AdminTask, error)
}

type adminTaskRepository struct {
	db *gorm.DB
}

// NewAdminTaskRepository constructs the repository.
func NewAdminTaskRepository(db *gorm.DB) AdminTaskRepository {
	return &adminTaskRepository{db: db}
}

func (r *adminTaskRepository) Create(ctx context.Context, task *models.AdminTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *adminTaskRepository) CompleteRelated(ctx context.Context, taskType, relatedType string, relatedID uint, completedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.AdminTask{}).
		Where("type = ? AND related_type = ? AND related_id = ? AND status = ?", taskType, relatedType, relatedID, models.AdminTaskStatusOpen).
		Updates(map[string]interface{}{
			"status":       models.AdminTaskStatusCompleted,
			"completed_at": completedAt,
		})
	return result.RowsAffected, result.Error
}

func (r *adminTaskRepository) ListOpen(ctx context.Context, assignedTo *uint) ([]models.AdminTask, error) {
	query := r.db.WithContext(ctx).Where("status = ?", models.AdminTaskStatusOpen)
	if assignedTo != nil {
		query = query.Where("assigned_to = ? OR assigned_to IS NULL", *assignedTo)
	}

	var tasks []models.AdminTask
	if err := query.Order("created_at ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}
