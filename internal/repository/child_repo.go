package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// ChildRepository answers ownership questions about learner profiles.
type ChildRepository interface {
	GetByID(ctx context.Context, id uint) (models.Child, error)
	BelongsTo(ctx context.Context, childID, userID uint) (bool, error)
	AssignedTeacher(ctx context.Context, childID uint) (*uint, error)
}

type childRepository struct {
	db *gorm.DB
}

// NewChildRepository constructs the repository.
func NewChildRepository(db *gorm.DB) ChildRepository {
	return &childRepository{db: db}
}

func (r *childRepository) GetByID(ctx context.Context, id uint) (models.Child, error) {
	var child models.Child
	if err := r.db.WithContext(ctx).First(&child, id).Error; err != nil {
		return models.Child{}, err
	}
	return child, nil
}

func (r *childRepository) BelongsTo(ctx context.Context, childID, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Child{}).
		Where("id = ? AND user_id = ?", childID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *childRepository) AssignedTeacher(ctx context.Context, childID uint) (*uint, error) {
	child, err := r.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	return child.TeacherID, nil
}
