package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// AssessmentRepository loads assessments together with their ordered questions.
type AssessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	GetWithQuestions(ctx context.Context, id uint) (models.Assessment, error)
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}

func (r *assessmentRepository) GetWithQuestions(ctx context.Context, id uint) (models.Assessment, error) {
	var assessment models.Assessment
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("order_position ASC, id ASC")
		}).
		Preload("Questions.Question").
		First(&assessment, id).Error; err != nil {
		return models.Assessment{}, err
	}

	return assessment, nil
}
