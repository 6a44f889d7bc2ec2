package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// GradingFlagFilter narrows dispute queries.
type GradingFlagFilter struct {
	Page         int
	PageSize     int
	Status       string
	ChildID      *uint
	SubmissionID *uint
	UserID       *uint
}

// GradingFlagRepository persists grading disputes.
type GradingFlagRepository interface {
	CreatePending(ctx context.Context, flag *models.GradingFlag) error
	GetByID(ctx context.Context, id uint) (models.GradingFlag, error)
	List(ctx context.Context, filter GradingFlagFilter) ([]models.GradingFlag, int64, error)
	ClosePending(ctx context.Context, flag models.GradingFlag) (bool, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountPendingByReason(ctx context.Context) (map[string]int64, error)
}

type gradingFlagRepository struct {
	db *gorm.DB
}

// NewGradingFlagRepository constructs the repository.
func NewGradingFlagRepository(db *gorm.DB) GradingFlagRepository {
	return &gradingFlagRepository{db: db}
}

// CreatePending inserts an open flag. The item row is locked while the
// existing open flag is looked up, and the partial unique index on
// (item, user, open marker) rejects any insert that still races past it.
func (r *gradingFlagRepository) CreatePending(ctx context.Context, flag *models.GradingFlag) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.SubmissionItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&item, flag.SubmissionItemID).Error; err != nil {
			return err
		}

		var open int64
		if err := tx.Model(&models.GradingFlag{}).
			Where("submission_item_id = ? AND user_id = ? AND status = ?", flag.SubmissionItemID, flag.UserID, models.GradingFlagStatusPending).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return ErrConflict
		}

		marker := models.GradingFlagOpenMarker
		flag.Status = models.GradingFlagStatusPending
		flag.OpenMarker = &marker
		if err := tx.Create(flag).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrConflict
			}
			return err
		}
		return nil
	})
}

func (r *gradingFlagRepository) GetByID(ctx context.Context, id uint) (models.GradingFlag, error) {
	var flag models.GradingFlag
	if err := r.db.WithContext(ctx).First(&flag, id).Error; err != nil {
		return models.GradingFlag{}, err
	}
	return flag, nil
}

func (r *gradingFlagRepository) List(ctx context.Context, filter GradingFlagFilter) ([]models.GradingFlag, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.GradingFlag{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ChildID != nil {
		query = query.Where("child_id = ?", *filter.ChildID)
	}
	if filter.SubmissionID != nil {
		query = query.Where("submission_id = ?", *filter.SubmissionID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var flags []models.GradingFlag
	if err := query.Scopes(paginate(filter.Page, filter.PageSize), newestFirst).Find(&flags).Error; err != nil {
		return nil, 0, err
	}

	return flags, total, nil
}

// ClosePending moves a pending flag to its terminal state. It reports false
// when the flag was no longer pending.
func (r *gradingFlagRepository) ClosePending(ctx context.Context, flag models.GradingFlag) (bool, error) {
	return closePendingFlag(r.db.WithContext(ctx), flag)
}

func closePendingFlag(tx *gorm.DB, flag models.GradingFlag) (bool, error) {
	result := tx.Model(&models.GradingFlag{}).
		Where("id = ? AND status = ?", flag.ID, models.GradingFlagStatusPending).
		Updates(map[string]interface{}{
			"status":        flag.Status,
			"open_marker":   nil,
			"reviewed_by":   flag.ReviewedBy,
			"final_grade":   flag.FinalGrade,
			"grade_changed": flag.GradeChanged,
			"admin_comment": flag.AdminComment,
			"reviewed_at":   flag.ReviewedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

type groupCount struct {
	Label string
	Total int64
}

func (r *gradingFlagRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []groupCount
	if err := r.db.WithContext(ctx).Model(&models.GradingFlag{}).
		Select("status AS label, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return groupCountsToMap(rows), nil
}

func (r *gradingFlagRepository) CountPendingByReason(ctx context.Context) (map[string]int64, error) {
	var rows []groupCount
	if err := r.db.WithContext(ctx).Model(&models.GradingFlag{}).
		Select("reason AS label, COUNT(*) AS total").
		Where("status = ?", models.GradingFlagStatusPending).
		Group("reason").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return groupCountsToMap(rows), nil
}

func groupCountsToMap(rows []groupCount) map[string]int64 {
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Label] = row.Total
	}
	return counts
}
