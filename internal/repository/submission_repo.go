package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// AttemptBuilder builds the submission to insert once prior attempts for the
// (assessment, child) pair have been counted under lock. Returning an error
// aborts the transaction and nothing is written.
type AttemptBuilder func(priorAttempts int64) (*models.Submission, error)

// GradeReconciliation is the write set produced by a manual grading decision.
type GradeReconciliation struct {
	Items   []models.SubmissionItem
	Flags   []models.GradingFlag
	History []models.SubmissionGradeHistory
}

// ReconcileFunc inspects the locked submission, its items and the open flags
// keyed by item id, and returns the updates to apply.
type ReconcileFunc func(submission models.Submission, items []models.SubmissionItem, openFlags map[uint][]models.GradingFlag) (GradeReconciliation, error)

// FinalizeFunc recomputes submission aggregates from items re-read after the
// updates were written.
type FinalizeFunc func(submission *models.Submission, items []models.SubmissionItem)

// SubmissionRepository defines data operations for graded submissions.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetItem(ctx context.Context, id uint) (models.SubmissionItem, error)
	CountForChild(ctx context.Context, assessmentID, childID uint) (int64, error)
	CreateAttempt(ctx context.Context, assessmentID, childID uint, build AttemptBuilder) (models.Submission, error)
	Reconcile(ctx context.Context, submissionID uint, decide ReconcileFunc, finalize FinalizeFunc) (models.Submission, error)
	MergeItemMetadata(ctx context.Context, itemID uint, values map[string]interface{}) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func orderedItems(tx *gorm.DB) *gorm.DB {
	return tx.Order("question_index ASC, id ASC")
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Assessment").
		Preload("Items", orderedItems).
		Preload("History", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("graded_at DESC, id DESC")
		}).
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetItem(ctx context.Context, id uint) (models.SubmissionItem, error) {
	var item models.SubmissionItem
	if err := r.db.WithContext(ctx).Preload("Submission").First(&item, id).Error; err != nil {
		return models.SubmissionItem{}, err
	}
	return item, nil
}

func (r *submissionRepository) CountForChild(ctx context.Context, assessmentID, childID uint) (int64, error) {
	return countForChild(r.db.WithContext(ctx), assessmentID, childID)
}

func countForChild(tx *gorm.DB, assessmentID, childID uint) (int64, error) {
	var count int64
	if err := tx.Model(&models.Submission{}).
		Where("assessment_id = ? AND child_id = ?", assessmentID, childID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateAttempt serialises attempts per assessment by locking its row, counts
// prior submissions for the child and inserts the built submission with its
// items. The (assessment, child, retake) unique index backs the lock; a
// collision is reported as ErrConflict.
func (r *submissionRepository) CreateAttempt(ctx context.Context, assessmentID, childID uint, build AttemptBuilder) (models.Submission, error) {
	var created models.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assessment models.Assessment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&assessment, assessmentID).Error; err != nil {
			return err
		}

		prior, err := countForChild(tx, assessmentID, childID)
		if err != nil {
			return err
		}

		submission, err := build(prior)
		if err != nil {
			return err
		}

		items := submission.Items
		submission.Items = nil
		if err := tx.Omit(clause.Associations).Create(submission).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrConflict
			}
			return err
		}

		for i := range items {
			items[i].SubmissionID = submission.ID
		}
		if len(items) > 0 {
			if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
				return err
			}
		}

		submission.Items = items
		created = *submission
		return nil
	})
	if err != nil {
		return models.Submission{}, err
	}

	return created, nil
}

// Reconcile applies manual grading under a row lock on the submission. The
// aggregate is recomputed from items re-read inside the transaction so
// concurrent graders never publish a stale total.
func (r *submissionRepository) Reconcile(ctx context.Context, submissionID uint, decide ReconcileFunc, finalize FinalizeFunc) (models.Submission, error) {
	var result models.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var submission models.Submission
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&submission, submissionID).Error; err != nil {
			return err
		}

		var items []models.SubmissionItem
		if err := orderedItems(tx).Where("submission_id = ?", submissionID).Find(&items).Error; err != nil {
			return err
		}

		var flags []models.GradingFlag
		if err := tx.Where("submission_id = ? AND status = ?", submissionID, models.GradingFlagStatusPending).
			Order("id ASC").
			Find(&flags).Error; err != nil {
			return err
		}
		openFlags := make(map[uint][]models.GradingFlag, len(flags))
		for _, flag := range flags {
			openFlags[flag.SubmissionItemID] = append(openFlags[flag.SubmissionItemID], flag)
		}

		plan, err := decide(submission, items, openFlags)
		if err != nil {
			return err
		}

		for i := range plan.Items {
			item := plan.Items[i]
			if err := tx.Model(&item).
				Select("MarksAwarded", "IsCorrect", "GradingMetadata", "DetailedFeedback").
				Updates(&item).Error; err != nil {
				return err
			}
		}

		for _, flag := range plan.Flags {
			if _, err := closePendingFlag(tx, flag); err != nil {
				return err
			}
		}

		if len(plan.History) > 0 {
			if err := tx.Create(&plan.History).Error; err != nil {
				return err
			}
		}

		var fresh []models.SubmissionItem
		if err := orderedItems(tx).Where("submission_id = ?", submissionID).Find(&fresh).Error; err != nil {
			return err
		}

		finalize(&submission, fresh)
		if err := tx.Model(&submission).
			Select("MarksObtained", "Status", "GradedAt", "GradedBy", "OverallComment").
			Updates(&submission).Error; err != nil {
			return err
		}

		submission.Items = fresh
		result = submission
		return nil
	})
	if err != nil {
		return models.Submission{}, err
	}

	return result, nil
}

// MergeItemMetadata writes keys into an item's grading metadata under a row
// lock. Marks and correctness are left untouched.
func (r *submissionRepository) MergeItemMetadata(ctx context.Context, itemID uint, values map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.SubmissionItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, itemID).Error; err != nil {
			return err
		}
		metadata := datatypes.JSONMap{}
		for key, value := range item.GradingMetadata {
			metadata[key] = value
		}
		for key, value := range values {
			metadata[key] = value
		}
		return tx.Model(&item).Update("grading_metadata", metadata).Error
	})
}
