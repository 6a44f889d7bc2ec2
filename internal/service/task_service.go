package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

const (
	// TaskTypeGradeSubmission asks a teacher to grade items awaiting review.
	TaskTypeGradeSubmission = "grade_submission"
	// TaskTypeReviewFlag asks an admin to review a grading dispute.
	TaskTypeReviewFlag = "review_grading_flag"

	relatedSubmission  = models.ActivityEntitySubmission
	relatedGradingFlag = models.ActivityEntityGradingFlag
)

// TaskInput describes an admin task to open.
type TaskInput struct {
	Type        string
	Title       string
	Description string
	AssignedTo  *uint
	RelatedType string
	RelatedID   uint
	Priority    string
}

// TaskService manages the admin work queue.
type TaskService interface {
	CreateTask(ctx context.Context, input TaskInput) (dto.AdminTaskResponse, error)
	CompleteRelated(ctx context.Context, taskType, relatedType string, relatedID uint) (int64, error)
	ListOpen(ctx context.Context, actor ActivityActor) ([]dto.AdminTaskResponse, error)
}

type taskService struct {
	repo   repository.AdminTaskRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewTaskService constructs the admin task service.
func NewTaskService(repo repository.AdminTaskRepository, logger zerolog.Logger) TaskService {
	return &taskService{
		repo:   repo,
		logger: logger.With().Str("component", "task_service").Logger(),
		now:    time.Now,
	}
}

func (s *taskService) CreateTask(ctx context.Context, input TaskInput) (dto.AdminTaskResponse, error) {
	priority := strings.ToLower(strings.TrimSpace(input.Priority))
	if priority == "" {
		priority = "normal"
	}

	task := models.AdminTask{
		Type:        input.Type,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		AssignedTo:  input.AssignedTo,
		RelatedType: input.RelatedType,
		RelatedID:   input.RelatedID,
		Priority:    priority,
		Status:      models.AdminTaskStatusOpen,
	}

	if err := s.repo.Create(ctx, &task); err != nil {
		s.logger.Error().Err(err).Str("task_type", input.Type).Uint("related_id", input.RelatedID).Msg("failed to create admin task")
		return dto.AdminTaskResponse{}, err
	}

	return dto.NewAdminTaskResponse(task), nil
}

func (s *taskService) CompleteRelated(ctx context.Context, taskType, relatedType string, relatedID uint) (int64, error) {
	return s.repo.CompleteRelated(ctx, taskType, relatedType, relatedID, s.now().UTC())
}

// ListOpen returns the whole queue to admins and the assigned plus unassigned
// tasks to teachers.
func (s *taskService) ListOpen(ctx context.Context, actor ActivityActor) ([]dto.AdminTaskResponse, error) {
	var assignedTo *uint
	if normalizeRole(actor.Role) != roleAdmin {
		id := actor.ID
		assignedTo = &id
	}

	tasks, err := s.repo.ListOpen(ctx, assignedTo)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AdminTaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, dto.NewAdminTaskResponse(task))
	}
	return responses, nil
}
