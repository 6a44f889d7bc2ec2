package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/grading"
	"github.com/noah-isme/gema-assessment-api/internal/jobs"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/observability"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
	"github.com/noah-isme/gema-assessment-api/pkg/ai"
)

// SubmissionService grades and stores assessment attempts.
type SubmissionService interface {
	Submit(ctx context.Context, assessmentID uint, req dto.SubmitAssessmentRequest, actor ActivityActor) (dto.SubmissionResponse, error)
	Get(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionResponse, error)
}

// SubmissionDependencies groups the collaborators of the submission service.
// Queue, Tasks and Advisor are optional.
type SubmissionDependencies struct {
	Assessments repository.AssessmentRepository
	Submissions repository.SubmissionRepository
	Children    repository.ChildRepository
	Registry    *grading.Registry
	Queue       jobs.Enqueuer
	Tasks       TaskService
	Advisor     ai.EssayAdvisor
	Validator   *validator.Validate
}

type submissionService struct {
	assessments repository.AssessmentRepository
	submissions repository.SubmissionRepository
	children    repository.ChildRepository
	registry    *grading.Registry
	queue       jobs.Enqueuer
	tasks       TaskService
	advisor     ai.EssayAdvisor
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(deps SubmissionDependencies, logger zerolog.Logger) SubmissionService {
	registry := deps.Registry
	if registry == nil {
		registry = grading.NewRegistry()
	}

	return &submissionService{
		assessments: deps.Assessments,
		submissions: deps.Submissions,
		children:    deps.Children,
		registry:    registry,
		queue:       deps.Queue,
		tasks:       deps.Tasks,
		advisor:     deps.Advisor,
		validator:   deps.Validator,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, assessmentID uint, req dto.SubmitAssessmentRequest, actor ActivityActor) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.submit", trace.WithAttributes(
		attribute.Int64("submission.assessment_id", int64(assessmentID)),
		attribute.Int64("submission.child_id", int64(req.ChildID)),
	))
	defer span.End()
	start := time.Now()

	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	assessment, err := s.assessments.GetWithQuestions(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "assessment_not_found")
			return dto.SubmissionResponse{}, ErrAssessmentNotFound
		}
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	if err := authorizeChildAccess(ctx, s.children, req.ChildID, actor); err != nil {
		span.SetStatus(codes.Error, "forbidden")
		return dto.SubmissionResponse{}, err
	}

	finishedAt := s.now().UTC()
	created, err := s.submissions.CreateAttempt(ctx, assessment.ID, req.ChildID, func(prior int64) (*models.Submission, error) {
		if prior > 0 && !assessment.RetakeAllowed {
			return nil, ErrRetakeNotAllowed
		}

		questions, bankIDs, err := questionSnapshots(assessment)
		if err != nil {
			return nil, err
		}

		aggregation, err := grading.Aggregate(s.registry, questions, req.Answers)
		if err != nil {
			return nil, err
		}

		submission := &models.Submission{
			AssessmentID:  assessment.ID,
			ChildID:       req.ChildID,
			UserID:        actor.ID,
			RetakeNumber:  int(prior) + 1,
			TotalMarks:    aggregation.TotalMarks,
			MarksObtained: aggregation.MarksObtained,
			Status:        string(aggregation.Status),
			StartedAt:     req.StartedAt,
			FinishedAt:    &finishedAt,
			Items:         buildItems(aggregation, bankIDs, req.TimeSpent),
		}
		if aggregation.Status == grading.StatusGraded {
			submission.GradedAt = &finishedAt
		}
		return submission, nil
	})
	if err != nil {
		return dto.SubmissionResponse{}, s.submitError(span, assessment, req.ChildID, err)
	}

	observability.GradingSubmissions().WithLabelValues(created.Status).Inc()
	observability.GradingDuration().WithLabelValues("submit").Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int64("submission.id", int64(created.ID)),
		attribute.String("submission.status", created.Status),
		attribute.Int("submission.marks_obtained", created.MarksObtained),
	)

	s.adviseEssays(ctx, &created)
	s.afterSubmit(ctx, created)

	return dto.NewSubmissionResponse(created), nil
}

func (s *submissionService) submitError(span trace.Span, assessment models.Assessment, childID uint, err error) error {
	logger := s.logger.With().Uint("assessment_id", assessment.ID).Uint("child_id", childID).Logger()

	switch {
	case errors.Is(err, repository.ErrConflict) && assessment.RetakeAllowed:
		logger.Warn().Msg("concurrent attempts collided on retake number")
		span.SetStatus(codes.Error, "attempt_conflict")
		return ErrSubmissionConflict
	case errors.Is(err, ErrRetakeNotAllowed), errors.Is(err, repository.ErrConflict):
		span.SetStatus(codes.Error, "retake_not_allowed")
		return ErrRetakeNotAllowed
	case errors.Is(err, gorm.ErrRecordNotFound):
		span.SetStatus(codes.Error, "assessment_not_found")
		return ErrAssessmentNotFound
	case errors.Is(err, grading.ErrConfiguration):
		logger.Error().Err(err).Msg("assessment question cannot be graded")
		span.RecordError(err)
		span.SetStatus(codes.Error, "configuration_error")
		return err
	case errors.Is(err, grading.ErrAnswerShape):
		span.SetStatus(codes.Error, "answer_shape")
		return err
	default:
		logger.Error().Err(err).Msg("failed to store submission")
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_create_failed")
		return err
	}
}

func (s *submissionService) Get(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if err := authorizeChildAccess(ctx, s.children, submission.ChildID, actor); err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

// questionSnapshots turns the assessment's ordered questions into grading
// snapshots. The returned bank ids line up with the snapshots by position.
func questionSnapshots(assessment models.Assessment) ([]grading.Question, []*uint, error) {
	questions := make([]grading.Question, 0, len(assessment.Questions))
	bankIDs := make([]*uint, 0, len(assessment.Questions))

	for index, aq := range assessment.Questions {
		rawType, prompt, marks, payload := aq.Definition()
		id := aq.ID
		if aq.QuestionID != nil {
			id = *aq.QuestionID
		}
		qType := grading.NormalizeType(rawType)

		cfg, err := grading.ParseConfig(payload)
		if err != nil {
			return nil, nil, &grading.ConfigurationError{QuestionID: id, Index: index, Type: qType, Reason: err.Error()}
		}
		if strings.TrimSpace(cfg.Prompt) == "" {
			cfg.Prompt = prompt
		}

		questions = append(questions, grading.Question{ID: id, Index: index, Type: qType, Marks: marks, Config: cfg})
		bankIDs = append(bankIDs, aq.QuestionID)
	}

	return questions, bankIDs, nil
}

func buildItems(aggregation grading.Aggregation, bankIDs []*uint, timeSpent map[int]int) []models.SubmissionItem {
	items := make([]models.SubmissionItem, 0, len(aggregation.Items))

	for i, result := range aggregation.Items {
		snapshot, _ := json.Marshal(result.Question)
		awarded := result.Result.MarksAwarded

		item := models.SubmissionItem{
			QuestionIndex:    result.Question.Index,
			QuestionType:     string(result.Question.Type),
			QuestionData:     datatypes.JSON(snapshot),
			Answer:           datatypes.JSON(result.Answer),
			MarksAwarded:     &awarded,
			MarksPossible:    result.Question.Marks,
			GradingMetadata:  datatypes.JSONMap(result.Metadata),
			DetailedFeedback: result.Result.Feedback,
			TimeSpent:        timeSpent[result.Question.Index],
		}
		if i < len(bankIDs) {
			item.QuestionID = bankIDs[i]
		}
		if !result.Result.RequiresHumanReview {
			correct := result.Result.IsCorrect
			item.IsCorrect = &correct
		}
		items = append(items, item)
	}

	return items
}

func isEssayType(questionType string) bool {
	switch grading.QuestionType(questionType) {
	case grading.TypeEssay, grading.TypeLongAnswer:
		return true
	default:
		return false
	}
}

// adviseEssays stores an advisory AI grade on each essay item. The suggestion
// never changes marks and failures are only logged.
func (s *submissionService) adviseEssays(ctx context.Context, submission *models.Submission) {
	if s.advisor == nil {
		return
	}

	for i := range submission.Items {
		item := &submission.Items[i]
		if !isEssayType(item.QuestionType) {
			continue
		}

		var question grading.Question
		_ = json.Unmarshal(item.QuestionData, &question)
		answer, _ := grading.DecodeAnswer(grading.QuestionType(item.QuestionType), json.RawMessage(item.Answer))
		text, ok := answer.(grading.TextAnswer)
		if !ok {
			continue
		}

		suggestion, err := s.advisor.Suggest(ctx, ai.EssayInput{
			QuestionPrompt: question.Config.Prompt,
			Rubric:         question.Config.Rubric,
			Answer:         text.Text,
			MaxMarks:       item.MarksPossible,
		})
		if err != nil {
			s.logger.Warn().Err(err).Uint("submission_item_id", item.ID).Msg("essay advisory failed")
			continue
		}

		advisory := map[string]interface{}{
			"suggested_marks": suggestion.SuggestedMarks,
			"feedback":        suggestion.Feedback,
			"confidence":      suggestion.Confidence,
			"model":           suggestion.Model,
		}
		if err := s.submissions.MergeItemMetadata(ctx, item.ID, map[string]interface{}{"ai_suggestion": advisory}); err != nil {
			s.logger.Warn().Err(err).Uint("submission_item_id", item.ID).Msg("failed to store essay advisory")
			continue
		}
		if item.GradingMetadata == nil {
			item.GradingMetadata = datatypes.JSONMap{}
		}
		item.GradingMetadata["ai_suggestion"] = advisory
	}
}

func (s *submissionService) afterSubmit(ctx context.Context, submission models.Submission) {
	logger := s.logger.With().Uint("submission_id", submission.ID).Logger()

	if submission.IsGraded() {
		if s.queue != nil {
			if err := jobs.EnqueueReport(ctx, s.queue, submission.ID); err != nil {
				logger.Warn().Err(err).Msg("failed to enqueue report generation")
			}
		}
		return
	}

	if s.tasks == nil {
		return
	}

	teacherID, err := s.children.AssignedTeacher(ctx, submission.ChildID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to resolve assigned teacher")
		teacherID = nil
	}

	pending := 0
	for _, item := range submission.Items {
		if itemState(item).Outstanding() {
			pending++
		}
	}

	if _, err := s.tasks.CreateTask(ctx, TaskInput{
		Type:        TaskTypeGradeSubmission,
		Title:       "Grade Submission",
		Description: fmt.Sprintf("Submission #%d has %d item(s) awaiting manual grading.", submission.ID, pending),
		AssignedTo:  teacherID,
		RelatedType: relatedSubmission,
		RelatedID:   submission.ID,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to create grading task")
	}
}
