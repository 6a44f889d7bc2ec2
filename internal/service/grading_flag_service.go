package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/observability"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

const (
	flagResolutionApproved  = "approved"
	flagResolutionDismissed = "dismissed"
)

// GradingFlagService files and resolves grading disputes.
type GradingFlagService interface {
	File(ctx context.Context, req dto.GradingFlagCreateRequest, actor ActivityActor) (dto.GradingFlagResponse, error)
	Resolve(ctx context.Context, flagID uint, req dto.GradingFlagResolveRequest, actor ActivityActor) (dto.GradingFlagResponse, error)
	BulkResolve(ctx context.Context, req dto.GradingFlagBulkResolveRequest, actor ActivityActor) (dto.GradingFlagBulkResolveResponse, error)
	List(ctx context.Context, req dto.GradingFlagListRequest) (dto.GradingFlagListResponse, error)
	Stats(ctx context.Context) (dto.GradingFlagStatsResponse, error)
}

type gradingFlagService struct {
	flags       repository.GradingFlagRepository
	submissions repository.SubmissionRepository
	children    repository.ChildRepository
	grader      ManualGradingService
	tasks       TaskService
	activity    ActivityRecorder
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGradingFlagService constructs the dispute service. Tasks and activity are optional.
func NewGradingFlagService(flags repository.GradingFlagRepository, submissions repository.SubmissionRepository, children repository.ChildRepository, grader ManualGradingService, tasks TaskService, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) GradingFlagService {
	return &gradingFlagService{
		flags:       flags,
		submissions: submissions,
		children:    children,
		grader:      grader,
		tasks:       tasks,
		activity:    activity,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_flag_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/grading_flag"),
		now:         time.Now,
	}
}

func (s *gradingFlagService) File(ctx context.Context, req dto.GradingFlagCreateRequest, actor ActivityActor) (dto.GradingFlagResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading_flags.file", trace.WithAttributes(
		attribute.Int64("flag.submission_item_id", int64(req.SubmissionItemID)),
		attribute.Int64("flag.user_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradingFlagResponse{}, err
	}

	item, err := s.submissions.GetItem(ctx, req.SubmissionItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "item_not_found")
			return dto.GradingFlagResponse{}, ErrSubmissionItemNotFound
		}
		return dto.GradingFlagResponse{}, err
	}

	if item.Submission == nil || item.Submission.ChildID != req.ChildID || actor.ID == 0 {
		span.SetStatus(codes.Error, "forbidden")
		return dto.GradingFlagResponse{}, ErrForbidden
	}
	owns, err := s.children.BelongsTo(ctx, req.ChildID, actor.ID)
	if err != nil {
		return dto.GradingFlagResponse{}, err
	}
	if !owns {
		span.SetStatus(codes.Error, "forbidden")
		return dto.GradingFlagResponse{}, ErrForbidden
	}

	explanation := strings.TrimSpace(s.sanitizer.Sanitize(req.Explanation))
	if explanation == "" {
		return dto.GradingFlagResponse{}, fmt.Errorf("%w: explanation is empty after sanitization", ErrInvalidFlagInput)
	}

	flag := models.GradingFlag{
		SubmissionItemID: item.ID,
		UserID:           actor.ID,
		SubmissionID:     item.SubmissionID,
		ChildID:          req.ChildID,
		Reason:           req.Reason,
		Explanation:      explanation,
		OriginalGrade:    copyFloat(item.MarksAwarded),
	}

	if err := s.flags.CreatePending(ctx, &flag); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			span.SetStatus(codes.Error, "conflict")
			return dto.GradingFlagResponse{}, ErrFlagConflict
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.GradingFlagResponse{}, ErrSubmissionItemNotFound
		default:
			span.RecordError(err)
			s.logger.Error().Err(err).Uint("submission_item_id", item.ID).Msg("failed to file grading flag")
			return dto.GradingFlagResponse{}, err
		}
	}

	observability.GradingFlags().WithLabelValues("filed").Inc()
	span.SetAttributes(attribute.Int64("flag.id", int64(flag.ID)))

	if s.tasks != nil {
		if _, err := s.tasks.CreateTask(ctx, TaskInput{
			Type:        TaskTypeReviewFlag,
			Title:       "Review Grading Flag",
			Description: fmt.Sprintf("Flag #%d on submission #%d, question %d: %s", flag.ID, flag.SubmissionID, item.QuestionIndex+1, flag.Reason),
			RelatedType: relatedGradingFlag,
			RelatedID:   flag.ID,
			Priority:    "high",
		}); err != nil {
			s.logger.Warn().Err(err).Uint("flag_id", flag.ID).Msg("failed to create flag review task")
		}
	}

	return dto.NewGradingFlagResponse(flag), nil
}

func (s *gradingFlagService) Resolve(ctx context.Context, flagID uint, req dto.GradingFlagResolveRequest, actor ActivityActor) (dto.GradingFlagResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading_flags.resolve", trace.WithAttributes(
		attribute.Int64("flag.id", int64(flagID)),
		attribute.String("flag.resolution", req.Resolution),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradingFlagResponse{}, err
	}

	flag, err := s.loadPending(ctx, flagID)
	if err != nil {
		span.SetStatus(codes.Error, "flag_unavailable")
		return dto.GradingFlagResponse{}, err
	}

	comment := strings.TrimSpace(s.sanitizer.Sanitize(req.Comment))

	if req.Resolution == flagResolutionApproved && req.NewGrade != nil {
		if _, err := s.grader.ResolveFlagWithGrade(ctx, flag, *req.NewGrade, comment, actor); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "regrade_failed")
			return dto.GradingFlagResponse{}, err
		}
		resolved, err := s.flags.GetByID(ctx, flagID)
		if err != nil {
			return dto.GradingFlagResponse{}, err
		}
		return dto.NewGradingFlagResponse(resolved), nil
	}

	closed, err := s.closeWithoutGrade(ctx, flag, req.Resolution, comment, actor)
	if err != nil {
		span.SetStatus(codes.Error, "close_failed")
		return dto.GradingFlagResponse{}, err
	}
	return dto.NewGradingFlagResponse(closed), nil
}

func (s *gradingFlagService) BulkResolve(ctx context.Context, req dto.GradingFlagBulkResolveRequest, actor ActivityActor) (dto.GradingFlagBulkResolveResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.GradingFlagBulkResolveResponse{}, err
	}

	comment := strings.TrimSpace(s.sanitizer.Sanitize(req.Comment))
	response := dto.GradingFlagBulkResolveResponse{Skipped: make([]uint, 0)}
	seen := make(map[uint]struct{}, len(req.FlagIDs))

	for _, id := range req.FlagIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		flag, err := s.loadPending(ctx, id)
		if err != nil {
			if errors.Is(err, ErrFlagNotFound) || errors.Is(err, ErrFlagNotPending) {
				response.Skipped = append(response.Skipped, id)
				continue
			}
			return response, err
		}

		if _, err := s.closeWithoutGrade(ctx, flag, req.Resolution, comment, actor); err != nil {
			if errors.Is(err, ErrFlagNotPending) {
				response.Skipped = append(response.Skipped, id)
				continue
			}
			return response, err
		}
		response.Updated++
	}

	return response, nil
}

func (s *gradingFlagService) loadPending(ctx context.Context, flagID uint) (models.GradingFlag, error) {
	flag, err := s.flags.GetByID(ctx, flagID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.GradingFlag{}, ErrFlagNotFound
		}
		return models.GradingFlag{}, err
	}
	if !flag.IsPending() {
		return models.GradingFlag{}, ErrFlagNotPending
	}
	return flag, nil
}

// closeWithoutGrade terminates a pending flag keeping the item's mark. The
// final grade mirrors the original so grade_changed stays false.
func (s *gradingFlagService) closeWithoutGrade(ctx context.Context, flag models.GradingFlag, resolution, comment string, actor ActivityActor) (models.GradingFlag, error) {
	now := s.now().UTC()
	reviewer := actor.ID

	flag.Status = models.GradingFlagStatusResolved
	if resolution == flagResolutionDismissed {
		flag.Status = models.GradingFlagStatusDismissed
	}
	flag.ReviewedBy = &reviewer
	flag.FinalGrade = copyFloat(flag.OriginalGrade)
	flag.GradeChanged = false
	flag.AdminComment = comment
	flag.ReviewedAt = &now
	flag.OpenMarker = nil

	ok, err := s.flags.ClosePending(ctx, flag)
	if err != nil {
		return models.GradingFlag{}, err
	}
	if !ok {
		return models.GradingFlag{}, ErrFlagNotPending
	}

	observability.GradingFlags().WithLabelValues(flag.Status).Inc()
	logger := s.logger.With().Uint("flag_id", flag.ID).Logger()

	if s.tasks != nil {
		if _, err := s.tasks.CompleteRelated(ctx, TaskTypeReviewFlag, relatedGradingFlag, flag.ID); err != nil {
			logger.Warn().Err(err).Msg("failed to complete flag review task")
		}
	}

	if s.activity != nil {
		entityID := flag.ID
		if _, err := s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     models.GradingFlagActivity(flag.Status),
			EntityType: models.ActivityEntityGradingFlag,
			EntityID:   &entityID,
			Metadata: map[string]interface{}{
				"submission_id":      flag.SubmissionID,
				"submission_item_id": flag.SubmissionItemID,
			},
		}); err != nil {
			logger.Warn().Err(err).Msg("failed to record flag activity")
		}
	}

	return flag, nil
}

func (s *gradingFlagService) List(ctx context.Context, req dto.GradingFlagListRequest) (dto.GradingFlagListResponse, error) {
	filter := repository.GradingFlagFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
		Status:   strings.ToLower(strings.TrimSpace(req.Status)),
	}
	if req.ChildID > 0 {
		filter.ChildID = &req.ChildID
	}

	flags, total, err := s.flags.List(ctx, filter)
	if err != nil {
		return dto.GradingFlagListResponse{}, err
	}

	items := make([]dto.GradingFlagResponse, 0, len(flags))
	for _, flag := range flags {
		items = append(items, dto.NewGradingFlagResponse(flag))
	}

	return dto.GradingFlagListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *gradingFlagService) Stats(ctx context.Context) (dto.GradingFlagStatsResponse, error) {
	byStatus, err := s.flags.CountByStatus(ctx)
	if err != nil {
		return dto.GradingFlagStatsResponse{}, err
	}
	byReason, err := s.flags.CountPendingByReason(ctx)
	if err != nil {
		return dto.GradingFlagStatsResponse{}, err
	}

	return dto.GradingFlagStatsResponse{
		ByStatus:        byStatus,
		PendingByReason: byReason,
		TotalPending:    byStatus[models.GradingFlagStatusPending],
	}, nil
}
