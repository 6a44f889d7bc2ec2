package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
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
)

const gradeEpsilon = 1e-9

// ManualGradingService applies human grade overrides to submission items.
type ManualGradingService interface {
	Apply(ctx context.Context, submissionID uint, req dto.ManualGradeRequest, actor ActivityActor) (dto.ManualGradeResponse, error)
	ResolveFlagWithGrade(ctx context.Context, flag models.GradingFlag, grade float64, comment string, actor ActivityActor) (dto.SubmissionResponse, error)
}

type manualGradingService struct {
	submissions repository.SubmissionRepository
	tasks       TaskService
	queue       jobs.Enqueuer
	activity    ActivityRecorder
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewManualGradingService constructs the reconciler. Tasks, queue and activity are optional.
func NewManualGradingService(submissions repository.SubmissionRepository, tasks TaskService, queue jobs.Enqueuer, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) ManualGradingService {
	return &manualGradingService{
		submissions: submissions,
		tasks:       tasks,
		queue:       queue,
		activity:    activity,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "manual_grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/manual_grading"),
		now:         time.Now,
	}
}

type gradeBatch struct {
	marks          map[uint]float64
	feedback       map[uint]string
	overallComment *string
	flagComment    string
	// flagID, when set, must still be open on its item or the batch aborts.
	flagID uint
	actor  ActivityActor
}

type reconcileOutcome struct {
	submission  models.Submission
	applied     []uint
	skipped     []dto.SkippedItem
	closedFlags []models.GradingFlag
}

func (s *manualGradingService) Apply(ctx context.Context, submissionID uint, req dto.ManualGradeRequest, actor ActivityActor) (dto.ManualGradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.manual_apply", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
		attribute.Int("grading.batch_size", len(req.Items)),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ManualGradeResponse{}, err
	}

	outcome, err := s.reconcile(ctx, submissionID, gradeBatch{
		marks:          req.Items,
		feedback:       req.Feedback,
		overallComment: req.OverallComment,
		actor:          actor,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile_failed")
		return dto.ManualGradeResponse{}, err
	}

	span.SetAttributes(
		attribute.Int("grading.applied", len(outcome.applied)),
		attribute.Int("grading.skipped", len(outcome.skipped)),
		attribute.String("grading.status", outcome.submission.Status),
	)

	return dto.ManualGradeResponse{
		Submission: s.afterReconcile(ctx, outcome, actor),
		Applied:    outcome.applied,
		Skipped:    outcome.skipped,
	}, nil
}

// ResolveFlagWithGrade grades the flagged item and closes every open flag on
// it in one transaction.
func (s *manualGradingService) ResolveFlagWithGrade(ctx context.Context, flag models.GradingFlag, grade float64, comment string, actor ActivityActor) (dto.SubmissionResponse, error) {
	if grade < 0 {
		return dto.SubmissionResponse{}, ErrGradeExceedsMax
	}

	outcome, err := s.reconcile(ctx, flag.SubmissionID, gradeBatch{
		marks:       map[uint]float64{flag.SubmissionItemID: grade},
		flagComment: comment,
		flagID:      flag.ID,
		actor:       actor,
	})
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	for _, skipped := range outcome.skipped {
		switch skipped.Reason {
		case dto.SkipReasonExceedsMax:
			return dto.SubmissionResponse{}, ErrGradeExceedsMax
		case dto.SkipReasonNotFound:
			return dto.SubmissionResponse{}, ErrSubmissionItemNotFound
		default:
			return dto.SubmissionResponse{}, ErrFlagNotPending
		}
	}

	return s.afterReconcile(ctx, outcome, actor), nil
}

func (s *manualGradingService) reconcile(ctx context.Context, submissionID uint, batch gradeBatch) (reconcileOutcome, error) {
	start := time.Now()
	now := s.now().UTC()
	var outcome reconcileOutcome

	decide := func(submission models.Submission, items []models.SubmissionItem, openFlags map[uint][]models.GradingFlag) (repository.GradeReconciliation, error) {
		outcome.applied = make([]uint, 0, len(batch.marks))
		outcome.skipped = make([]dto.SkippedItem, 0)
		outcome.closedFlags = nil

		if batch.flagID != 0 && !containsFlag(openFlags, batch.marks, batch.flagID) {
			return repository.GradeReconciliation{}, ErrFlagNotPending
		}

		byID := make(map[uint]int, len(items))
		for index, item := range items {
			byID[item.ID] = index
		}

		ids := make([]uint, 0, len(batch.marks))
		for id := range batch.marks {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		var plan repository.GradeReconciliation
		for _, id := range ids {
			index, ok := byID[id]
			if !ok {
				outcome.skipped = append(outcome.skipped, dto.SkippedItem{ItemID: id, Reason: dto.SkipReasonNotFound})
				continue
			}

			item := items[index]
			flags := openFlags[id]
			if !overwritable(item, len(flags) > 0) {
				outcome.skipped = append(outcome.skipped, dto.SkippedItem{ItemID: id, Reason: dto.SkipReasonAlreadyFinal})
				continue
			}

			marks := batch.marks[id]
			if marks < 0 || marks > float64(item.MarksPossible)+gradeEpsilon {
				outcome.skipped = append(outcome.skipped, dto.SkippedItem{ItemID: id, Reason: dto.SkipReasonExceedsMax})
				continue
			}

			previous := copyFloat(item.MarksAwarded)
			feedback, hasFeedback := batch.feedback[id]
			feedback = strings.TrimSpace(s.sanitizer.Sanitize(feedback))

			overridden := applyOverride(item, marks, previous, len(flags) > 0, batch.actor.ID, now)
			if hasFeedback {
				overridden.DetailedFeedback = feedback
			}
			plan.Items = append(plan.Items, overridden)

			var historyFlag *uint
			for _, flag := range flags {
				closed := closeFlag(flag, marks, batch.flagComment, batch.actor.ID, now)
				plan.Flags = append(plan.Flags, closed)
				outcome.closedFlags = append(outcome.closedFlags, closed)
				if historyFlag == nil {
					flagID := flag.ID
					historyFlag = &flagID
				}
			}

			plan.History = append(plan.History, models.SubmissionGradeHistory{
				SubmissionID:     submission.ID,
				SubmissionItemID: id,
				PreviousMarks:    previous,
				Marks:            marks,
				Feedback:         overridden.DetailedFeedback,
				FlagID:           historyFlag,
				GradedBy:         batch.actor.ID,
				GradedAt:         now,
			})
			outcome.applied = append(outcome.applied, id)
		}

		return plan, nil
	}

	finalize := func(submission *models.Submission, items []models.SubmissionItem) {
		states := make([]grading.ItemState, 0, len(items))
		awarded := make([]float64, 0, len(items))
		for _, item := range items {
			states = append(states, itemState(item))
			if item.MarksAwarded != nil {
				awarded = append(awarded, *item.MarksAwarded)
			}
		}

		submission.MarksObtained = grading.SumMarks(awarded)
		next, err := grading.Transition(grading.Status(submission.Status), grading.DeriveStatus(states))
		if err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("keeping submission status")
		} else {
			submission.Status = string(next)
		}

		if len(outcome.applied) > 0 && submission.Status == models.SubmissionStatusGraded {
			submission.GradedAt = &now
			gradedBy := batch.actor.ID
			submission.GradedBy = &gradedBy
		}
		if batch.overallComment != nil {
			submission.OverallComment = strings.TrimSpace(s.sanitizer.Sanitize(*batch.overallComment))
		}
	}

	submission, err := s.submissions.Reconcile(ctx, submissionID, decide, finalize)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reconcileOutcome{}, ErrSubmissionNotFound
		}
		if errors.Is(err, ErrFlagNotPending) {
			return reconcileOutcome{}, err
		}
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("manual grading failed")
		return reconcileOutcome{}, err
	}

	outcome.submission = submission
	observability.GradingDuration().WithLabelValues("manual").Observe(time.Since(start).Seconds())
	observability.GradingManualItems().WithLabelValues("applied").Add(float64(len(outcome.applied)))
	for _, skipped := range outcome.skipped {
		observability.GradingManualItems().WithLabelValues(skipped.Reason).Inc()
	}
	return outcome, nil
}

// overwritable guards settled grades: only ungraded items, items still
// awaiting their first human grade and items with an open dispute accept a
// new mark. A manual grade settles a review item the same way it settles
// the submission status.
func overwritable(item models.SubmissionItem, hasOpenFlag bool) bool {
	if item.MarksAwarded == nil || hasOpenFlag {
		return true
	}
	return item.RequiresReview() && !item.ManuallyGraded()
}

func containsFlag(openFlags map[uint][]models.GradingFlag, marks map[uint]float64, flagID uint) bool {
	for itemID := range marks {
		for _, flag := range openFlags[itemID] {
			if flag.ID == flagID {
				return true
			}
		}
	}
	return false
}

func applyOverride(item models.SubmissionItem, marks float64, previous *float64, flagged bool, graderID uint, now time.Time) models.SubmissionItem {
	awarded := marks
	correct := marks > 0
	item.MarksAwarded = &awarded
	item.IsCorrect = &correct

	metadata := datatypes.JSONMap{}
	for key, value := range item.GradingMetadata {
		metadata[key] = value
	}
	if _, seen := metadata["original_ai_grade"]; !seen {
		if previous != nil {
			metadata["original_ai_grade"] = *previous
		} else {
			metadata["original_ai_grade"] = nil
		}
	}
	metadata["manually_graded"] = true
	metadata["graded_by"] = graderID
	metadata["graded_at"] = now.Format(time.RFC3339)
	metadata["grading_method"] = "manual"
	metadata["grade_changed_due_to_flag"] = flagged
	item.GradingMetadata = metadata

	return item
}

func closeFlag(flag models.GradingFlag, marks float64, comment string, reviewerID uint, now time.Time) models.GradingFlag {
	final := marks
	reviewer := reviewerID
	reviewedAt := now

	flag.Status = models.GradingFlagStatusResolved
	flag.ReviewedBy = &reviewer
	flag.FinalGrade = &final
	flag.GradeChanged = flag.OriginalGrade == nil || math.Abs(*flag.OriginalGrade-final) > gradeEpsilon
	flag.AdminComment = comment
	flag.ReviewedAt = &reviewedAt
	return flag
}

func itemState(item models.SubmissionItem) grading.ItemState {
	return grading.ItemState{
		MarksAwarded:   item.MarksAwarded,
		RequiresReview: item.RequiresReview(),
		ManuallyGraded: item.ManuallyGraded(),
	}
}

func copyFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

// afterReconcile runs the post-commit side effects. Failures are logged and
// never undo the committed grades.
func (s *manualGradingService) afterReconcile(ctx context.Context, outcome reconcileOutcome, actor ActivityActor) dto.SubmissionResponse {
	submission := outcome.submission
	if fresh, err := s.submissions.GetByID(ctx, submission.ID); err == nil {
		submission = fresh
	} else {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to reload submission")
	}

	if len(outcome.applied) == 0 {
		return dto.NewSubmissionResponse(submission)
	}

	logger := s.logger.With().Uint("submission_id", submission.ID).Logger()

	for _, flag := range outcome.closedFlags {
		observability.GradingFlags().WithLabelValues("resolved").Inc()
		if s.tasks != nil {
			if _, err := s.tasks.CompleteRelated(ctx, TaskTypeReviewFlag, relatedGradingFlag, flag.ID); err != nil {
				logger.Warn().Err(err).Uint("flag_id", flag.ID).Msg("failed to complete flag review task")
			}
		}
	}

	if submission.IsGraded() {
		if s.tasks != nil {
			if _, err := s.tasks.CompleteRelated(ctx, TaskTypeGradeSubmission, relatedSubmission, submission.ID); err != nil {
				logger.Warn().Err(err).Msg("failed to complete grading task")
			}
		}
		if s.queue != nil {
			if err := jobs.EnqueueReport(ctx, s.queue, submission.ID); err != nil {
				logger.Warn().Err(err).Msg("failed to enqueue report generation")
			}
			if submission.UserID > 0 {
				if err := jobs.EnqueueNotification(ctx, s.queue, gradedNotification(submission)); err != nil {
					logger.Warn().Err(err).Msg("failed to enqueue graded notification")
				}
			}
		}
	}

	if s.activity != nil {
		entityID := submission.ID
		if _, err := s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     models.ActivitySubmissionManuallyGraded,
			EntityType: models.ActivityEntitySubmission,
			EntityID:   &entityID,
			Metadata: map[string]interface{}{
				"applied":        outcome.applied,
				"skipped":        len(outcome.skipped),
				"marks_obtained": submission.MarksObtained,
				"status":         submission.Status,
				"flags_resolved": len(outcome.closedFlags),
			},
		}); err != nil {
			logger.Warn().Err(err).Msg("failed to record grading activity")
		}
	}

	return dto.NewSubmissionResponse(submission)
}

func gradedNotification(submission models.Submission) jobs.NotificationPayload {
	title := "Assessment Graded"
	if submission.Assessment.Title != "" {
		title = fmt.Sprintf("Assessment Graded: %s", submission.Assessment.Title)
	}
	return jobs.NotificationPayload{
		UserID:  submission.UserID,
		Title:   title,
		Type:    "assessment",
		Message: fmt.Sprintf("Your assessment has been graded: %d/%d marks.", submission.MarksObtained, submission.TotalMarks),
	}
}
