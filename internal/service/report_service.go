package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/observability"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

// ReportService builds submission reports and keeps them in Redis.
type ReportService interface {
	Generate(ctx context.Context, submissionID uint) (dto.SubmissionReport, error)
	Get(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionReport, error)
}

type reportService struct {
	submissions repository.SubmissionRepository
	children    repository.ChildRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReportService constructs the report service. A nil cache disables caching.
func NewReportService(submissions repository.SubmissionRepository, children repository.ChildRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ReportService {
	return &reportService{
		submissions: submissions,
		children:    children,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "report_service").Logger(),
		now:         time.Now,
	}
}

func reportCacheKey(submissionID uint) string {
	return fmt.Sprintf("report:submission:%d", submissionID)
}

// Generate rebuilds the report from the database and overwrites the cache entry.
func (s *reportService) Generate(ctx context.Context, submissionID uint) (dto.SubmissionReport, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionReport{}, ErrSubmissionNotFound
		}
		return dto.SubmissionReport{}, err
	}

	report := buildReport(submission, s.now().UTC())
	s.store(ctx, report)
	return report, nil
}

func (s *reportService) Get(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionReport, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionReport{}, ErrSubmissionNotFound
		}
		return dto.SubmissionReport{}, err
	}

	if err := authorizeChildAccess(ctx, s.children, submission.ChildID, actor); err != nil {
		return dto.SubmissionReport{}, err
	}

	if cached, ok := s.lookup(ctx, submissionID); ok && cached.Status == submission.Status && cached.MarksObtained == submission.MarksObtained {
		cached.CacheHit = true
		return cached, nil
	}

	report := buildReport(submission, s.now().UTC())
	s.store(ctx, report)
	return report, nil
}

func (s *reportService) lookup(ctx context.Context, submissionID uint) (dto.SubmissionReport, bool) {
	if s.cache == nil {
		return dto.SubmissionReport{}, false
	}

	cached, err := s.cache.Get(ctx, reportCacheKey(submissionID)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read report cache")
		}
		observability.ReportCacheLookups().WithLabelValues("miss").Inc()
		return dto.SubmissionReport{}, false
	}

	var report dto.SubmissionReport
	if err := json.Unmarshal([]byte(cached), &report); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("discarding corrupt report cache entry")
		observability.ReportCacheLookups().WithLabelValues("miss").Inc()
		return dto.SubmissionReport{}, false
	}

	observability.ReportCacheLookups().WithLabelValues("hit").Inc()
	return report, true
}

func (s *reportService) store(ctx context.Context, report dto.SubmissionReport) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(report)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode report")
		return
	}
	if err := s.cache.Set(ctx, reportCacheKey(report.SubmissionID), payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store report cache")
	}
}

func buildReport(submission models.Submission, generatedAt time.Time) dto.SubmissionReport {
	report := dto.SubmissionReport{
		SubmissionID:    submission.ID,
		AssessmentID:    submission.AssessmentID,
		AssessmentTitle: submission.Assessment.Title,
		ChildID:         submission.ChildID,
		RetakeNumber:    submission.RetakeNumber,
		Status:          submission.Status,
		TotalMarks:      submission.TotalMarks,
		MarksObtained:   submission.MarksObtained,
		OverallComment:  submission.OverallComment,
		Items:           make([]dto.SubmissionReportItem, 0, len(submission.Items)),
		GradedAt:        submission.GradedAt,
		GeneratedAt:     generatedAt,
	}

	if submission.TotalMarks > 0 {
		report.Percentage = math.Round(float64(submission.MarksObtained)/float64(submission.TotalMarks)*10000) / 100
	}

	for _, item := range submission.Items {
		pending := itemState(item).Outstanding()
		if pending {
			report.PendingCount++
		}
		if item.IsCorrect != nil && *item.IsCorrect {
			report.CorrectCount++
		}
		report.Items = append(report.Items, dto.SubmissionReportItem{
			QuestionIndex: item.QuestionIndex,
			QuestionType:  item.QuestionType,
			MarksAwarded:  item.MarksAwarded,
			MarksPossible: item.MarksPossible,
			IsCorrect:     item.IsCorrect,
			PendingReview: pending,
			Feedback:      item.DetailedFeedback,
		})
	}

	return report
}

// authorizeChildAccess lets staff through and otherwise requires the actor to
// own the child profile.
func authorizeChildAccess(ctx context.Context, children repository.ChildRepository, childID uint, actor ActivityActor) error {
	if isStaff(actor.Role) {
		return nil
	}
	if actor.ID == 0 {
		return ErrForbidden
	}
	owns, err := children.BelongsTo(ctx, childID, actor.ID)
	if err != nil {
		return err
	}
	if !owns {
		return ErrForbidden
	}
	return nil
}
