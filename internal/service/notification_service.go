package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
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

const unreadPreviewSize = 3

// NotificationService persists in-app notifications and fans them out over Redis.
type NotificationService interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
	List(ctx context.Context, userID uint, page, pageSize int) (dto.NotificationListResponse, error)
	Unread(ctx context.Context, userID uint) (dto.NotificationUnreadResponse, error)
	MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
}

type notificationService struct {
	repo      repository.NotificationRepository
	redis     *redis.Client
	channel   string
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
}

type notificationEvent struct {
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

// NewNotificationService constructs a notification service. A nil Redis client
// disables fan-out.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	channel := ""
	if redisClient != nil && channelBase != "" {
		channel = channelBase + ":notifications"
	}

	return &notificationService{
		repo:      repo,
		redis:     redisClient,
		channel:   channel,
		validator: validate,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/notification"),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	cleanTitle := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	cleanMessage := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if cleanMessage == "" || cleanTitle == "" {
		return dto.NotificationResponse{}, errors.New("notification empty after sanitization")
	}

	ctx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(payload.UserID)),
		attribute.String("notification.type", payload.Type),
	))
	defer span.End()

	model := models.Notification{
		UserID:  payload.UserID,
		Title:   cleanTitle,
		Type:    strings.ToLower(strings.TrimSpace(payload.Type)),
		Message: cleanMessage,
		Status:  models.NotificationStatusUnread,
		Channel: models.NotificationChannelInApp,
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "notification_persist_failed")
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model)
	if err := s.fanOut(ctx, response); err != nil {
		s.logger.Warn().Err(err).Uint("notification_id", model.ID).Msg("failed to publish notification to redis")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(response.Type).Inc()
	return response, nil
}

func (s *notificationService) fanOut(ctx context.Context, notification dto.NotificationResponse) error {
	if s.redis == nil || s.channel == "" {
		return nil
	}

	payload, err := json.Marshal(notificationEvent{Notification: notification, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	return s.redis.Publish(ctx, s.channel, payload).Err()
}

func (s *notificationService) List(ctx context.Context, userID uint, page, pageSize int) (dto.NotificationListResponse, error) {
	if userID == 0 {
		return dto.NotificationListResponse{}, ErrForbidden
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := s.repo.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	return dto.NotificationListResponse{
		Items:      dto.NewNotificationResponseSlice(items),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *notificationService) Unread(ctx context.Context, userID uint) (dto.NotificationUnreadResponse, error) {
	if userID == 0 {
		return dto.NotificationUnreadResponse{}, ErrForbidden
	}

	items, total, err := s.repo.LatestUnread(ctx, userID, unreadPreviewSize)
	if err != nil {
		return dto.NotificationUnreadResponse{}, err
	}

	return dto.NotificationUnreadResponse{
		UnreadCount:   total,
		Notifications: dto.NewNotificationResponseSlice(items),
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(userID)),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, ErrForbidden
	}
	return s.repo.MarkAllRead(ctx, userID)
}
