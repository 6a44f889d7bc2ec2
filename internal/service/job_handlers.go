package service

import (
	"context"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/jobs"
)

// RegisterJobHandlers binds the background job types to their services.
func RegisterJobHandlers(dispatcher *jobs.Dispatcher, reports ReportService, notifications NotificationService) {
	dispatcher.Handle(jobs.TypeReportGenerate, func(ctx context.Context, job jobs.Job) error {
		var payload jobs.ReportPayload
		if err := job.Decode(&payload); err != nil {
			return err
		}
		_, err := reports.Generate(ctx, payload.SubmissionID)
		return err
	})

	dispatcher.Handle(jobs.TypeNotificationSend, func(ctx context.Context, job jobs.Job) error {
		var payload jobs.NotificationPayload
		if err := job.Decode(&payload); err != nil {
			return err
		}
		_, err := notifications.Publish(ctx, dto.NotificationCreateRequest{
			UserID:  payload.UserID,
			Title:   payload.Title,
			Type:    payload.Type,
			Message: payload.Message,
		})
		return err
	})
}
