// Package jobs moves post-commit side effects (report generation and learner
// notifications) off the request path.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/gema-assessment-api/internal/observability"
)

// Type names a job kind. It doubles as the last segments of the broker subject.
type Type string

const (
	// TypeReportGenerate rebuilds and caches a submission report.
	TypeReportGenerate Type = "report.generate"
	// TypeNotificationSend delivers a notification to a user.
	TypeNotificationSend Type = "notification.send"
)

// ErrUnknownType is returned when no handler is registered for a job type.
var ErrUnknownType = errors.New("unknown job type")

// Job is the envelope published to the queue.
type Job struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	// CorrelationID ties the job back to the request that produced it.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ReportPayload identifies the submission whose report should be generated.
type ReportPayload struct {
	SubmissionID uint `json:"submission_id"`
}

// NotificationPayload is the message delivered to a user.
type NotificationPayload struct {
	UserID  uint   `json:"user_id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// New builds a job with a fresh id.
func New(t Type, payload interface{}) (Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Job{
		ID:         uuid.NewString(),
		Type:       t,
		Payload:    data,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the job payload into v.
func (j Job) Decode(v interface{}) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

// Enqueuer accepts jobs for asynchronous processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// EnqueueReport is a shorthand for enqueueing a report job.
func EnqueueReport(ctx context.Context, queue Enqueuer, submissionID uint) error {
	job, err := New(TypeReportGenerate, ReportPayload{SubmissionID: submissionID})
	if err != nil {
		return err
	}
	job.CorrelationID = observability.CorrelationIDFromContext(ctx)
	return queue.Enqueue(ctx, job)
}

// EnqueueNotification is a shorthand for enqueueing a notification job.
func EnqueueNotification(ctx context.Context, queue Enqueuer, payload NotificationPayload) error {
	job, err := New(TypeNotificationSend, payload)
	if err != nil {
		return err
	}
	job.CorrelationID = observability.CorrelationIDFromContext(ctx)
	return queue.Enqueue(ctx, job)
}
