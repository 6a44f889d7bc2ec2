package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/observability"
)

// Handler processes a single job.
type Handler func(ctx context.Context, job Job) error

// Dispatcher routes jobs to the handler registered for their type.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Type]Handler
	logger   zerolog.Logger
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Type]Handler),
		logger:   logger.With().Str("component", "job_dispatcher").Logger(),
	}
}

// Handle registers h for t, replacing any previous handler.
func (d *Dispatcher) Handle(t Type, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = h
}

// Dispatch runs the handler for job.Type.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) error {
	d.mu.RLock()
	handler, ok := d.handlers[job.Type]
	d.mu.RUnlock()

	if !ok {
		observability.JobsProcessed().WithLabelValues(string(job.Type), "unknown").Inc()
		return fmt.Errorf("%w: %s", ErrUnknownType, job.Type)
	}

	if job.CorrelationID != "" && observability.CorrelationIDFromContext(ctx) == "" {
		ctx = observability.WithCorrelationID(ctx, job.CorrelationID)
	}

	start := time.Now()
	err := handler(ctx, job)
	logger := d.logger.With().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Str("correlation_id", job.CorrelationID).
		Dur("duration", time.Since(start)).
		Logger()
	if err != nil {
		observability.JobsProcessed().WithLabelValues(string(job.Type), "error").Inc()
		logger.Error().Err(err).Msg("job failed")
		return err
	}

	observability.JobsProcessed().WithLabelValues(string(job.Type), "ok").Inc()
	logger.Debug().Msg("job processed")
	return nil
}

// InlineQueue runs jobs synchronously on the caller's goroutine. It is used
// when no broker is configured.
type InlineQueue struct {
	dispatcher *Dispatcher
}

// NewInlineQueue wraps a dispatcher as an Enqueuer.
func NewInlineQueue(dispatcher *Dispatcher) *InlineQueue {
	return &InlineQueue{dispatcher: dispatcher}
}

// Enqueue dispatches the job immediately.
func (q *InlineQueue) Enqueue(ctx context.Context, job Job) error {
	return q.dispatcher.Dispatch(ctx, job)
}
