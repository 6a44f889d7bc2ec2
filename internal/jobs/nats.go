package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const defaultQueueGroup = "gema-assessment-workers"

// NATSQueue publishes jobs to "<prefix>.<type>".
type NATSQueue struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSQueue constructs a publisher on conn.
func NewNATSQueue(conn *nats.Conn, prefix string) *NATSQueue {
	return &NATSQueue{conn: conn, prefix: strings.Trim(prefix, ".")}
}

// Subject returns the subject a job type is published on.
func (q *NATSQueue) Subject(t Type) string {
	return subjectFor(q.prefix, t)
}

// Enqueue publishes the job. Delivery is at-most-once.
func (q *NATSQueue) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.conn.Publish(q.Subject(job.Type), data); err != nil {
		return fmt.Errorf("publish job %s: %w", job.ID, err)
	}
	return nil
}

func subjectFor(prefix string, t Type) string {
	return prefix + "." + string(t)
}

// Worker consumes jobs from NATS as part of a queue group so each job is
// handled by a single replica.
type Worker struct {
	conn       *nats.Conn
	prefix     string
	group      string
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// NewWorker constructs a worker subscribed to every job under prefix.
func NewWorker(conn *nats.Conn, prefix string, dispatcher *Dispatcher, logger zerolog.Logger) *Worker {
	return &Worker{
		conn:       conn,
		prefix:     strings.Trim(prefix, "."),
		group:      defaultQueueGroup,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "job_worker").Logger(),
	}
}

// Start subscribes and returns. The subscription drains when ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	subject := w.prefix + ".>"
	sub, err := w.conn.QueueSubscribe(subject, w.group, func(msg *nats.Msg) {
		w.handleMessage(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}

	w.logger.Info().Str("subject", subject).Str("queue_group", w.group).Msg("job worker started")

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			w.logger.Warn().Err(err).Msg("failed to drain job subscription")
		}
	}()

	return nil
}

func (w *Worker) handleMessage(ctx context.Context, data []byte) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		w.logger.Warn().Err(err).Msg("invalid job payload")
		return
	}
	_ = w.dispatcher.Dispatch(ctx, job)
}
