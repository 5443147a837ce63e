package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries access audit events.
	QueueAudit = "audit"
	// TaskAccessAudit persists one access audit event.
	TaskAccessAudit = "access:audit"
)

// NewAccessAuditTask constructs an Asynq task for an audit event. The event
// id doubles as task id so a retried publish is not queued twice.
func NewAccessAuditTask(entry shared.AuditLog) (*asynq.Task, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccessAudit, body,
		asynq.Queue(QueueAudit),
		asynq.TaskID(entry.ID.String()),
		asynq.MaxRetry(10),
	), nil
}

// AuditObserver receives the outcome of every persisted event.
type AuditObserver interface {
	ObserveAudit(err error)
}

// AccessAuditHandler writes queued audit events to durable storage.
type AccessAuditHandler struct {
	recorder shared.AuditRecorder
	observer AuditObserver
	logger   *slog.Logger
}

// NewAccessAuditHandler constructs the handler. observer may be nil.
func NewAccessAuditHandler(recorder shared.AuditRecorder, observer AuditObserver, logger *slog.Logger) *AccessAuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessAuditHandler{recorder: recorder, observer: observer, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (h *AccessAuditHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if h == nil || h.recorder == nil {
		return errors.New("access audit: handler not configured")
	}
	var entry shared.AuditLog
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		h.logger.Error("access audit payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if err := entry.Validate(); err != nil {
		h.logger.Error("access audit payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	err := h.recorder.Record(ctx, entry)
	if h.observer != nil {
		h.observer.ObserveAudit(err)
	}
	if err != nil {
		h.logger.Warn("access audit record", slog.String("id", entry.ID.String()), slog.Any("error", err))
		return err
	}
	return nil
}

// Enqueuer is the subset of *asynq.Client used for publishing.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AuditPublisher implements shared.AuditRecorder by queueing events for
// the worker, keeping request paths free of audit table writes.
type AuditPublisher struct {
	queue Enqueuer
	now   func() time.Time
}

// NewAuditPublisher constructs an AuditPublisher.
func NewAuditPublisher(queue Enqueuer) *AuditPublisher {
	return &AuditPublisher{queue: queue, now: func() time.Time { return time.Now().UTC() }}
}

// Record queues entry, stamping its time of occurrence.
func (p *AuditPublisher) Record(ctx context.Context, entry shared.AuditLog) error {
	if entry.At.IsZero() {
		entry.At = p.now()
	}
	task, err := NewAccessAuditTask(entry)
	if err != nil {
		return err
	}
	_, err = p.queue.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

var _ shared.AuditRecorder = (*AuditPublisher)(nil)
