package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// IdempotencyCleanupSchedule runs the cleanup hourly.
	IdempotencyCleanupSchedule = "5 * * * *"
	// IdempotencyRetention is how long a claimed key blocks replays.
	IdempotencyRetention = 24 * time.Hour
)

// IdempotencyCleaner removes keys older than retention.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// IdempotencyCleanupHandler returns the handler for TaskIdempotencyCleanup.
func IdempotencyCleanupHandler(cleaner IdempotencyCleaner, retention time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		removed, err := cleaner.Cleanup(ctx, retention)
		if err != nil {
			logger.Error("idempotency cleanup", slog.Any("error", err))
			return err
		}
		logger.Info("idempotency cleanup", slog.Int64("removed", removed))
		return nil
	}
}
