package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// TaskCatalogueSync upserts the permission catalogue.
	TaskCatalogueSync = "rbac:catalogue-sync"
	// CatalogueSyncSchedule runs the sync nightly.
	CatalogueSyncSchedule = "15 2 * * *"
)

// CatalogueSyncer upserts every permission of the vocabulary.
type CatalogueSyncer interface {
	SyncCatalogue(ctx context.Context) (int, error)
}

// NewCatalogueSyncTask constructs the sync task.
func NewCatalogueSyncTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogueSync, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// CatalogueSyncHandler returns the handler for TaskCatalogueSync.
func CatalogueSyncHandler(syncer CatalogueSyncer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		n, err := syncer.SyncCatalogue(ctx)
		if err != nil {
			logger.Error("catalogue sync", slog.Any("error", err))
			return err
		}
		logger.Info("catalogue sync", slog.Int("permissions", n))
		return nil
	}
}
