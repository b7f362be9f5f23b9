package sweep

import (
	"context"
	"time"

	"github.com/wardenhq/warden/internal/setup"
	"github.com/wardenhq/warden/internal/worker/core"
	"go.uber.org/zap"
)

// GroupWorker keeps the in-memory group snapshots fresh.
type GroupWorker struct {
	app      *setup.App
	reporter *core.StatusReporter
	logger   *zap.Logger
}

// NewGroupWorker creates a new group refresh worker.
func NewGroupWorker(app *setup.App, logger *zap.Logger) *GroupWorker {
	return &GroupWorker{
		app:      app,
		reporter: core.NewStatusReporter(app.StatusClient, "group_refresh", logger),
		logger:   logger.Named("group_refresh"),
	}
}

// Start begins the group refresh worker's main loop. The first refresh runs
// immediately so grant decisions never operate on an empty cache.
func (w *GroupWorker) Start(ctx context.Context) {
	w.logger.Info("Group refresh worker started", zap.String("workerID", w.reporter.GetWorkerID()))
	w.reporter.Start(ctx)

	defer w.reporter.Stop()

	interval := time.Duration(w.app.Config.Worker.GroupRefreshMinutes) * time.Minute

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		w.refresh(ctx)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (w *GroupWorker) refresh(ctx context.Context) {
	w.reporter.UpdateStatus("Refreshing group snapshots", 0)

	if err := w.app.GroupCache.RefreshAll(ctx); err != nil {
		w.logger.Error("Failed to refresh group snapshots", zap.Error(err))
		w.reporter.SetHealthy(false)

		return
	}

	w.reporter.SetHealthy(true)
	w.reporter.UpdateStatus("Idle", 100)
	w.logger.Debug("Refreshed group snapshots")
}
