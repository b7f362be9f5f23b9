// Package sweep contains the periodic background workers.
package sweep

import (
	"context"
	"time"

	"github.com/wardenhq/warden/internal/setup"
	"github.com/wardenhq/warden/internal/trust"
	"github.com/wardenhq/warden/internal/worker/core"
	"go.uber.org/zap"
)

// TrustWorker recomputes stale trust scores once a day.
type TrustWorker struct {
	app      *setup.App
	engine   *trust.Engine
	reporter *core.StatusReporter
	logger   *zap.Logger
}

// NewTrustWorker creates a new trust sweep worker.
func NewTrustWorker(app *setup.App, logger *zap.Logger) *TrustWorker {
	engine := trust.NewEngine(
		app.DB.Model().Users(),
		app.DB.Model().Comments(),
		app.Platform,
		app.Config.Platform.MainGroupID,
		app.Config.Platform.TestGroupID,
		logger,
	)

	return &TrustWorker{
		app:      app,
		engine:   engine,
		reporter: core.NewStatusReporter(app.StatusClient, "trust_sweep", logger),
		logger:   logger.Named("trust_sweep"),
	}
}

// Start begins the trust sweep worker's main loop. Each cycle waits until
// the configured hour, then refreshes every user whose stored score is older
// than the staleness cutoff.
func (w *TrustWorker) Start(ctx context.Context) {
	w.logger.Info("Trust sweep worker started", zap.String("workerID", w.reporter.GetWorkerID()))
	w.reporter.Start(ctx)

	defer w.reporter.Stop()

	for {
		w.reporter.SetHealthy(true)
		w.reporter.UpdateStatus("Waiting for next sweep", 0)

		if !sleepUntil(ctx, nextRunAt(time.Now(), w.app.Config.Worker.TrustSweepHour)) {
			return
		}

		w.runSweep(ctx)
	}
}

// runSweep refreshes all outdated users sequentially. A failed refresh is
// logged and skipped so one bad user cannot stall the sweep.
func (w *TrustWorker) runSweep(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -w.app.Config.Worker.TrustOutdatedDays)

	users, err := w.app.DB.Model().Users().GetOutdatedTrustUsers(ctx, cutoff)
	if err != nil {
		w.logger.Error("Failed to list outdated users", zap.Error(err))
		w.reporter.SetHealthy(false)

		return
	}

	w.logger.Info("Starting trust sweep", zap.Int("users", len(users)))

	for i, userID := range users {
		if ctx.Err() != nil {
			return
		}

		if err := w.engine.Refresh(ctx, userID); err != nil {
			w.logger.Warn("Failed to refresh trust", zap.Uint64("userID", userID), zap.Error(err))
			continue
		}

		if len(users) > 0 {
			w.reporter.UpdateStatus("Refreshing trust", (i+1)*100/len(users))
		}
	}

	w.logger.Info("Trust sweep finished", zap.Int("users", len(users)))
}

// nextRunAt returns the next wall-clock occurrence of the given hour.
func nextRunAt(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

// sleepUntil blocks until the target time or context cancellation. It
// reports false when the context ended first.
func sleepUntil(ctx context.Context, target time.Time) bool {
	timer := time.NewTimer(time.Until(target))
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
