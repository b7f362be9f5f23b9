// Package tasks runs fire-and-forget background work. Callers hand off a unit
// of work and return immediately; failures and panics are captured by the
// error reporter instead of reaching the originating request.
package tasks

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/wardenhq/warden/internal/report"
	"go.uber.org/zap"
)

// Runner executes background tasks on a shared pool.
type Runner struct {
	wg       conc.WaitGroup
	reporter report.Reporter
	logger   *zap.Logger
}

// NewRunner creates a task runner.
func NewRunner(reporter report.Reporter, logger *zap.Logger) *Runner {
	return &Runner{
		reporter: reporter,
		logger:   logger.Named("tasks"),
	}
}

// Go schedules fn to run in the background. The task's error or panic is
// reported under the given name; nothing is returned to the caller.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Go(func() {
		var err error

		recovered := panics.Try(func() {
			err = fn(context.Background())
		})

		if recovered != nil {
			r.reporter.Report(name, fmt.Errorf("task panicked: %v", recovered.Value))
			return
		}

		if err != nil {
			r.reporter.Report(name, err)
			return
		}

		r.logger.Debug("Task completed", zap.String("task", name))
	})
}

// Wait blocks until all scheduled tasks finish. Used during shutdown and in
// tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}
