package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/wardenhq/warden/internal/setup"
	"github.com/wardenhq/warden/internal/worker/sweep"
	"go.uber.org/zap"
)

const (
	// TrustWorker recomputes stale trust scores.
	TrustWorker = "trust"

	// GroupWorker keeps group snapshots fresh.
	GroupWorker = "groups"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "worker",
		Usage: "Start a warden background worker",
		Commands: []*cli.Command{
			{
				Name:  TrustWorker,
				Usage: "Start the daily trust sweep worker",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runWorkers(ctx, TrustWorker)
				},
			},
			{
				Name:  GroupWorker,
				Usage: "Start the group snapshot refresh worker",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runWorkers(ctx, GroupWorker)
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runWorkers initializes the application and runs the selected worker.
func runWorkers(ctx context.Context, workerType string) error {
	app, err := setup.InitializeApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	logger := app.Logger.Named("worker")

	var w interface{ Start(ctx context.Context) }

	switch workerType {
	case TrustWorker:
		w = sweep.NewTrustWorker(app, logger)
	case GroupWorker:
		w = sweep.NewGroupWorker(app, logger)
	default:
		return fmt.Errorf("invalid worker type: %s", workerType)
	}

	runWorker(ctx, w, logger)

	return nil
}

// runWorker runs a single worker in a loop with panic recovery.
func runWorker(ctx context.Context, w interface{ Start(ctx context.Context) }, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Context cancelled, stopping worker")
			return
		default:
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("Worker execution failed",
							zap.String("worker_type", fmt.Sprintf("%T", w)),
							zap.Any("panic", r),
						)
						logger.Info("Restarting worker in 5 seconds...")
						time.Sleep(5 * time.Second)
					}
				}()

				logger.Info("Starting worker")
				w.Start(ctx)
			}()
		}
	}
}
