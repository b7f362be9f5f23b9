// Package setup bootstraps application dependencies in the right order.
package setup

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/rueidis"
	"github.com/wardenhq/warden/internal/database"
	"github.com/wardenhq/warden/internal/groupcache"
	"github.com/wardenhq/warden/internal/notify"
	"github.com/wardenhq/warden/internal/platform"
	"github.com/wardenhq/warden/internal/redis"
	"github.com/wardenhq/warden/internal/report"
	"github.com/wardenhq/warden/internal/setup/config"
	"github.com/wardenhq/warden/internal/setup/telemetry"
	"github.com/wardenhq/warden/internal/tasks"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           database.Client
	RedisManager *redis.Manager
	StatusClient rueidis.Client
	Platform     platform.Client
	Reporter     report.Reporter
	Notifier     notify.Sink
	GroupCache   *groupcache.Cache
	Tasks        *tasks.Runner
}

// InitializeApp bootstraps all application dependencies in the correct
// order, ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context) (*App, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Sentry before the logger so the forwarding core has a hub to use.
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			return nil, err
		}
	}

	logger, err := telemetry.NewLogger(cfg.Debug.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, &cfg.PostgreSQL, logger.Named("database"), true)
	if err != nil {
		return nil, err
	}

	redisManager := redis.NewManager(&cfg.Redis, logger)

	eventsClient, err := redisManager.GetClient(redis.EventsDBIndex)
	if err != nil {
		return nil, err
	}

	statusClient, err := redisManager.GetClient(redis.WorkerStatusDBIndex)
	if err != nil {
		return nil, err
	}

	platformClient := platform.NewHTTPClient(&cfg.Platform, logger)
	reporter := report.NewSentryReporter(logger)
	notifier := notify.NewRedisSink(eventsClient, logger)
	groups := groupcache.New(platformClient, db.Model().Groups(), logger)
	runner := tasks.NewRunner(reporter, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		RedisManager: redisManager,
		StatusClient: statusClient,
		Platform:     platformClient,
		Reporter:     reporter,
		Notifier:     notifier,
		GroupCache:   groups,
		Tasks:        runner,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse
// initialization order. Logs but does not fail on cleanup errors.
func (s *App) Cleanup(_ context.Context) {
	s.Tasks.Wait()

	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Redis last so the notifier can still publish during task drain.
	s.RedisManager.Close()
	sentry.Flush(2 * time.Second)
}
