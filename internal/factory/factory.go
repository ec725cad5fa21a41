package factory

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/arcade-judge/internal/config"
	"github.com/mcoot/arcade-judge/internal/dependencies/clock"
	"github.com/mcoot/arcade-judge/internal/dependencies/ids"
	"github.com/mcoot/arcade-judge/internal/metrics"
	"github.com/mcoot/arcade-judge/internal/retry"
	"github.com/mcoot/arcade-judge/internal/scheduler"
	"github.com/mcoot/arcade-judge/internal/services/audit"
	"github.com/mcoot/arcade-judge/internal/services/notify"
	"github.com/mcoot/arcade-judge/internal/services/ranking"
	"github.com/mcoot/arcade-judge/internal/services/settlement"
	"github.com/mcoot/arcade-judge/internal/storage"
	"github.com/mcoot/arcade-judge/internal/storage/memory"
	redisstorage "github.com/mcoot/arcade-judge/internal/storage/redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock   clock.Clock
	IDs     ids.Generator
	Metrics *metrics.Metrics

	// Services
	Emitter      *notify.Emitter
	Auditor      *audit.Service
	Distributor  *ranking.Service
	Orchestrator *settlement.Orchestrator
	Runner       *scheduler.Runner
}

// Config holds configuration for the application factory
type Config struct {
	// Settings is the environment configuration; Credentials is required
	Settings config.Config
	// Rewards holds the reward tables (optional)
	// If nil, defaults to config.DefaultRewards()
	Rewards *config.Rewards
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// Clock overrides the wall clock (optional), e.g. for a --now replay
	Clock clock.Clock
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	creds, err := config.ParseCredentials(cfg.Settings.Credentials)
	if err != nil {
		return nil, err
	}

	var store storage.Storage
	switch creds.Backend {
	case config.BackendMemory:
		store = memory.New()
	case config.BackendRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = creds.URL
		redisStore, err := redisstorage.New(redisCfg)
		if err != nil {
			return nil, fmt.Errorf("connect to store: %w", err)
		}
		store = redisStore
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	rewards := config.DefaultRewards()
	if cfg.Rewards != nil {
		rewards = *cfg.Rewards
	}

	return newWithDependencies(store, clk, ids.New(), metrics.New(), cfg.Settings, rewards, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	gen ids.Generator,
	m *metrics.Metrics,
	settings config.Config,
	rewards config.Rewards,
	logger *slog.Logger,
) *App {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = settings.CommitRetries
	if settings.RetryInterval > 0 {
		policy.InitialInterval = settings.RetryInterval
	}

	emitter := notify.New(store, clk, gen, m, logger)
	auditor := audit.New(store, emitter, clk, gen, audit.Config{
		Tolerance: settings.Tolerance,
		SeedGrant: settings.SeedGrant,
		Workers:   settings.Workers,
		Retry:     policy,
	}, m, logger.With(slog.String("component", "audit")))
	distributor := ranking.New(store, emitter, clk, gen, ranking.Config{
		Workers:        settings.Workers,
		ResetBatchSize: storage.MaxBatchWrites,
		Retry:          policy,
	}, m, logger.With(slog.String("component", "ranking")))
	orchestrator := settlement.New(store, auditor, distributor, emitter, clk, settlement.Config{
		UTCOffset:             settings.UTCOffset,
		WeeklyDay:             settings.Weekday(),
		Rewards:               rewards,
		NotificationRetention: settings.NotificationRetention,
	}, m, logger)
	runner := scheduler.NewRunner(orchestrator, m, settings.MetricsTextfile, logger)

	return &App{
		Storage:      store,
		Clock:        clk,
		IDs:          gen,
		Metrics:      m,
		Emitter:      emitter,
		Auditor:      auditor,
		Distributor:  distributor,
		Orchestrator: orchestrator,
		Runner:       runner,
	}
}

// Close releases the store connection
func (a *App) Close() error {
	return a.Storage.Close()
}
