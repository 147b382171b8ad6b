// Package control wires configuration into a running loader application.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/weatherload/internal/core/config"
	"github.com/vietddude/weatherload/internal/health"
	"github.com/vietddude/weatherload/internal/infra/provider"
	redisclient "github.com/vietddude/weatherload/internal/infra/redis"
	"github.com/vietddude/weatherload/internal/infra/storage/memory"
	"github.com/vietddude/weatherload/internal/infra/storage/postgres"
	"github.com/vietddude/weatherload/internal/ingest"
	"github.com/vietddude/weatherload/internal/loader"
	"github.com/vietddude/weatherload/internal/notify"
)

// Options selects optional parts of the application.
type Options struct {
	// DryRun loads into an in-process store instead of PostgreSQL.
	DryRun bool
	// Source replaces the provider client, mainly for tests.
	Source ingest.Source
}

// App is the main application struct holding every initialized dependency.
type App struct {
	cfg       *config.AppConfig
	connector *postgres.Connector
	db        *postgres.DB
	store     *memory.MemoryStorage
	repo      *postgres.WeatherRepo
	redis     *redisclient.Client
	failed    *redisclient.FailedLoadRepo
	runner    *ingest.Runner
	log       *slog.Logger
}

// New creates a new App with all dependencies initialized.
func New(ctx context.Context, cfg *config.AppConfig, opts Options) (*App, error) {
	app := &App{cfg: cfg, log: slog.Default()}

	// 1. Initialize Storage
	var conn loader.Connector
	if cfg.Database.URL != "" && !opts.DryRun {
		var err error
		app.connector, err = postgres.NewConnector(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init loader pool: %w", err)
		}
		app.db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		app.repo = postgres.NewWeatherRepo(app.db)
		conn = app.connector
		app.log.Info("Using PostgreSQL storage")
	} else {
		app.store = memory.NewMemoryStorage()
		app.store.CreateTable(cfg.Tables.Forecast, ingest.ForecastColumns...)
		app.store.CreateTable(cfg.Tables.History, ingest.HistoryColumns...)
		conn = app.store
		app.log.Info("Using Memory storage")
	}

	// 2. Initialize Loader
	loaderOpts := []loader.Option{
		loader.WithRetryPolicy(cfg.RetryPolicy()),
		loader.WithNotifier(notify.New(cfg.Notify)),
	}
	if cfg.Loader.NullRepr != nil {
		loaderOpts = append(loaderOpts, loader.WithNullRepresentation(loader.Float(*cfg.Loader.NullRepr)))
	}
	l := loader.New(conn, loaderOpts...)

	// 3. Initialize Redis
	runnerOpts := []ingest.Option{}
	var lockRefresh time.Duration
	if cfg.Redis.URL != "" && !opts.DryRun {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			app.log.Warn("Failed to connect to Redis, using in-process locks", "error", err)
		} else {
			app.redis = client
			app.failed = redisclient.NewFailedLoadRepo(client)
			runnerOpts = append(runnerOpts,
				ingest.WithLocker(redisLocker{client}),
				ingest.WithProgress(client),
				ingest.WithFailureJournal(app.failed),
			)
			lockRefresh = client.LockTTL() / 3
		}
	}
	if app.repo != nil {
		runnerOpts = append(runnerOpts, ingest.WithLatestReader(app.repo))
	}

	// 4. Initialize Runner
	src := opts.Source
	if src == nil {
		src = provider.NewClient(cfg.Provider, nil)
	}
	app.runner = ingest.NewRunner(ingest.Config{
		ForecastTable: loader.Identifier(cfg.Tables.Forecast),
		HistoryTable:  loader.Identifier(cfg.Tables.History),
		Cities:        cfg.Cities,
		Concurrency:   cfg.Schedule.Concurrency,
		LockRefresh:   lockRefresh,
	}, src, l, runnerOpts...)

	return app, nil
}

// Runner returns the ingest runner.
func (a *App) Runner() *ingest.Runner { return a.runner }

// DB returns the read-side database handle, nil in memory mode.
func (a *App) DB() *postgres.DB { return a.db }

// Repo returns the weather repository, nil in memory mode.
func (a *App) Repo() *postgres.WeatherRepo { return a.repo }

// Store returns the in-process store, nil in PostgreSQL mode.
func (a *App) Store() *memory.MemoryStorage { return a.store }

// FailedLoads returns the failed load journal, nil without Redis.
func (a *App) FailedLoads() *redisclient.FailedLoadRepo { return a.failed }

// Monitor builds the health monitor for the initialized dependencies.
func (a *App) Monitor() *health.Monitor {
	m := health.NewMonitor()
	if a.connector != nil {
		m.AddComponent("postgres", a.connector, true)
	}
	if a.redis != nil {
		m.AddComponent("redis", a.redis, false)
	}
	if a.repo != nil {
		m.WatchHistory(a.repo, loader.Identifier(a.cfg.Tables.History), a.cfg.Cities, 2)
	}
	if a.failed != nil {
		m.WatchFailures(a.failed)
	}
	return m
}

// Serve runs the scheduler and the health server until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	healthServer := health.NewServer(a.Monitor(), a.cfg.Server.Port)
	errCh := make(chan error, 1)

	// Start Health Server
	go func() {
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("health server failed: %w", err)
		}
	}()

	// Start DB Metrics Collector
	if a.connector != nil {
		a.connector.StartMetricsCollector(ctx)
	}

	scheduler := ingest.NewScheduler(a.runner, a.cfg.Schedule)
	if err := scheduler.Start(ctx); err != nil {
		_ = healthServer.Stop(context.WithoutCancel(ctx))
		return err
	}
	a.log.Info("Scheduler started",
		"forecast_interval", a.cfg.Schedule.ForecastInterval,
		"history_at", a.cfg.Schedule.HistoryAt,
		"port", a.cfg.Server.Port,
	)

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	a.log.Info("Stopping scheduler...")
	scheduler.Stop()
	if stopErr := healthServer.Stop(context.WithoutCancel(ctx)); stopErr != nil {
		a.log.Warn("Failed to stop health server", "error", stopErr)
	}
	return err
}

// Close releases every connection.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.connector != nil {
		a.connector.Close()
	}
}

// redisLocker adapts the Redis lock to ingest.Locker.
type redisLocker struct {
	client *redisclient.Client
}

func (l redisLocker) Acquire(ctx context.Context, table string, cityID int64) (ingest.Lease, error) {
	lock, err := l.client.Acquire(ctx, table, cityID)
	if err != nil {
		return nil, err
	}
	return lock, nil
}
