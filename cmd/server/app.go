package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/crewviz/reportd/internal/cache"
	"github.com/crewviz/reportd/internal/config"
	"github.com/crewviz/reportd/internal/platform/logger"
	"github.com/crewviz/reportd/internal/platform/postgres"
	"github.com/crewviz/reportd/internal/platform/results"
	"github.com/crewviz/reportd/internal/ratelimit"
	"github.com/crewviz/reportd/internal/service/report"
	"github.com/crewviz/reportd/internal/worker"
)

// application holds the wired dependencies of the running server.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	db      *sql.DB
	service *report.Service
	results *results.FileStore
	limiter *ratelimit.Limiter
	worker  *worker.Worker
}

// run loads configuration, wires every component, and serves until a
// shutdown signal arrives.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.Int("worker_poll_interval_s", cfg.Worker.PollIntervalSeconds),
		slog.Int("cache_ttl_s", cfg.Cache.DefaultTTLSeconds))

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer app.cleanup()

	app.worker.Start()

	return app.startHTTPServer(ctx, app.setupRouter())
}

// newApplication connects to the database, runs migrations, and builds
// the service graph.
func newApplication(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (*application, error) {
	db, err := setupDatabase(ctx, cfg, appLogger)
	if err != nil {
		return nil, err
	}

	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	resultStore, err := results.NewFileStore(cfg.Worker.ResultDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare result directory: %w", err)
	}

	jobStore := postgres.NewJobStore(db)
	presetStore := postgres.NewPresetStore(db)
	fetcher := postgres.NewRowFetcher(db)

	reportCache := cache.New(appLogger)
	viewTTL := time.Duration(cfg.Cache.DefaultTTLSeconds) * time.Second

	svc := report.NewService(db, jobStore, presetStore, fetcher, reportCache, viewTTL, appLogger)

	limiterClasses := make(map[string]ratelimit.ClassConfig, len(cfg.RateLimit))
	for class, rc := range cfg.RateLimit {
		limiterClasses[class] = ratelimit.ClassConfig{
			Capacity:        rc.Capacity,
			RefillPerSecond: rc.RefillPerSecond,
		}
	}

	jobWorker := worker.New(jobStore, fetcher, resultStore, worker.Config{
		PollInterval: time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
	}, appLogger)

	return &application{
		config:  cfg,
		logger:  appLogger,
		db:      db,
		service: svc,
		results: resultStore,
		limiter: ratelimit.New(limiterClasses, appLogger),
		worker:  jobWorker,
	}, nil
}

// setupDatabase opens the connection pool and verifies connectivity.
func setupDatabase(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	appLogger.Info("database connection established")
	return db, nil
}

// cleanup releases resources on shutdown. The worker is stopped first so
// no job is claimed after the pool starts draining.
func (app *application) cleanup() {
	app.worker.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database", slog.String("error", err.Error()))
	}
}
