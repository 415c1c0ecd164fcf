package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/config"
	"github.com/example/housing-allocator/internal/logging"
	"github.com/example/housing-allocator/internal/metrics"
	"github.com/example/housing-allocator/internal/persistence/sqlite"
	"github.com/example/housing-allocator/internal/roster"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app is the wired service graph shared by the commands.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *sqlite.Store
	roster   roster.Provider
	registry *prometheus.Registry

	inventory   *application.InventoryService
	ledger      *application.Ledger
	assignments *application.AssignmentService
	autoAssign  *application.AutoAssignService
}

// loadConfig resolves the configuration and applies the command line overrides.
func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	return cfg, nil
}

// openStore opens and migrates the configured database.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sqlite.Store, error) {
	dbConfig := sqlite.DefaultConfig(cfg.Database.Path)
	dbConfig.BusyTimeout = cfg.Database.BusyTimeout
	dbConfig.MaxOpenConns = cfg.Database.MaxOpenConns

	store, err := sqlite.Open(ctx, dbConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return store, nil
}

// newApp loads configuration, opens the store and wires every service. Logs
// go to logOut.
func newApp(ctx context.Context, opts *rootOptions, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var provider roster.Provider = store.Roster()
	if cfg.Roster.File != "" {
		static, err := roster.LoadFile(cfg.Roster.File)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		provider = static
		logger.Info("roster loaded from file", "path", cfg.Roster.File)
	}

	registry := prometheus.NewRegistry()
	var collector application.Metrics = metrics.NewNop()
	if cfg.Metrics.Enabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector = metrics.NewPrometheus(registry, cfg.Metrics.Namespace)
	}

	idGenerator := func() string { return uuid.NewString() }
	now := nowUTC

	ledger := application.NewLedgerWithOptions(store, idGenerator, now, application.LedgerOptions{
		LockWait: cfg.Ledger.LockWait,
		Metrics:  collector,
		Logger:   logger,
	})

	return &app{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		roster:      provider,
		registry:    registry,
		inventory:   application.NewInventoryServiceWithLogger(store, idGenerator, now, logger),
		ledger:      ledger,
		assignments: application.NewAssignmentServiceWithLogger(ledger, provider, logger),
		autoAssign: application.NewAutoAssignServiceWithOptions(store, provider, ledger, idGenerator, now, application.AutoAssignOptions{
			CommitFanOut: cfg.Planner.CommitFanOut,
			JobTTL:       cfg.Planner.JobTTL,
			MaxJobs:      cfg.Planner.MaxJobs,
			Metrics:      collector,
			Logger:       logger,
		}),
	}, nil
}

// Close releases the database.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
