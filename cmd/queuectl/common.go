package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"queuectl/pkg/audit"
	"queuectl/pkg/clock"
	"queuectl/pkg/config"
	"queuectl/pkg/logger"
	"queuectl/pkg/queue"
	"queuectl/pkg/storage/sqlite"
)

const (
	defaultDBPath     = "queuectl.db"
	defaultConfigPath = "queuectl.json"
	defaultPIDFile    = "queuectl-worker.pid"
)

func dbPathEnv() string {
	if v := os.Getenv("QUEUECTL_DB"); v != "" {
		return v
	}
	return defaultDBPath
}

func configPathEnv() string {
	if v := os.Getenv("QUEUECTL_CONFIG"); v != "" {
		return v
	}
	return defaultConfigPath
}

// app bundles the dependencies every subcommand needs.
type app struct {
	store   *sqlite.Store
	manager *queue.Manager
	cfg     config.Config
}

// openApp loads the config file, opens the SQLite store, and constructs
// a Manager, running the crash-recovery reset exactly once per process.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPathEnv())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := sqlite.Open(dbPathEnv())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	manager, reset, err := queue.New(ctx, queue.Options{
		Store:       store,
		Clock:       clock.Real{},
		Audit:       audit.NewLog(store.DB()),
		BackoffBase: cfg.BackoffBase,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize queue manager: %w", err)
	}
	if reset > 0 {
		logger.Get().Info("reset stuck processing jobs on startup", zap.Int("count", reset))
	}

	return &app{store: store, manager: manager, cfg: cfg}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// fail prints msg to stderr and exits 1. Used by subcommands for
// user-visible failures (spec.md §6: exit code 1 for failure).
func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
