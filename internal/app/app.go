// Package app wires the configuration into a running trader: storage,
// caches, exchange transport, notification channels, and the per-instrument
// pipeline systems, started according to the configured operating mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivmartynov/ladderbot/internal/config"
)

// runLockTTL bounds how long a crashed trader keeps the account locked.
const runLockTTL = 5 * time.Minute

// App is the root application object.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the background goroutines, and blocks
// until the context is canceled or a fatal error occurs. Cleanup runs on
// return.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	defer cleanup()

	// A live account tolerates exactly one trader. Paper mode touches
	// nothing shared, so it skips the lock.
	if deps.Lock != nil {
		unlock, err := deps.Lock.Acquire(ctx, "trader", runLockTTL)
		if err != nil {
			return fmt.Errorf("app: acquire run lock: %w", err)
		}
		defer unlock()
	}

	orchestrator, err := a.buildOrchestrator(ctx, deps)
	if err != nil {
		return fmt.Errorf("app: build trader: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return deps.Venue.Run(ctx)
	})
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}
	g.Go(func() error {
		return orchestrator.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
