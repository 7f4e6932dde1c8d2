// Package app provides the top-level application lifecycle management for the
// market factory. It wires together all dependencies (stores, settings, feed,
// oracle, blob storage) and runs the production planner and the template
// harvester until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Jock20242024/yesno-factory/internal/config"
	"github.com/Jock20242024/yesno-factory/internal/feed"
	"github.com/Jock20242024/yesno-factory/internal/harvester"
	"github.com/Jock20242024/yesno-factory/internal/ledger"
	"github.com/Jock20242024/yesno-factory/internal/match"
	"github.com/Jock20242024/yesno-factory/internal/planner"
	"github.com/Jock20242024/yesno-factory/internal/producer"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, assembles the
// production pipeline, and drives the planner loop until the context is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting market factory",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Bool("archival", a.cfg.S3.Enabled),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	snapshots := feed.NewCache(
		deps.Feed,
		a.cfg.Feed.CacheTTL.Duration,
		a.cfg.Feed.RefreshMaxWait.Duration,
		a.logger.With(slog.String("component", "feed")),
	)
	matcher := match.NewEngine(a.logger.With(slog.String("component", "match")))
	accountant := ledger.NewAccountant(ledger.Config{
		LiquidityAccountID: a.cfg.Ledger.LiquidityAccountID,
		AMMAccountID:       a.cfg.Ledger.AMMAccountID,
		DefaultSeed:        a.cfg.Ledger.DefaultSeed,
		MinSeed:            a.cfg.Ledger.MinSeed,
	}, a.logger.With(slog.String("component", "ledger")))
	breaker := producer.NewCircuitBreaker(
		deps.Templates,
		producer.FailureThreshold,
		a.logger.With(slog.String("component", "breaker")),
	)
	prod := producer.New(
		deps.Templates,
		deps.Instances,
		deps.TxRunner,
		snapshots,
		deps.Feed,
		deps.Oracle,
		matcher,
		accountant,
		breaker,
		a.logger.With(slog.String("component", "producer")),
	)
	loop := planner.New(
		deps.Templates,
		deps.Instances,
		prod,
		breaker,
		deps.Settings,
		deps.Archiver,
		planner.Options{
			Tick:             a.cfg.Planner.Tick.Duration,
			Horizon:          a.cfg.Planner.Horizon.Duration,
			BatchCap:         a.cfg.Planner.BatchCap,
			ArchiveEvery:     a.cfg.Planner.ArchiveEvery.Duration,
			ArchiveRetention: a.cfg.Planner.ArchiveRetention.Duration,
		},
		a.logger.With(slog.String("component", "planner")),
	)

	// The planner and the template harvester run side by side; either one
	// failing terminally brings the whole factory down.
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return loop.Run(ctx) })

	if a.cfg.Harvester.Enabled {
		ingest := harvester.New(
			deps.Catalog,
			deps.Templates,
			a.cfg.Harvester.Every.Duration,
			a.logger.With(slog.String("component", "harvester")),
		)
		group.Go(func() error { return ingest.Run(ctx) })
	} else {
		a.logger.Info("template harvester disabled")
	}

	return group.Wait()
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down market factory")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
