package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	albnats "github.com/albatross-va/albatross/internal/adapter/nats"
	"github.com/albatross-va/albatross/internal/adapter/otel"
	"github.com/albatross-va/albatross/internal/adapter/postgres"
	"github.com/albatross-va/albatross/internal/config"
	"github.com/albatross-va/albatross/internal/logger"
	"github.com/albatross-va/albatross/internal/projection"
)

// runWorker runs the standalone projection worker: it consumes the
// durable event stream and maintains the Postgres read models.
func runWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(logger.New(cfg.Logging))

	if cfg.EventStore.Backend != "postgres" {
		return fmt.Errorf("the standalone worker requires the postgres backend; the memory backend embeds its worker in the server process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *otel.Metrics
	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, cfg.Logging.Service+"-worker", cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shCtx)
		}()
		if metrics, err = otel.NewMetrics(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	bus, err := albnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer bus.Close()
	slog.Info("projection worker starting",
		"nats", cfg.NATS.URL,
		"queues", []string{cfg.Projection.TenantQueue, cfg.Projection.UserQueue, cfg.Projection.PirepQueue},
	)

	projector := projection.NewProjector(postgres.NewReadModel(pool), bus, metrics)
	worker := projection.NewWorker(bus, projector, cfg.Projection)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("projection worker stopped")
	return bus.Drain()
}
