package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	albhttp "github.com/albatross-va/albatross/internal/adapter/http"
	"github.com/albatross-va/albatross/internal/adapter/memstore"
	albnats "github.com/albatross-va/albatross/internal/adapter/nats"
	"github.com/albatross-va/albatross/internal/adapter/natskv"
	"github.com/albatross-va/albatross/internal/adapter/otel"
	"github.com/albatross-va/albatross/internal/adapter/postgres"
	"github.com/albatross-va/albatross/internal/adapter/ristretto"
	"github.com/albatross-va/albatross/internal/adapter/tiered"
	"github.com/albatross-va/albatross/internal/adapter/ws"
	"github.com/albatross-va/albatross/internal/config"
	"github.com/albatross-va/albatross/internal/logger"
	"github.com/albatross-va/albatross/internal/middleware"
	"github.com/albatross-va/albatross/internal/port/eventstore"
	"github.com/albatross-va/albatross/internal/port/readmodel"
	"github.com/albatross-va/albatross/internal/projection"
	"github.com/albatross-va/albatross/internal/service"
)

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(logger.New(cfg.Logging))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"eventstore", cfg.EventStore.Backend,
		"log_level", cfg.Logging.Level,
	)

	// Telemetry
	var metrics *otel.Metrics
	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
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

	// Event store and read models
	var (
		store  eventstore.Store
		reads  readmodel.Store
		pgPing func(r *http.Request) error
	)
	switch cfg.EventStore.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected, migrations applied")
		store = postgres.NewEventStore(pool)
		reads = postgres.NewReadModel(pool)
		pgPing = func(r *http.Request) error { return pool.Ping(r.Context()) }
	case "memory":
		store = memstore.NewEventStore()
		reads = memstore.NewReadModel()
	default:
		return fmt.Errorf("unknown eventstore backend %q", cfg.EventStore.Backend)
	}

	// NATS: durable event stream plus notification channels
	bus, err := albnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats connected", "url", cfg.NATS.URL)

	// Tiered credential cache: in-process ristretto in front of a
	// JetStream KV bucket shared across instances.
	l1, err := ristretto.New(cfg.Auth.L1CacheBytes)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	kv, err := bus.KeyValue(ctx, cfg.Auth.CacheBucket, cfg.Auth.CredentialTTL)
	if err != nil {
		return fmt.Errorf("kv bucket: %w", err)
	}
	credCache := tiered.New(l1, natskv.New(kv), cfg.Auth.L1BackfillTTL)

	// Services
	tenantSvc := service.NewTenantService(store, bus, reads, metrics)
	userSvc := service.NewUserService(store, bus, reads, &cfg.Auth, metrics)
	pirepSvc := service.NewPirepService(store, bus, reads, metrics)
	authSvc := service.NewAuthService(reads, credCache, &cfg.Auth)

	handlers := &albhttp.Handlers{
		Tenants: tenantSvc,
		Users:   userSvc,
		Pireps:  pirepSvc,
		Auth:    authSvc,
		Ready: func(r *http.Request) error {
			if !bus.IsConnected() {
				return fmt.Errorf("nats disconnected")
			}
			if pgPing != nil {
				return pgPing(r)
			}
			return nil
		},
	}
	wsHandler := ws.NewHandler(authSvc, bus, cfg.Realtime, metrics)

	// Router
	rl := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := rl.StartCleanup(time.Minute, 10*time.Minute)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(albhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(albhttp.SecurityHeaders)
	r.Use(albhttp.Logger)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Telemetry.Enabled {
		r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(rl.Handler)
	r.Use(middleware.Auth(authSvc))

	albhttp.MountRoutes(r, handlers, wsHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// The memory backend keeps everything in one process, so the
	// projection worker runs embedded instead of as its own command.
	if cfg.EventStore.Backend == "memory" {
		projector := projection.NewProjector(reads, bus, metrics)
		worker := projection.NewWorker(bus, projector, cfg.Projection)
		g.Go(func() error { return worker.Run(gctx) })
		slog.Info("embedded projection worker started")
	}

	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return bus.Drain()
}
