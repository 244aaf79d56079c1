// Command doorpasses runs the DoorPasses authorization API server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/doorpasses/platform/pkg/admin"
	"github.com/doorpasses/platform/pkg/api"
	"github.com/doorpasses/platform/pkg/audit"
	"github.com/doorpasses/platform/pkg/auth"
	"github.com/doorpasses/platform/pkg/config"
	"github.com/doorpasses/platform/pkg/observability"
	"github.com/doorpasses/platform/pkg/orgs"
	"github.com/doorpasses/platform/pkg/storage/postgres"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "doorpasses: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	users := auth.NewPostgresUserStore(db)

	var sessions auth.Store
	var redisClient *redis.Client
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		store, err := auth.NewRedisStore(cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		sessions = store
		redisClient = store.Client()
		logger.Info("Using Redis session backend")
	default:
		sessions = auth.NewPostgresStore(db)
		logger.Info("Using Postgres session backend")
	}

	var onHit, onMiss func()
	if metrics != nil {
		onHit = metrics.BanCacheHitsTotal.Inc
		onMiss = metrics.BanCacheMissesTotal.Inc
	}
	bans := auth.NewBanCache(users, cfg.Session.BanCacheLen, cfg.Session.BanCacheTTL, onHit, onMiss)

	orgService := orgs.NewPostgresService(db)

	auditor, err := audit.NewDBLogger(db)
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}

	adminService := admin.NewService(db, users, sessions, orgService, auditor,
		bans, logger, metrics, cfg.Session.TTL)

	server := api.NewServer(cfg, api.Deps{
		DB:       db,
		Redis:    redisClient,
		Sessions: sessions,
		Users:    users,
		Bans:     bans,
		Orgs:     orgService,
		Admin:    adminService,
		Audit:    audit.NewDBStore(db),
		Logger:   logger,
		Metrics:  metrics,
	})

	shutdown := observability.NewShutdownManager(logger, nil, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(server.Shutdown)
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(otelProviders.Shutdown)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	done := make(chan error, 1)
	go func() {
		done <- shutdown.WaitForShutdown()
	}()

	select {
	case err := <-errCh:
		return err
	case err := <-done:
		return err
	}
}
