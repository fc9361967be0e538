package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/kiranahub/kiranahub-backend/api/routes"
	"github.com/kiranahub/kiranahub-backend/internal/catalog"
	"github.com/kiranahub/kiranahub-backend/internal/grouporders"
	"github.com/kiranahub/kiranahub-backend/internal/quotes"
	"github.com/kiranahub/kiranahub-backend/pkg/config"
	"github.com/kiranahub/kiranahub-backend/pkg/db"
	"github.com/kiranahub/kiranahub-backend/pkg/logger"
	"github.com/kiranahub/kiranahub-backend/pkg/metrics"
	"github.com/kiranahub/kiranahub-backend/pkg/migrate"
	"github.com/kiranahub/kiranahub-backend/pkg/outbox"
	"github.com/kiranahub/kiranahub-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	var (
		redisClient *redis.Client
		locker      grouporders.Locker
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(bootCtx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()

		if !cfg.FeatureFlags.DisableOrderLock {
			orderLocker, err := redis.NewLocker(redisClient, cfg.Redis.LockTTL, cfg.Redis.LockBackoff)
			if err != nil {
				return err
			}
			locker = orderLocker
		}
	} else {
		logg.Warn(bootCtx, "redis not configured, idempotency keys and order locks disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}
	quoteSvc, err := quotes.NewService(catalogSvc, metrics.NewQuoteMetrics(registry), logg)
	if err != nil {
		return err
	}
	orderSvc, err := grouporders.NewService(grouporders.ServiceParams{
		Repository:   grouporders.NewRepository(dbClient.DB()),
		Tx:           dbClient,
		Catalog:      catalogSvc,
		Outbox:       outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Locker:       locker,
		Metrics:      metrics.NewGroupOrderMetrics(registry),
		Logger:       logg,
		MaxAttempts:  cfg.Aggregation.MaxAttempts,
		RetryBackoff: cfg.Aggregation.RetryBackoff,
	})
	if err != nil {
		return err
	}

	deps := routes.Dependencies{
		DB:          dbClient,
		Redis:       redisClient,
		Quotes:      quoteSvc,
		GroupOrders: orderSvc,
		Gatherer:    registry,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(bootCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sigCtx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
