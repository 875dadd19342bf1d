package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/scanform-backend/api/routes"
	"github.com/angelmondragon/scanform-backend/internal/metastore"
	"github.com/angelmondragon/scanform-backend/internal/orders"
	"github.com/angelmondragon/scanform-backend/internal/scanform"
	"github.com/angelmondragon/scanform-backend/pkg/config"
	"github.com/angelmondragon/scanform-backend/pkg/connect"
	"github.com/angelmondragon/scanform-backend/pkg/db"
	"github.com/angelmondragon/scanform-backend/pkg/logger"
	"github.com/angelmondragon/scanform-backend/pkg/metrics"
	"github.com/angelmondragon/scanform-backend/pkg/migrate"
	"github.com/angelmondragon/scanform-backend/pkg/redis"
)

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
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	deps := routes.Deps{DB: dbClient}
	var locker scanform.Locker
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		deps.Redis = redisClient
		deps.Idempotency = redisClient
		redisLocker, err := scanform.NewRedisLocker(redisClient, cfg.ScanForm.LockTTL, 0)
		if err != nil {
			logg.Error(context.Background(), "failed to create order locker", err)
			os.Exit(1)
		}
		locker = redisLocker
	} else {
		logg.Warn(context.Background(), "redis not configured; using in-process order locks")
	}

	var remote scanform.Remote
	if cfg.Connect.Enabled() {
		client, err := connect.NewClient(cfg.Connect)
		if err != nil {
			logg.Error(context.Background(), "failed to create scan form api client", err)
			os.Exit(1)
		}
		remote = client
	} else {
		logg.Warn(context.Background(), "scan form api not configured; create is unavailable")
	}

	fixedMinDate, err := cfg.ScanForm.FixedMinShipDate()
	if err != nil {
		logg.Error(context.Background(), "invalid minimum ship date", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	scanFormMetrics := metrics.NewScanFormMetrics(registry)
	deps.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	scanFormService, err := scanform.NewService(scanform.ServiceParams{
		Store:             metastore.NewRepository(dbClient.DB()),
		Orders:            orders.NewRepository(dbClient.DB()),
		Remote:            remote,
		Locker:            locker,
		Logger:            logg,
		Metrics:           scanFormMetrics,
		Carrier:           cfg.ScanForm.Carrier,
		MinShipDate:       fixedMinDate,
		MinShipDateOffset: cfg.ScanForm.MinShipDateOffset,
		HistoryPerPage:    cfg.ScanForm.HistoryPerPage,
		HistoryMaxPerPage: cfg.ScanForm.HistoryMaxPerPage,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scan form service", err)
		os.Exit(1)
	}
	deps.ScanForms = scanFormService

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":              cfg.App.Env,
		"addr":             addr,
		"scanform_enabled": cfg.FeatureFlags.ScanFormEnabled,
		"redis_enabled":    cfg.Redis.Enabled(),
		"connect_enabled":  cfg.Connect.Enabled(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, deps),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
