// README: Entry point; loads config, wires stores and services, serves the admin API until SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"tripbench/internal/ai"
	"tripbench/internal/config"
	httptransport "tripbench/internal/http"
	"tripbench/internal/infra"
	"tripbench/internal/maps"
	"tripbench/internal/modules/benchmark"
	"tripbench/internal/modules/preferences"
	"tripbench/internal/modules/telemetry"
	"tripbench/internal/modules/trip"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	if err := run(); err != nil {
		slog.Error("tripbench-api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		return errors.New("TRIPBENCH_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return err
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	var cache telemetry.Cache
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		cache = telemetry.NewRedisCache(rdb)
	}

	client, err := ai.NewClient(ctx, cfg.Providers.ClientConfig(), cfg.Catalog)
	if err != nil {
		return err
	}
	defer client.Close()

	opts := benchmark.Options{
		ProviderTimeout: cfg.Providers.Timeout,
		MaxOutputTokens: cfg.Providers.MaxOutputTokens,
	}
	if cfg.Maps.APIKey != "" {
		geo, err := maps.NewService(cfg.Maps.APIKey)
		if err != nil {
			return err
		}
		opts.Checker = maps.NewChecker(geo, geo)
	}

	telemetrySvc := telemetry.NewService(telemetry.NewStore(dbPool), cache, cfg.Telemetry.CacheTTL)
	benchSvc := benchmark.NewService(benchmark.NewStore(dbPool), client, trip.NewStore(dbPool), telemetrySvc, opts)
	prefsSvc := preferences.NewService(preferences.NewStore(dbPool), cfg.Catalog)

	gin.SetMode(gin.ReleaseMode)
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Verifier:    verifier,
		Benchmark:   benchSvc,
		Preferences: prefsSvc,
		Telemetry:   telemetrySvc,
		Async:       cfg.Bench.Async,
	})

	err = httptransport.NewServer(cfg.HTTP.Addr, router).Run(ctx)
	// Background batches finish their sweep before the pool closes.
	benchSvc.Wait()
	return err
}
