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

	"github.com/chromecollective/marketplace-backend/api/controllers"
	"github.com/chromecollective/marketplace-backend/api/routes"
	"github.com/chromecollective/marketplace-backend/internal/descriptions"
	"github.com/chromecollective/marketplace-backend/internal/listings"
	"github.com/chromecollective/marketplace-backend/internal/uploads"
	"github.com/chromecollective/marketplace-backend/pkg/config"
	"github.com/chromecollective/marketplace-backend/pkg/db"
	"github.com/chromecollective/marketplace-backend/pkg/env"
	"github.com/chromecollective/marketplace-backend/pkg/logger"
	"github.com/chromecollective/marketplace-backend/pkg/metrics"
	"github.com/chromecollective/marketplace-backend/pkg/migrate"
	"github.com/chromecollective/marketplace-backend/pkg/ollama"
	"github.com/chromecollective/marketplace-backend/pkg/ratelimit"
	"github.com/chromecollective/marketplace-backend/pkg/redis"
	"github.com/chromecollective/marketplace-backend/pkg/storage/minio"
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
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	// redis is optional; without it idempotency is off and the AI limit is per instance
	var (
		redisClient      *redis.Client
		idempotencyStore redis.IdempotencyStore
		redisPinger      controllers.Pinger
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
		idempotencyStore = redisClient
		redisPinger = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; idempotency disabled and ai rate limit is per instance")
	}

	storageClient, err := minio.New(cfg.Storage, logg)
	if err != nil {
		return err
	}

	ollamaClient, err := ollama.New(cfg.AI, &http.Client{})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	marketplaceMetrics := metrics.NewMarketplace(registry)

	uploadService, err := uploads.NewService(storageClient, uploads.Options{
		Expiry:        cfg.Uploads.URLExpiry,
		DefaultPrefix: cfg.Uploads.DefaultPrefix,
		AllowedTypes:  cfg.Uploads.AllowedTypes,
		Metrics:       marketplaceMetrics,
		Logger:        logg,
	})
	if err != nil {
		return err
	}

	listingService, err := listings.NewService(listings.NewRepository(dbClient.DB()), listings.Options{
		TTL:              cfg.Listings.TTL,
		EnforceOwnership: cfg.Listings.EnforceOwnership,
		Metrics:          marketplaceMetrics,
		Logger:           logg,
	})
	if err != nil {
		return err
	}

	descriptionService, err := descriptions.NewService(ollamaClient, descriptions.Options{
		Timeout:     cfg.AI.Timeout,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
		Metrics:     marketplaceMetrics,
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	aiLimiter, err := newAILimiter(cfg.AIRateLimit, redisClient)
	if err != nil {
		return err
	}

	handler := routes.NewRouter(routes.Dependencies{
		Config:   cfg,
		Logger:   logg,
		Metrics:  marketplaceMetrics,
		Gatherer: registry,
		Health: []controllers.Dependency{
			{Name: "database", Pinger: dbClient},
			{Name: "redis", Pinger: redisPinger},
			{Name: "storage", Pinger: storageClient},
			{Name: "ollama", Pinger: ollamaClient, Optional: true},
		},
		IdempotencyStore: idempotencyStore,
		AILimiter:        aiLimiter,
		Uploads:          uploadService,
		Listings:         listingService,
		Descriptions:     descriptionService,
	})

	// PORT is injected by the hosting platform and wins over CHROME_APP_PORT
	addr := ":" + env.Get("PORT", cfg.App.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.App.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.App.WriteTimeout,
	}

	serveCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(serveCtx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(serveCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// newAILimiter shares the quota through redis when available and falls back to an
// in-process token bucket otherwise.
func newAILimiter(cfg config.AIRateLimitConfig, redisClient *redis.Client) (ratelimit.Limiter, error) {
	if cfg.Limit == 0 {
		return nil, nil
	}
	policy := ratelimit.Policy{Limit: cfg.Limit, Window: cfg.Window}
	if redisClient != nil {
		return ratelimit.NewRedis(redisClient, "ai", policy)
	}
	return ratelimit.NewLocal(policy)
}
