package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chromecollective/marketplace-backend/api/controllers"
	"github.com/chromecollective/marketplace-backend/api/middleware"
	"github.com/chromecollective/marketplace-backend/internal/descriptions"
	"github.com/chromecollective/marketplace-backend/internal/listings"
	"github.com/chromecollective/marketplace-backend/internal/uploads"
	"github.com/chromecollective/marketplace-backend/pkg/config"
	"github.com/chromecollective/marketplace-backend/pkg/logger"
	"github.com/chromecollective/marketplace-backend/pkg/metrics"
	"github.com/chromecollective/marketplace-backend/pkg/ratelimit"
	"github.com/chromecollective/marketplace-backend/pkg/redis"
)

const aiRateLimitMessage = "Too many AI requests, please try again later."

// Dependencies carries everything the HTTP surface is built from. IdempotencyStore and
// Gatherer may be nil; the corresponding features are then skipped.
type Dependencies struct {
	Config           *config.Config
	Logger           *logger.Logger
	Metrics          *metrics.Marketplace
	Gatherer         prometheus.Gatherer
	Health           []controllers.Dependency
	IdempotencyStore redis.IdempotencyStore
	AILimiter        ratelimit.Limiter

	Uploads      uploads.Service
	Listings     listings.Service
	Descriptions descriptions.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	if cfg.App.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.Metrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Health...))
	})

	if cfg.FeatureFlags.Metrics && deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	aiPolicy := middleware.RateLimitPolicy{
		Name:    "ai",
		Window:  cfg.AIRateLimit.Window,
		Message: aiRateLimitMessage,
	}

	writeGuard := func(next http.Handler) http.Handler { return next }
	if cfg.Auth.RequireForWrites {
		writeGuard = middleware.RequireIdentity(logg)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/uploads", func(r chi.Router) {
			r.With(writeGuard).Post("/presign", controllers.UploadPresign(deps.Uploads, logg))
			r.Get("/url/*", controllers.UploadPublicURL(deps.Uploads, logg))
		})

		r.Route("/listings", func(r chi.Router) {
			r.With(chimiddleware.NoCache).Get("/", controllers.ListingList(deps.Listings, logg))
			r.With(writeGuard, middleware.Idempotency(deps.IdempotencyStore, cfg.Idempotency.TTL, logg)).
				Post("/", controllers.ListingCreate(deps.Listings, logg))
			r.Get("/{id}", controllers.ListingGet(deps.Listings, logg))
			r.With(writeGuard).Put("/{id}", controllers.ListingUpdate(deps.Listings, logg))
			r.With(writeGuard).Delete("/{id}", controllers.ListingDelete(deps.Listings, logg))
		})

		r.Route("/ai", func(r chi.Router) {
			r.With(middleware.RateLimit(aiPolicy, deps.AILimiter, deps.Metrics, logg)).
				Post("/describe", controllers.AIDescribe(deps.Descriptions, logg))
		})
	})

	return r
}
