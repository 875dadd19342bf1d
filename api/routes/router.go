package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/scanform-backend/api/controllers"
	"github.com/angelmondragon/scanform-backend/api/controllers/scanforms"
	"github.com/angelmondragon/scanform-backend/api/middleware"
	"github.com/angelmondragon/scanform-backend/internal/scanform"
	"github.com/angelmondragon/scanform-backend/pkg/config"
	"github.com/angelmondragon/scanform-backend/pkg/logger"
	"github.com/angelmondragon/scanform-backend/pkg/redis"
)

// Deps carries the wired collaborators. Nil pingers and a nil idempotency
// store disable the matching checks.
type Deps struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	ScanForms   scanform.Service
	Metrics     http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/scan-form", func(r chi.Router) {
		r.Use(middleware.FeatureGate(cfg.FeatureFlags.ScanFormEnabled, "scan form", logg))

		r.Get("/origins", scanforms.Origins(deps.ScanForms, logg))
		r.Post("/review", scanforms.Review(deps.ScanForms, logg))
		r.With(middleware.Idempotency(deps.Idempotency, middleware.DefaultIdempotencyTTL, logg)).Post("/create", scanforms.Create(deps.ScanForms, logg))
		r.Get("/history", scanforms.History(deps.ScanForms, logg))
		r.Get("/{batchId}/labels", scanforms.Labels(deps.ScanForms, logg))
	})

	return r
}
