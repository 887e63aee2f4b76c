package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/influencehub-backend/api/controllers"
	escrowcontrollers "github.com/angelmondragon/influencehub-backend/api/controllers/escrows"
	"github.com/angelmondragon/influencehub-backend/api/middleware"
	"github.com/angelmondragon/influencehub-backend/internal/escrow"
	"github.com/angelmondragon/influencehub-backend/internal/fees"
	"github.com/angelmondragon/influencehub-backend/pkg/config"
	"github.com/angelmondragon/influencehub-backend/pkg/db"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	"github.com/angelmondragon/influencehub-backend/pkg/logger"
	"github.com/angelmondragon/influencehub-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	escrowService escrow.Service,
	feeCalculator *fees.Calculator,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["db"] = dbP
	}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Get("/api/v1/fees", controllers.FeeQuote(feeCalculator, logg))

	r.Route("/api/v1/escrows", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if cfg.FeatureFlags.RequireIdempotency && redisClient != nil {
			r.Use(middleware.Idempotency(redisClient, logg))
		}

		r.With(middleware.RequireRole(logg, enums.UserRoleBrand, enums.UserRoleAdmin)).
			Post("/", escrowcontrollers.Create(escrowService, logg))
		r.Route("/{escrowId}", func(r chi.Router) {
			r.Get("/", escrowcontrollers.Status(escrowService, logg))
			r.Post("/fund", escrowcontrollers.Fund(escrowService, logg))
			r.Post("/release", escrowcontrollers.Release(escrowService, logg))
			r.Post("/refund", escrowcontrollers.Refund(escrowService, logg))
			r.Get("/disputes", escrowcontrollers.Disputes(escrowService, logg))
			r.Post("/disputes", escrowcontrollers.OpenDispute(escrowService, logg))
		})
	})

	return r
}
