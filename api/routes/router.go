package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/lms-engagements/api/controllers"
	"github.com/angelmondragon/lms-engagements/api/middleware"
	"github.com/angelmondragon/lms-engagements/internal/engagements"
	"github.com/angelmondragon/lms-engagements/pkg/config"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
)

// RedisClient is the slice of pkg/redis the API needs.
type RedisClient interface {
	middleware.ReplayStore
	Ping(ctx context.Context) error
}

// Dependencies carries the services mounted under the admin API. Publisher and
// Metrics are optional.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       RedisClient
	Engagements engagements.Service
	Dispatcher  controllers.EventDispatcher
	Publisher   controllers.EventPublisher
	Syncer      controllers.AwardSyncer
	Metrics     http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadyCheck{Name: "db", Pinger: deps.DB},
			controllers.ReadyCheck{Name: "redis", Pinger: deps.Redis},
		))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireManager(logg))
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}

		r.Route("/engagements", func(r chi.Router) {
			r.Get("/", controllers.EngagementList(deps.Engagements, logg))
			r.Post("/", controllers.EngagementCreate(deps.Engagements, logg))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", controllers.EngagementGet(deps.Engagements, logg))
				r.Put("/", controllers.EngagementUpdate(deps.Engagements, logg))
				r.Delete("/", controllers.EngagementDelete(deps.Engagements, logg))
				r.Post("/trash", controllers.EngagementTrash(deps.Engagements, logg))
				r.Post("/restore", controllers.EngagementRestore(deps.Engagements, logg))
				r.Get("/scheduled", controllers.EngagementScheduled(deps.Engagements, logg))
			})
		})

		r.Post("/events", controllers.EventDispatch(deps.Dispatcher, deps.Publisher, logg))
		r.Post("/templates/{id}/sync", controllers.TemplateSync(deps.Syncer, logg))
		r.Post("/awards/{id}/sync", controllers.AwardSync(deps.Syncer, logg))
	})

	return r
}
