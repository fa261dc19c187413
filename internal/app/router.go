package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retrouvio/retrouvio/internal/actors"
	"github.com/retrouvio/retrouvio/internal/notify"
	"github.com/retrouvio/retrouvio/internal/observability"
	"github.com/retrouvio/retrouvio/internal/perm"
	"github.com/retrouvio/retrouvio/internal/platform/httpx"
	"github.com/retrouvio/retrouvio/internal/presence"
	"github.com/retrouvio/retrouvio/internal/shared"
	"github.com/retrouvio/retrouvio/internal/validation"
	"github.com/retrouvio/retrouvio/internal/ws"
	"github.com/retrouvio/retrouvio/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	Pool                 *pgxpool.Pool
	Metrics              *observability.Metrics
	Identity             shared.IdentityLoader
	PermissionsHandler   *perm.Handler
	ActionsHandler       *validation.Handler
	NotificationsHandler *notify.Handler
	PresenceHandler      *presence.Handler
	ActorsHandler        *actors.Handler
	JobsHandler          *jobs.Handler
	WSHandler            *ws.Handler
}

// NewRouter constructs the chi.Router with Retrouvio defaults. The websocket
// endpoint lives outside the request-timeout chain so long-lived connections
// are not cut down by it.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Group(func(gr chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:  params.Logger,
			Config:  params.Config,
			Metrics: params.Metrics,
		}) {
			gr.Use(mw)
		}

		gr.Get("/healthz", healthHandler(params.Pool))
		if params.Metrics != nil {
			gr.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
		}

		gr.Route("/api/v1", func(api chi.Router) {
			api.Use(params.Identity.Middleware)
			params.PermissionsHandler.MountRoutes(api)
			params.ActionsHandler.MountRoutes(api)
			params.NotificationsHandler.MountRoutes(api)
			params.PresenceHandler.MountRoutes(api)
			params.ActorsHandler.MountRoutes(api)
			if params.JobsHandler != nil {
				params.JobsHandler.MountRoutes(api)
			}
		})
	})

	r.Group(func(gr chi.Router) {
		gr.Use(chimw.RealIP, chimw.RequestID, chimw.Recoverer)
		gr.Use(params.Identity.Middleware)
		gr.Method(http.MethodGet, "/ws", params.WSHandler)
	})

	return r
}

func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "database unreachable")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
