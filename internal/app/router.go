package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leadcapture/internal/admin"
	"leadcapture/internal/lead/handler"
	"leadcapture/internal/platform/middleware"
	"leadcapture/internal/ratelimit"
	"leadcapture/pkg/platform/httputil"
)

// Router builds the HTTP surface. gatherer serves /metrics when non-nil.
func (a *App) Router(gatherer prometheus.Gatherer) http.Handler {
	tokens := admin.NewTokenService(a.Config.Admin.JWTSigningKey)
	adminSvc := admin.NewService(a.Config.Admin.Secret, tokens, a.Config.Admin.SessionTTL, a.Logger)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(a.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(a.Logger, a.Metrics))

	r.Get("/healthz", a.handleHealth)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	limits := ratelimit.NewMiddleware(a.Limiter, a.Logger,
		ratelimit.WithDisabled(!a.Config.RateLimit.Enabled),
		ratelimit.WithMetrics(a.Metrics),
	)
	r.Group(func(r chi.Router) {
		r.Use(limits.RateLimit(ratelimit.ClassLogin))
		admin.NewHandler(adminSvc, a.Logger).Register(r)
	})
	handler.New(a.Intake, a.ExitIntent, a.Reconciler, tokens, a.Logger).
		WithThrottle(limits.RateLimit(ratelimit.ClassCapture)).
		Register(r)
	return r
}

// handleHealth reports the storage backend's reachability. Remote endpoints
// are not probed: the service keeps capturing leads without them.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.storageHealth != nil {
		if err := a.storageHealth(r.Context()); err != nil {
			a.Logger.ErrorContext(r.Context(), "storage health check failed",
				"driver", a.Config.Storage.Driver,
				"error", err,
			)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "storage": a.Config.Storage.Driver})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "storage": a.Config.Storage.Driver})
}
