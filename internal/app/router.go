package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kasirku/kasirku/internal/auth"
	"github.com/kasirku/kasirku/internal/gate"
	"github.com/kasirku/kasirku/internal/observability"
	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/products"
	"github.com/kasirku/kasirku/internal/rbac"
	"github.com/kasirku/kasirku/internal/reports"
	"github.com/kasirku/kasirku/internal/roles"
	"github.com/kasirku/kasirku/internal/sales"
	"github.com/kasirku/kasirku/internal/settings"
	"github.com/kasirku/kasirku/internal/shared"
	"github.com/kasirku/kasirku/internal/users"
	"github.com/kasirku/kasirku/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Gate    *gate.Gate
	Metrics *observability.Metrics
	RBAC    rbac.Middleware
	// Ready reports whether backing stores are reachable. Optional.
	Ready func(context.Context) error

	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	ProductsHandler    *products.Handler
	SalesHandler       *sales.Handler
	ReportsHandler     *reports.Handler
	SettingsHandler    *settings.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobsHandler        *jobs.Handler
}

// GateConfig returns the edge gate rules for cfg: the frontend's public
// pages plus the health and metrics endpoints.
func GateConfig(cfg *Config) gate.Config {
	gc := gate.DefaultConfig()
	gc.PublicRoutes = append(gc.PublicRoutes, "/healthz", "/metrics")
	if cfg != nil && cfg.SessionCookie != "" {
		gc.CookieName = cfg.SessionCookie
	}
	return gc
}

// NewRouter constructs the chi.Router with kasirku defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Gate:    params.Gate,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			if err := params.Ready(r.Context()); err != nil {
				logger.Warn("readiness check failed", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{
			"app":    "kasirku",
			"login":  "/auth/login",
			"signup": "/auth/signup",
		})
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountPages)
	}

	r.With(params.RBAC.RequireSession).Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		p, _ := shared.PrincipalFromContext(r.Context())
		httpx.JSON(w, http.StatusOK, map[string]any{
			"user": map[string]string{
				"id":    p.UserID,
				"name":  p.Name,
				"email": p.Email,
				"role":  p.Role.String(),
			},
			"permissions": roles.PermissionsFor(p.Role),
		})
	})

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", func(r chi.Router) {
				r.Use(AuthRateLimit(params.Config))
				params.AuthHandler.MountRoutes(r)
			})
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.SalesHandler != nil {
			r.Route("/sales", params.SalesHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.SettingsHandler != nil {
			r.Route("/settings", params.SettingsHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBAC.RequireRole(roles.Admin))
				params.JobsHandler.MountRoutes(r)
			})
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
