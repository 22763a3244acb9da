package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/loveshotsmedia/l3arn-updated/app"
	"github.com/loveshotsmedia/l3arn-updated/internal/rbac"
	"github.com/loveshotsmedia/l3arn-updated/middleware"
	"github.com/loveshotsmedia/l3arn-updated/utils"
)

const requestTimeout = 60 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.Trace(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			middleware.TenantIDHeader, middleware.TraceIDHeader,
		},
		ExposedHeaders:   []string{middleware.TraceIDHeader, middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/health/ready", deps.HealthHandler.HandleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/ping", deps.HealthHandler.HandlePing)

		// Any member of the resolved tenant
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/me", deps.UserHandler.HandleMe)
		})

		// Audit logs (require admin role)
		r.Route("/audit", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireRole(rbac.RoleAdmin))
			r.Get("/logs", deps.AuditHandler.HandleList)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
