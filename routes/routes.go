package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imfrisiv/mail-backend/app"
	"github.com/imfrisiv/mail-backend/handlers"
	"github.com/imfrisiv/mail-backend/middleware"
	"github.com/imfrisiv/mail-backend/services"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger.Named("http"), deps.Metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout(deps)))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{deps.Config.Server.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.Compose, app.Version, deps.Config.Environment, deps.Logger)
	composer := handlers.NewComposeHandler(deps.Compose, deps.Logger.Named("compose"))

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/compose", composer.HandleCompose)

		// API v1 routes
		r.Route("/v1", func(r chi.Router) {
			r.Get("/status", health.HandleStatus)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		err := services.NewDomainError(services.ErrorTypeNotFound, "endpoint not found", nil)
		err.Details["path"] = r.URL.Path
		handlers.HandleServiceError(w, err, deps.Logger)
	})

	return r
}

const minRequestTimeout = 30 * time.Second

// requestTimeout leaves room for the compose chain to finish first
func requestTimeout(deps *app.Dependencies) time.Duration {
	return max(deps.ComposeDeadline()+5*time.Second, minRequestTimeout)
}
