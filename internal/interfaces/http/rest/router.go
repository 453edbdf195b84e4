// Package rest assembles the HTTP API.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"typegraph-backend/internal/config"
	"typegraph-backend/internal/infrastructure/observability"
	"typegraph-backend/internal/interfaces/http/handlers"
	"typegraph-backend/internal/interfaces/http/rest/middleware"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Types   *handlers.TypeHandler
	Nodes   *handlers.NodeHandler
	Imports *handlers.ImportHandler
	View    *handlers.ViewHandler
	Health  *handlers.HealthHandler
}

// Router creates and configures the HTTP router.
type Router struct {
	handlers Handlers
	server   config.Server
	metrics  config.Metrics
	tracing  config.Tracing
	// collector and tracer may be nil when metrics or tracing are disabled
	collector *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewRouter creates a router.
func NewRouter(h Handlers, cfg *config.Config, collector *observability.Collector, tracer trace.Tracer, logger *zap.Logger) *Router {
	return &Router{
		handlers:  h,
		server:    cfg.Server,
		metrics:   cfg.Metrics,
		tracing:   cfg.Tracing,
		collector: collector,
		tracer:    tracer,
		logger:    logger,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics.Enabled && rt.collector != nil {
		router.Use(observability.MetricsMiddleware(rt.collector))
	}
	if rt.tracing.Enabled && rt.tracer != nil {
		router.Use(observability.TracingMiddleware(rt.tracer))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "traceparent"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID", "Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", rt.handlers.Health.Live())
	router.Get("/ready", rt.handlers.Health.Ready())
	if rt.metrics.Enabled && rt.collector != nil {
		router.Method(http.MethodGet, rt.metrics.Path, rt.collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if rt.server.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(rt.server.RequestTimeout))
		}
		if rt.server.MaxRequestSize > 0 {
			r.Use(chimiddleware.RequestSize(rt.server.MaxRequestSize))
		}
		r.Use(chimiddleware.AllowContentType("application/json"))

		types, nodes := rt.handlers.Types, rt.handlers.Nodes

		r.Route("/types", func(r chi.Router) {
			r.Get("/", types.ListTypes())
			r.Post("/", types.CreateType())

			r.Route("/{type}", func(r chi.Router) {
				r.Get("/", types.GetType())
				r.Post("/properties", types.AddProperty())
				r.Get("/expired", nodes.ListExpired())
				r.Post("/import", rt.handlers.Imports.ImportFolder())

				r.Route("/nodes", func(r chi.Router) {
					r.Get("/", nodes.ListNodes())
					r.Post("/", nodes.CreateNode())
					r.Delete("/", nodes.DeleteMatching())
					r.Put("/{id}", nodes.UpdateNode())
					r.Delete("/{id}", nodes.DeleteNode())
					r.Post("/{id}/replace", nodes.ReplaceNode())
				})
			})
		})

		r.Route("/nodes/{id}", func(r chi.Router) {
			r.Get("/related", nodes.Related())
			r.Get("/relationships", nodes.Relationships())
		})
		r.Post("/relationships", nodes.CreateRelationship())

		r.Get("/view", rt.handlers.View.GetView())
		r.Put("/view", rt.handlers.View.SetView())
	})

	return router
}
