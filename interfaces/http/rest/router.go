package rest

import (
	"encoding/json"
	"net/http"

	"github.com/kenoir/weco-concept-explorer/application/explorer"
	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/interfaces/http/rest/handlers"
	"github.com/kenoir/weco-concept-explorer/interfaces/http/rest/middleware"
	"github.com/kenoir/weco-concept-explorer/pkg/errors"
	"github.com/kenoir/weco-concept-explorer/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// ReadinessFunc reports whether the service can take traffic.
type ReadinessFunc func() error

// Router creates and configures the HTTP router
type Router struct {
	proxy        ports.CatalogueProxy
	snapshots    *explorer.Snapshotter
	sessions     http.Handler
	metrics      *observability.Collector
	ready        ReadinessFunc
	enableCORS   bool
	logger       *zap.Logger
	errorHandler *errors.ErrorHandler
}

// RouterOptions are the optional parts of the router.
type RouterOptions struct {
	// Sessions serves the WebSocket endpoint; nil disables it.
	Sessions http.Handler
	// Metrics enables request metrics and /metrics.
	Metrics    *observability.Collector
	Ready      ReadinessFunc
	EnableCORS bool
}

// NewRouter creates a new router instance
func NewRouter(
	proxy ports.CatalogueProxy,
	snapshots *explorer.Snapshotter,
	logger *zap.Logger,
	errorHandler *errors.ErrorHandler,
	opts RouterOptions,
) *Router {
	return &Router{
		proxy:        proxy,
		snapshots:    snapshots,
		sessions:     opts.Sessions,
		metrics:      opts.Metrics,
		ready:        opts.Ready,
		enableCORS:   opts.EnableCORS,
		logger:       logger,
		errorHandler: errorHandler,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.metrics))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	// Catalogue passthrough
	router.Route("/api/wellcome", func(r chi.Router) {
		proxyHandler := handlers.NewProxyHandler(rt.proxy, rt.logger, rt.errorHandler)
		r.Get("/concepts/{id}", proxyHandler.GetConcept)
		r.Get("/works", proxyHandler.GetWorks)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/graphs", func(r chi.Router) {
			graphHandler := handlers.NewGraphHandler(rt.snapshots, rt.logger, rt.errorHandler)
			r.Get("/{conceptID}", graphHandler.GetGraph)
			r.Get("/{conceptID}/svg", graphHandler.GetGraphSVG)
		})

		if rt.sessions != nil {
			r.Method(http.MethodGet, "/sessions/ws", rt.sessions)
		}
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports not ready while a dependency is failing
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	status, body := http.StatusOK, map[string]string{"status": "ready"}
	if rt.ready != nil {
		if err := rt.ready(); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]string{"status": "not_ready", "reason": err.Error()}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
