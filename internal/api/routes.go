package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/co-los/internal/analysis"
	"github.com/yegors/co-los/internal/config"
	"github.com/yegors/co-los/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(snapshots SnapshotProvider, registry CarrierRegistry, analysisService *analysis.Service, config *config.Config, logger *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(snapshots, registry, analysisService, config, logger),
		middleware: NewMiddleware(logger),
		config:     config,
		logger:     logger.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.AllowedOrigins))

	router.Route("/api/v1", func(router chi.Router) {
		// Aircraft
		router.Get("/aircraft", r.handler.GetAircraft)

		// Carriers
		router.Get("/carriers", r.handler.GetCarriers)
		router.Get("/carriers/{code}", r.handler.GetCarrier)
		router.Put("/carriers/{code}", r.handler.UpdateCarrierRange)

		// Analysis
		router.Post("/distances", r.handler.CalculateDistances)
		router.Post("/communication", r.handler.CalculateCommunication)
		router.Post("/graph", r.handler.GetGraph)

		// Snapshot
		router.Post("/snapshot/refresh", r.handler.RefreshSnapshot)

		// Health check
		router.Get("/health", r.handler.GetHealth)

		// Configuration
		router.Get("/config", r.handler.GetConfig)
	})

	return router
}
