package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autolane/search-service/internal/service"
	"github.com/autolane/search-service/pkg/health"
	"github.com/autolane/search-service/pkg/middleware"
)

// NewRouter creates a chi router with all search service routes registered.
// baseCtx bounds handler-spawned background work (the reindex walker) to the
// application lifetime.
func NewRouter(
	baseCtx context.Context,
	searchService *service.SearchService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	pprofCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	corsCfg := middleware.DefaultCORSConfig()
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("search"))
	r.Use(middleware.Tracing("search"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, pprofCIDRs, logger)

	// Search API endpoints
	searchHandler := NewSearchHandler(baseCtx, searchService, logger)

	r.Route("/api/v1/search", func(r chi.Router) {
		// Autocomplete responses are safe to cache briefly at the edge.
		r.With(middleware.CacheControl(30)).Get("/suggest", searchHandler.Suggest)
		r.Get("/stats", searchHandler.Stats)

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Post("/", searchHandler.Search)
			r.Post("/index", searchHandler.IndexEntity)
			r.Post("/bulk", searchHandler.BulkIndex)
			r.Post("/reindex", searchHandler.Reindex)
			r.Delete("/{entityType}/{entityId}", searchHandler.DeleteEntity)
		})
	})

	return r
}
