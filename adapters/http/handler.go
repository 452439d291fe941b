// Package http assembles the DromeBoard HTTP server: shared middleware,
// health and version endpoints, metrics, API docs, static module assets and
// the mounted API and dashboard handlers.
package http

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/DromeProduto/DromeBoard/adapters/metrics"
	_ "github.com/DromeProduto/DromeBoard/docs/swagger" // swagger docs
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
	Service string `json:"service" example:"dromeboard"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty"`
}

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db HealthChecker
}

// NewHealthHandler creates a new health handler. db may be nil.
func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// Liveness returns a simple liveness check.
//
//	@Summary		Liveness check
//	@Description	Returns OK if the service is running
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
//	@Router			/health/live [get]
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readiness checks that the database answers.
//
//	@Summary		Readiness check
//	@Description	Checks that the database is reachable
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/health/ready [get]
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// VersionHandler returns the service version.
//
//	@Summary		Get service version
//	@Description	Returns the version information for the DromeBoard service
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	VersionResponse
//	@Router			/version [get]
func VersionHandler(version string) http.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, VersionResponse{Version: version, Service: "dromeboard"})
	}
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Version        string
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // nil = promhttp.Handler() when Metrics is set
	MetricsPath    string       // "" = /metrics
	EnableOpenAPI  bool
	RequestTimeout time.Duration // 0 = 60s
	Assets         fs.FS         // served under /assets/
	APIHandler     http.Handler  // mounted at /api
	ShellHandler   http.Handler  // mounted at /dashboard
}

// NewRouter creates the main HTTP router.
func NewRouter(health *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Get("/version", VersionHandler(cfg.Version))

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if cfg.MetricsHandler != nil {
		r.Handle(metricsPath, cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle(metricsPath, promhttp.Handler())
	}

	if cfg.EnableOpenAPI {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	if cfg.Assets != nil {
		files := http.StripPrefix("/assets", http.FileServer(http.FS(cfg.Assets)))
		r.Get("/assets/*", func(w http.ResponseWriter, req *http.Request) {
			// No directory listings.
			if strings.HasSuffix(req.URL.Path, "/") {
				http.NotFound(w, req)
				return
			}
			w.Header().Set("Cache-Control", "public, max-age=300")
			files.ServeHTTP(w, req)
		})
	}

	if cfg.APIHandler != nil {
		r.Mount("/api", cfg.APIHandler)
	}
	if cfg.ShellHandler != nil {
		r.Mount("/dashboard", cfg.ShellHandler)
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, "/dashboard/", http.StatusFound)
		})
	}

	return r
}

// NewLoggingMiddleware logs every request at debug level, except health
// checks and metrics scrapes.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	logger = logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
