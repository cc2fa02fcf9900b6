// Package http provides the HTTP surface of the usage monitor: the
// metering middleware, the upstream proxy and the main router.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"

	"github.com/ImagingSolutions/UsageMonitor/adapters/metrics"
	_ "github.com/ImagingSolutions/UsageMonitor/docs/swagger" // swagger docs
	"github.com/ImagingSolutions/UsageMonitor/pkg/jsonapi"
)

// AdminPrefix is where the management API is mounted.
const AdminPrefix = "/api/usage-monitor"

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
	Service string `json:"service" example:"usagemonitor"`
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

// HealthChecker is a dependency the readiness probe checks.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc adapts a function (such as ports.Store.Ping) to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler creates a health handler. Nil checkers are skipped.
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	h := &HealthHandler{checks: map[string]HealthChecker{}}
	for name, c := range checks {
		if c != nil {
			h.checks[name] = c
		}
	}
	return h
}

// Liveness returns a simple liveness check.
//
//	@Summary		Liveness check
//	@Description	Returns OK if the service is running
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	map[string]string	"status: ok"
//	@Router			/health [get]
//	@Router			/health/live [get]
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness checks every dependency.
//
//	@Summary		Readiness check
//	@Description	Checks the ledger store and the upstream API
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}	"status: ok"
//	@Failure		503	{object}	map[string]interface{}	"status: unhealthy, checks: per-dependency errors"
//	@Router			/health/ready [get]
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := map[string]string{}
	for name, c := range h.checks {
		if err := c.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	body := map[string]any{"status": "ok", "checks": results}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	writeJSON(w, status, body)
}

// VersionHandler returns the service version.
//
//	@Summary		Get service version
//	@Description	Returns the version information for the usage monitor
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	VersionResponse	"Version information"
//	@Router			/version [get]
func VersionHandler(version string) http.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, VersionResponse{Version: version, Service: "usagemonitor"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// -----------------------------------------------------------------------------
// Router
// -----------------------------------------------------------------------------

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Version        string
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // served at MetricsPath when set
	MetricsPath    string
	EnableOpenAPI  bool
	RequestTimeout time.Duration
	Monitor        *Monitor     // meters configured path prefixes
	AdminHandler   http.Handler // mounted at AdminPrefix
	Upstream       http.Handler // serves every unmatched route
}

// NewRouter creates the main HTTP router.
func NewRouter(health *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger, metricsPath))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics, metricsPath))
	}

	// Metering runs inside the recoverer so faults reach it after recording.
	if cfg.Monitor != nil {
		r.Use(cfg.Monitor.Middleware)
	}

	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Get("/version", VersionHandler(cfg.Version))

	if cfg.MetricsHandler != nil {
		r.Handle(metricsPath, cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle(metricsPath, promhttp.Handler())
	}

	if cfg.EnableOpenAPI {
		r.Get("/.well-known/openapi.json", serveOpenAPI)
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/.well-known/openapi.json"),
		))
	}

	if cfg.AdminHandler != nil {
		r.Mount(AdminPrefix, cfg.AdminHandler)
	}

	if cfg.Upstream != nil {
		r.NotFound(cfg.Upstream.ServeHTTP)
	} else {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			jsonapi.WriteError(w, jsonapi.ErrNotFound("route"))
		})
	}

	return r
}

func serveOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrInternal("OpenAPI document unavailable"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write([]byte(doc))
}

// internalPath reports endpoints excluded from request logs and metrics.
func internalPath(path, metricsPath string) bool {
	return strings.HasPrefix(path, "/health") || path == metricsPath ||
		strings.HasPrefix(path, "/swagger") || strings.HasPrefix(path, "/.well-known")
}

// NewMetricsMiddleware creates middleware that records HTTP metrics.
func NewMetricsMiddleware(m *metrics.Collector, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if internalPath(r.URL.Path, metricsPath) {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			m.ObserveRequest(r.Method, ww.Status(), time.Since(start))
		})
	}
}

// NewLoggingMiddleware creates a request logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if internalPath(r.URL.Path, metricsPath) {
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
