// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ImagingSolutions/UsageMonitor/adapters/clock"
	apihttp "github.com/ImagingSolutions/UsageMonitor/adapters/http"
	"github.com/ImagingSolutions/UsageMonitor/adapters/http/admin"
	"github.com/ImagingSolutions/UsageMonitor/adapters/idgen"
	"github.com/ImagingSolutions/UsageMonitor/adapters/metrics"
	"github.com/ImagingSolutions/UsageMonitor/app"
	"github.com/ImagingSolutions/UsageMonitor/config"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	*Services

	Monitor  *apihttp.Monitor
	Admin    *admin.Handler
	upstream *apihttp.UpstreamClient
	holder   *config.Holder
	clock    ports.Clock
}

// Options provides optional configuration for application initialization.
type Options struct {
	Version string

	// Holder enables hot reload of the reloadable settings.
	Holder *config.Holder

	// Clock defaults to the wall clock.
	Clock ports.Clock

	// Store overrides the configured storage engine.
	Store ports.Store
}

// New creates and initializes the application.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := NewLogger(cfg.Logging, os.Stdout)
	logger.Info().Str("version", opts.Version).Str("driver", cfg.Database.Driver).Msg("initializing usagemonitor")

	a := &App{
		Logger: logger,
		Config: cfg,
		holder: opts.Holder,
		clock:  opts.Clock,
	}
	if a.clock == nil {
		a.clock = clock.Real{}
	}

	// Initialize metrics if enabled
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.New(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	store := opts.Store
	if store == nil {
		var err error
		store, err = OpenStore(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	var observer app.Observer
	if a.Metrics != nil {
		observer = a.Metrics
	}
	a.Services = NewServices(store, cfg, a.clock, logger, observer)

	if err := a.initHTTPServer(opts.Version, metricsHandler); err != nil {
		store.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	if a.holder != nil {
		a.holder.OnChange(a.applyConfig)
		a.holder.OnReloadError(func(err error) {
			a.Metrics.ObserveReload(err, a.clock.Now())
		})
	}

	return a, nil
}

func (a *App) initHTTPServer(version string, metricsHandler http.Handler) error {
	cfg := a.Config

	checks := map[string]apihttp.HealthChecker{
		"store": apihttp.HealthCheckFunc(a.Store.Ping),
	}

	var upstream http.Handler
	if cfg.Monitor.UpstreamURL != "" {
		client, err := apihttp.NewUpstreamClient(apihttp.UpstreamConfig{
			BaseURL:      cfg.Monitor.UpstreamURL,
			Timeout:      cfg.Monitor.UpstreamTimeout,
			APIKeyHeader: cfg.Monitor.APIKeyHeader,
			APIKey:       cfg.Monitor.UpstreamAPIKey,
			Metrics:      a.Metrics,
			Logger:       a.Logger,
		})
		if err != nil {
			return fmt.Errorf("upstream: %w", err)
		}
		a.upstream = client
		upstream = client
		checks["upstream"] = client
		a.Logger.Info().Str("upstream", cfg.Monitor.UpstreamURL).Strs("metered_paths", cfg.Monitor.Paths).Msg("metering proxy enabled")
	}

	a.Monitor = apihttp.NewMonitor(a.Accountant, cfg.Monitor.Paths, a.Logger)
	a.Admin = admin.NewHandler(admin.Deps{
		Directory:    a.Directory,
		Usage:        a.Usage,
		IDGen:        idgen.UUID{},
		Clock:        a.clock,
		Logger:       a.Logger,
		SessionTTL:   cfg.Admin.SessionTTL,
		CookieName:   cfg.Admin.CookieName,
		SecureCookie: cfg.Admin.SecureCookie,
	})

	router := apihttp.NewRouter(apihttp.NewHealthHandler(checks), a.Logger, apihttp.RouterConfig{
		Version:        version,
		Metrics:        a.Metrics,
		MetricsHandler: metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
		EnableOpenAPI:  cfg.OpenAPI.Enabled,
		RequestTimeout: cfg.Server.WriteTimeout,
		Monitor:        a.Monitor,
		AdminHandler:   a.Admin.Router(),
		Upstream:       upstream,
	})

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return nil
}

// applyConfig pushes the reloadable settings into the running services.
func (a *App) applyConfig(cfg *config.Config) {
	a.Accountant.UpdatePolicy(PolicyFrom(cfg.Accounting))
	a.Monitor.SetPaths(cfg.Monitor.Paths)
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	a.Metrics.ObserveReload(nil, a.clock.Now())
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	if a.holder != nil {
		if err := a.holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.holder.WatchSignals()
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application. In-flight metered requests
// finish and are recorded before the store closes.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	// Shutdown HTTP server
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	// Close upstream
	if a.upstream != nil {
		a.upstream.Close()
	}

	// Close database
	if a.Services != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("store close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// NewLogger builds the process logger and sets the global level.
// Unknown levels fall back to info.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
