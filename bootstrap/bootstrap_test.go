package bootstrap_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ImagingSolutions/UsageMonitor/adapters/clock"
	"github.com/ImagingSolutions/UsageMonitor/bootstrap"
	"github.com/ImagingSolutions/UsageMonitor/config"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
)

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"hello from upstream"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := bootstrap.OpenStore(ctx, config.DatabaseConfig{Driver: "memory"})
		if err != nil {
			t.Fatalf("OpenStore() error = %v", err)
		}
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping() = %v", err)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "usage.db")
		store, err := bootstrap.OpenStore(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
		if err != nil {
			t.Fatalf("OpenStore() error = %v", err)
		}
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping() = %v", err)
		}
		if _, err := os.Stat(dsn); err != nil {
			t.Errorf("database file not created: %v", err)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := bootstrap.OpenStore(ctx, config.DatabaseConfig{Driver: "mongodb"})
		if !errors.Is(err, meter.ErrInvalidConfiguration) {
			t.Errorf("OpenStore() error = %v, want ErrInvalidConfiguration", err)
		}
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		if _, err := bootstrap.OpenStore(ctx, config.DatabaseConfig{Driver: "postgres"}); err == nil {
			t.Error("OpenStore() = nil error for empty postgres dsn")
		}
	})
}

func TestPolicyFrom(t *testing.T) {
	off := false
	p := bootstrap.PolicyFrom(config.AccountingConfig{
		LogRejections:     &off,
		MaxChargeAttempts: 3,
		RecordTimeout:     time.Second,
	})
	if p.LogRejections || p.MaxChargeAttempts != 3 || p.RecordTimeout != time.Second {
		t.Errorf("PolicyFrom() = %+v", p)
	}

	// Zero values keep the defaults.
	p = bootstrap.PolicyFrom(config.AccountingConfig{})
	if p != bootstrap.PolicyFrom(config.AccountingConfig{MaxChargeAttempts: 5, RetryDelay: 5 * time.Millisecond, RecordTimeout: 5 * time.Second}) {
		t.Errorf("PolicyFrom(zero) = %+v", p)
	}
	if !p.LogRejections {
		t.Error("rejections should be logged by default")
	}
}

func TestNewLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf strings.Builder
	logger := bootstrap.NewLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info logged at warn level")
	}
	if !strings.Contains(buf.String(), `"message":"shown"`) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestNew_MeteredProxy(t *testing.T) {
	upstream := newUpstream(t)

	t.Setenv("USAGEMONITOR_DATABASE_DRIVER", "memory")
	t.Setenv("USAGEMONITOR_MONITOR_PATHS", "/v1")
	t.Setenv("USAGEMONITOR_MONITOR_UPSTREAM_URL", upstream.URL)
	t.Setenv("USAGEMONITOR_METRICS_ENABLED", "true")
	t.Setenv("USAGEMONITOR_OPENAPI_ENABLED", "true")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	a, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{
		Version: "test",
		Clock:   clock.NewFake(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown()

	h := a.HTTPServer.Handler

	if rec := serve(h, http.MethodGet, "/health/ready"); rec.Code != http.StatusOK {
		t.Fatalf("readiness = %d %s", rec.Code, rec.Body)
	}

	// Not provisioned yet.
	if rec := serve(h, http.MethodGet, "/v1/items"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unprovisioned status = %d, want 503", rec.Code)
	}

	_, _, err = a.Directory.CreateAccount(context.Background(), "Acme", "ops@acme.test",
		decimal.RequireFromString("0.02"), decimal.RequireFromString("0.01"))
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		rec := serve(h, http.MethodGet, "/v1/items")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "hello from upstream") {
			t.Fatalf("request %d = %d %q", i, rec.Code, rec.Body)
		}
	}
	if rec := serve(h, http.MethodGet, "/v1/items"); rec.Code != http.StatusPaymentRequired {
		t.Errorf("exhausted status = %d, want 402", rec.Code)
	}

	overview, err := a.Usage.GetOverview(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetOverview() error = %v", err)
	}
	if overview.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", overview.TotalRequests)
	}

	rec := serve(h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "usagemonitor_charges_total 2") {
		t.Errorf("metrics = %d\n%s", rec.Code, rec.Body)
	}

	if rec := serve(h, http.MethodGet, "/api/usage-monitor/admin/exists"); rec.Code != http.StatusOK {
		t.Errorf("admin exists = %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/.well-known/openapi.json"); rec.Code != http.StatusOK {
		t.Errorf("openapi = %d", rec.Code)
	}
}

func TestNew_HotReload(t *testing.T) {
	upstream := newUpstream(t)
	path := filepath.Join(t.TempDir(), "usagemonitor.yaml")
	base := `
database:
  driver: memory
metrics:
  enabled: true
monitor:
  upstream_url: %s
  paths: [%s]
accounting:
  log_rejections: %v
`
	writeConfig(t, path, fmt.Sprintf(base, upstream.URL, "/v1", true))

	holder, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder() error = %v", err)
	}

	a, err := bootstrap.New(context.Background(), holder.Get(), bootstrap.Options{Holder: holder})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown()

	if !a.Monitor.Metered("/v1/items") || !a.Accountant.Policy().LogRejections {
		t.Fatal("initial configuration not applied")
	}

	writeConfig(t, path, fmt.Sprintf(base, upstream.URL, "/v2", false))
	if err := holder.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if a.Monitor.Metered("/v1/items") || !a.Monitor.Metered("/v2/items") {
		t.Errorf("metered paths = %v", a.Monitor.Paths())
	}
	if a.Accountant.Policy().LogRejections {
		t.Error("log_rejections not reloaded")
	}
	if got := testutil.ToFloat64(a.Metrics.ConfigReloads); got != 1 {
		t.Errorf("config reloads = %v, want 1", got)
	}

	writeConfig(t, path, "database: [")
	if err := holder.Reload(); err == nil {
		t.Fatal("Reload() of invalid yaml = nil error")
	}
	if got := testutil.ToFloat64(a.Metrics.ConfigReloadErrors); got != 1 {
		t.Errorf("config reload errors = %v, want 1", got)
	}
	if !a.Monitor.Metered("/v2/items") {
		t.Error("failed reload changed the running configuration")
	}
}
