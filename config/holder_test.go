package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ImagingSolutions/UsageMonitor/config"
)

func TestHolder_Get(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	got := h.Get()
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if got.Monitor.UpstreamURL != "http://localhost:3000" {
		t.Errorf("Monitor.UpstreamURL = %s, want http://localhost:3000", got.Monitor.UpstreamURL)
	}
}

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	if got := h.Get().Accounting.MaxChargeAttempts; got != 3 {
		t.Errorf("initial MaxChargeAttempts = %d, want 3", got)
	}

	newContent := `
monitor:
  paths: ["/v1"]
  upstream_url: "http://localhost:3000"
accounting:
  max_charge_attempts: 8
  log_rejections: false
`
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	cfg := h.Get()
	if cfg.Accounting.MaxChargeAttempts != 8 {
		t.Errorf("reloaded MaxChargeAttempts = %d, want 8", cfg.Accounting.MaxChargeAttempts)
	}
	if cfg.Accounting.ShouldLogRejections() {
		t.Error("reloaded ShouldLogRejections() = true, want false")
	}
}

func TestHolder_OnChange(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var mu sync.Mutex
	var receivedCfg *config.Config

	h.OnChange(func(cfg *config.Config) {
		mu.Lock()
		receivedCfg = cfg
		mu.Unlock()
	})

	newContent := `
monitor:
  paths: ["/v1", "/v2"]
  upstream_url: "http://localhost:3000"
`
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if receivedCfg == nil {
		t.Fatal("OnChange callback was not called")
	}
	if !slices.Equal(receivedCfg.Monitor.Paths, []string{"/v1", "/v2"}) {
		t.Errorf("callback received paths = %v", receivedCfg.Monitor.Paths)
	}
}

func TestHolder_ReloadInvalidConfig(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var reloadErr error
	h.OnReloadError(func(err error) { reloadErr = err })

	invalidContent := `
accounting:
  max_charge_attempts: -1
`
	if err := os.WriteFile(path, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("write invalid config: %v", err)
	}

	if err := h.Reload(); err == nil {
		t.Error("Reload should fail for invalid config")
	}
	if reloadErr == nil {
		t.Error("OnReloadError callback was not called")
	}

	cfg := h.Get()
	if cfg.Accounting.MaxChargeAttempts != 3 {
		t.Errorf("should keep old config, got MaxChargeAttempts = %d", cfg.Accounting.MaxChargeAttempts)
	}
}

func TestHolder_WatchFile(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	changed := make(chan struct{}, 8)
	h.OnChange(func(*config.Config) { changed <- struct{}{} })

	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}

	newContent := `
monitor:
  paths: ["/v1"]
  upstream_url: "http://localhost:5000"
`
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("file watcher did not trigger reload")
	}

	if got := h.Get().Monitor.UpstreamURL; got != "http://localhost:5000" {
		t.Errorf("after file watch, UpstreamURL = %s, want http://localhost:5000", got)
	}
}

func TestHolder_StopTwice(t *testing.T) {
	h, err := config.NewHolder(writeConfig(t, validConfig()), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	h.Stop()
	h.Stop()
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if h.Get() == nil {
					t.Error("concurrent Get returned nil")
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Reload()
		}()
	}

	wg.Wait()
}

func TestReloadableFields(t *testing.T) {
	fields := config.ReloadableFields()
	for _, e := range []string{"accounting.log_rejections", "accounting.max_charge_attempts", "monitor.paths", "logging.level"} {
		if !slices.Contains(fields, e) {
			t.Errorf("%s not in ReloadableFields", e)
		}
	}
}

func TestNonReloadableFields(t *testing.T) {
	fields := config.NonReloadableFields()
	for _, e := range []string{"server.host", "server.port", "database.driver", "database.dsn", "monitor.upstream_url"} {
		if !slices.Contains(fields, e) {
			t.Errorf("%s not in NonReloadableFields", e)
		}
	}
}

// Helpers

func validConfig() string {
	return `
database:
  driver: memory

accounting:
  max_charge_attempts: 3

monitor:
  paths: ["/v1"]
  upstream_url: "http://localhost:3000"
`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
