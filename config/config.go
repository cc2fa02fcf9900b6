// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "USAGEMONITOR_"

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Accounting AccountingConfig `yaml:"accounting"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Admin      AdminConfig      `yaml:"admin"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	OpenAPI    OpenAPIConfig    `yaml:"openapi"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig selects the storage engine.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // "sqlite", "postgres" or "memory"
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// AccountingConfig tunes the request accountant.
type AccountingConfig struct {
	// LogRejections writes a 402 log row with no ledger entry when a
	// request is turned away for lack of capacity. Nil means true.
	LogRejections     *bool         `yaml:"log_rejections"`
	MaxChargeAttempts int           `yaml:"max_charge_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RecordTimeout     time.Duration `yaml:"record_timeout"`
}

// ShouldLogRejections resolves the LogRejections default.
func (a AccountingConfig) ShouldLogRejections() bool {
	return a.LogRejections == nil || *a.LogRejections
}

// MonitorConfig configures the metering proxy.
type MonitorConfig struct {
	// Paths lists the URL path prefixes that are metered.
	Paths           []string      `yaml:"paths"`
	UpstreamURL     string        `yaml:"upstream_url"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
	// APIKeyHeader and UpstreamAPIKey, when both set, are added to every
	// proxied request.
	APIKeyHeader   string `yaml:"api_key_header"`
	UpstreamAPIKey string `yaml:"upstream_api_key,omitempty"`
}

// AdminConfig configures management sessions.
type AdminConfig struct {
	SessionTTL time.Duration `yaml:"session_ttl"`
	CookieName string        `yaml:"cookie_name"`
	BcryptCost int           `yaml:"bcrypt_cost"`
	// SecureCookie marks the session cookie Secure; enable behind TLS.
	SecureCookie bool `yaml:"secure_cookie"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OpenAPIConfig configures the Swagger UI.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Addr is host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from a YAML file. A .env file in the working
// directory is loaded first; it never overrides variables already set.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(&cfg)
}

// LoadFromEnv builds configuration from environment variables only.
//
// Environment variables:
//
//	USAGEMONITOR_SERVER_HOST            - Server host (default: 0.0.0.0)
//	USAGEMONITOR_SERVER_PORT            - Server port (default: 8080)
//	USAGEMONITOR_DATABASE_DRIVER        - sqlite, postgres or memory (default: sqlite)
//	USAGEMONITOR_DATABASE_DSN           - Database path or connection string
//	USAGEMONITOR_ACCOUNTING_LOG_REJECTIONS - Log capacity rejections (default: true)
//	USAGEMONITOR_ACCOUNTING_MAX_CHARGE_ATTEMPTS - Charge attempts per request (default: 5)
//	USAGEMONITOR_MONITOR_PATHS          - Comma-separated metered path prefixes
//	USAGEMONITOR_MONITOR_UPSTREAM_URL   - Upstream API URL
//	USAGEMONITOR_LOG_LEVEL              - debug, info, warn, error (default: info)
//	USAGEMONITOR_LOG_FORMAT             - json or console (default: json)
//	USAGEMONITOR_METRICS_ENABLED        - Enable /metrics (default: false)
//	USAGEMONITOR_OPENAPI_ENABLED        - Enable /swagger (default: false)
func LoadFromEnv() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	return finish(&Config{})
}

// LoadWithFallback loads path when it exists, otherwise the environment.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads .env from the working directory. A missing file is the
// normal case; an unreadable or malformed one is an error.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// applyEnvOverrides applies USAGEMONITOR_* environment variables.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	flag := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = parseBool(v)
		}
	}

	str("SERVER_HOST", &cfg.Server.Host)
	num("SERVER_PORT", &cfg.Server.Port)
	dur("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	dur("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)

	str("DATABASE_DRIVER", &cfg.Database.Driver)
	str("DATABASE_DSN", &cfg.Database.DSN)
	num("DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)

	if v := os.Getenv(EnvPrefix + "ACCOUNTING_LOG_REJECTIONS"); v != "" {
		b := parseBool(v)
		cfg.Accounting.LogRejections = &b
	}
	num("ACCOUNTING_MAX_CHARGE_ATTEMPTS", &cfg.Accounting.MaxChargeAttempts)
	dur("ACCOUNTING_RETRY_DELAY", &cfg.Accounting.RetryDelay)
	dur("ACCOUNTING_RECORD_TIMEOUT", &cfg.Accounting.RecordTimeout)

	if v := os.Getenv(EnvPrefix + "MONITOR_PATHS"); v != "" {
		cfg.Monitor.Paths = splitList(v)
	}
	str("MONITOR_UPSTREAM_URL", &cfg.Monitor.UpstreamURL)
	dur("MONITOR_UPSTREAM_TIMEOUT", &cfg.Monitor.UpstreamTimeout)
	str("MONITOR_API_KEY_HEADER", &cfg.Monitor.APIKeyHeader)
	str("MONITOR_UPSTREAM_API_KEY", &cfg.Monitor.UpstreamAPIKey)

	dur("ADMIN_SESSION_TTL", &cfg.Admin.SessionTTL)
	str("ADMIN_COOKIE_NAME", &cfg.Admin.CookieName)
	num("ADMIN_BCRYPT_COST", &cfg.Admin.BcryptCost)
	flag("ADMIN_SECURE_COOKIE", &cfg.Admin.SecureCookie)

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	flag("METRICS_ENABLED", &cfg.Metrics.Enabled)
	str("METRICS_PATH", &cfg.Metrics.Path)
	flag("OPENAPI_ENABLED", &cfg.OpenAPI.Enabled)
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "usagemonitor.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}

	if cfg.Accounting.MaxChargeAttempts == 0 {
		cfg.Accounting.MaxChargeAttempts = 5
	}
	if cfg.Accounting.RetryDelay == 0 {
		cfg.Accounting.RetryDelay = 5 * time.Millisecond
	}
	if cfg.Accounting.RecordTimeout == 0 {
		cfg.Accounting.RecordTimeout = 5 * time.Second
	}

	if cfg.Monitor.UpstreamTimeout == 0 {
		cfg.Monitor.UpstreamTimeout = 30 * time.Second
	}

	if cfg.Admin.SessionTTL == 0 {
		cfg.Admin.SessionTTL = 24 * time.Hour
	}
	if cfg.Admin.CookieName == "" {
		cfg.Admin.CookieName = "usagemonitor_session"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// Validate reports every unusable setting. The result wraps
// meter.ErrInvalidConfiguration.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Database.Driver {
	case "sqlite", "memory":
	case "postgres":
		if cfg.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite, postgres or memory, got %q", cfg.Database.Driver))
	}

	if cfg.Accounting.MaxChargeAttempts < 1 {
		errs = append(errs, fmt.Errorf("accounting.max_charge_attempts must be positive, got %d", cfg.Accounting.MaxChargeAttempts))
	}
	if cfg.Accounting.RetryDelay < 0 || cfg.Accounting.RecordTimeout < 0 {
		errs = append(errs, errors.New("accounting durations must not be negative"))
	}

	for _, p := range cfg.Monitor.Paths {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("monitor.paths entry %q must start with /", p))
		}
	}
	if len(cfg.Monitor.Paths) > 0 && cfg.Monitor.UpstreamURL == "" {
		errs = append(errs, errors.New("monitor.upstream_url is required when monitor.paths is set"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", cfg.Logging.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", meter.ErrInvalidConfiguration, errors.Join(errs...))
}
