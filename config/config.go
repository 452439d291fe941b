// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/core/loader"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Database  DatabaseConfig      `yaml:"database"`
	Auth      AuthConfig          `yaml:"auth"`
	Cache     CacheConfig         `yaml:"cache"`
	Modules   []loader.Descriptor `yaml:"modules"`
	Dashboard DashboardConfig     `yaml:"dashboard"`
	Logging   LoggingConfig       `yaml:"logging"`
	Metrics   MetricsConfig       `yaml:"metrics"`
	OpenAPI   OpenAPIConfig       `yaml:"openapi"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the database.
// The DSN normally comes from DROMEBOARD_DATABASE_DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // only "sqlite"
	DSN    string `yaml:"dsn"`
}

// AuthConfig configures dashboard logins.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret,omitempty"` // empty = random per process
	SessionTTL      time.Duration `yaml:"session_ttl"`
	DefaultPassword string        `yaml:"default_password,omitempty"`
	SecureCookie    bool          `yaml:"secure_cookie"`
	BcryptCost      int           `yaml:"bcrypt_cost"`

	// Failed logins per email before further attempts are refused for
	// LoginLockout. Negative disables throttling.
	MaxLoginAttempts int           `yaml:"max_login_attempts"`
	LoginLockout     time.Duration `yaml:"login_lockout"`
}

// CacheConfig configures the shared cache.
type CacheConfig struct {
	Regions       map[string]cache.RegionConfig `yaml:"regions"`
	SweepInterval time.Duration                 `yaml:"sweep_interval"`
}

// RegionConfigs returns the configured regions keyed by cache.Region.
// Names are checked by validate, so unknown ones never reach here.
func (c CacheConfig) RegionConfigs() map[cache.Region]cache.RegionConfig {
	out := make(map[cache.Region]cache.RegionConfig, len(c.Regions))
	for name, rc := range c.Regions {
		if r, err := cache.ParseRegion(name); err == nil {
			out[r] = rc
		}
	}
	return out
}

// DashboardConfig configures the shell and its modules.
type DashboardConfig struct {
	APIBaseURL             string        `yaml:"api_base_url"`    // modules call the API here
	AssetsBaseURL          string        `yaml:"assets_base_url"` // origin for absolute asset URLs; empty = embedded only
	SessionCleanupInterval time.Duration `yaml:"session_cleanup_interval"`
	ScriptTimeout          time.Duration `yaml:"script_timeout"`
	SkipWarmup             bool          `yaml:"skip_warmup"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: /metrics
}

// OpenAPIConfig configures OpenAPI/Swagger documentation.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultModules are the stock dashboard modules.
func DefaultModules() []loader.Descriptor {
	return []loader.Descriptor{
		{
			Name:        "dashboard-home",
			Title:       "Dashboard",
			Icon:        "home",
			Description: "Resumo dos uploads",
			Stylesheet:  "/assets/modules/dashboard-home/home.css",
			Constructor: "DashboardHome",
		},
		{
			Name:        "resultados",
			Title:       "Resultados",
			Icon:        "table",
			Description: "Uploads por período e unidade",
			Stylesheet:  "/assets/modules/resultados/resultados.css",
			Constructor: "Resultados",
		},
		{
			Name:        "gestao-usuarios",
			Title:       "Gestão de Usuários",
			Icon:        "users",
			Description: "Unidades, usuários e módulos",
			Stylesheet:  "/assets/modules/gestao-usuarios/gestao.css",
			Constructor: "GestaoUsuarios",
		},
		{
			Name:        "relatorios",
			Title:       "Relatórios",
			Icon:        "chart",
			Description: "Indicadores do período",
			Script:      "/assets/modules/relatorios/relatorios.go",
			Stylesheet:  "/assets/modules/relatorios/relatorios.css",
			Constructor: "New",
			Runtime:     loader.RuntimeScript,
		},
	}
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	DROMEBOARD_SERVER_HOST          - Server host (default: 0.0.0.0)
//	DROMEBOARD_SERVER_PORT          - Server port (default: 8080)
//	DROMEBOARD_DATABASE_DSN         - SQLite database path (default: dromeboard.db)
//	DROMEBOARD_AUTH_JWT_SECRET      - Session token signing secret
//	DROMEBOARD_AUTH_SESSION_TTL     - Session lifetime (default: 8h)
//	DROMEBOARD_AUTH_DEFAULT_PASSWORD - Password for users created without one
//	DROMEBOARD_AUTH_SECURE_COOKIE   - Mark the session cookie Secure
//	DROMEBOARD_API_BASE_URL         - API base URL used by modules
//	DROMEBOARD_ASSETS_BASE_URL      - Origin for absolute module asset URLs
//	DROMEBOARD_LOG_LEVEL            - Log level: debug, info, warn, error (default: info)
//	DROMEBOARD_LOG_FORMAT           - Log format: json or console (default: json)
//	DROMEBOARD_METRICS_ENABLED      - Enable /metrics endpoint (default: true)
//	DROMEBOARD_OPENAPI_ENABLED      - Enable Swagger UI (default: true)
func LoadFromEnv() (*Config, error) {
	cfg := Config{
		Metrics: MetricsConfig{Enabled: true},
		OpenAPI: OpenAPIConfig{Enabled: true},
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies DROMEBOARD_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("DROMEBOARD_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DROMEBOARD_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DROMEBOARD_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("DROMEBOARD_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("DROMEBOARD_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DROMEBOARD_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Auth configuration
	if v := os.Getenv("DROMEBOARD_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("DROMEBOARD_AUTH_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.SessionTTL = d
		}
	}
	if v := os.Getenv("DROMEBOARD_AUTH_DEFAULT_PASSWORD"); v != "" {
		cfg.Auth.DefaultPassword = v
	}
	if v := os.Getenv("DROMEBOARD_AUTH_SECURE_COOKIE"); v != "" {
		cfg.Auth.SecureCookie = parseBool(v)
	}

	// Dashboard configuration
	if v := os.Getenv("DROMEBOARD_API_BASE_URL"); v != "" {
		cfg.Dashboard.APIBaseURL = v
	}
	if v := os.Getenv("DROMEBOARD_ASSETS_BASE_URL"); v != "" {
		cfg.Dashboard.AssetsBaseURL = v
	}

	// Logging configuration
	if v := os.Getenv("DROMEBOARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DROMEBOARD_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("DROMEBOARD_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("DROMEBOARD_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// OpenAPI configuration
	if v := os.Getenv("DROMEBOARD_OPENAPI_ENABLED"); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
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
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "dromeboard.db"
	}

	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 8 * time.Hour
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 10
	}
	if cfg.Auth.MaxLoginAttempts == 0 {
		cfg.Auth.MaxLoginAttempts = 5
	}
	if cfg.Auth.LoginLockout == 0 {
		cfg.Auth.LoginLockout = 15 * time.Minute
	}

	if cfg.Cache.SweepInterval == 0 {
		cfg.Cache.SweepInterval = cache.DefaultSweepInterval
	}

	if len(cfg.Modules) == 0 {
		cfg.Modules = DefaultModules()
	}

	if cfg.Dashboard.APIBaseURL == "" {
		host := cfg.Server.Host
		if host == "0.0.0.0" || host == "" {
			host = "127.0.0.1"
		}
		cfg.Dashboard.APIBaseURL = fmt.Sprintf("http://%s:%d/api", host, cfg.Server.Port)
	}
	if cfg.Dashboard.SessionCleanupInterval == 0 {
		cfg.Dashboard.SessionCleanupInterval = 10 * time.Minute
	}
	if cfg.Dashboard.ScriptTimeout == 0 {
		cfg.Dashboard.ScriptTimeout = 2 * time.Second
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

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be 'sqlite', got %q", cfg.Database.Driver)
	}

	if cfg.Auth.SessionTTL < time.Minute {
		return fmt.Errorf("auth.session_ttl must be at least 1m, got %s", cfg.Auth.SessionTTL)
	}
	if p := cfg.Auth.DefaultPassword; p != "" && len(p) < 6 {
		return fmt.Errorf("auth.default_password must have at least 6 characters")
	}
	if cfg.Auth.LoginLockout < 0 {
		return fmt.Errorf("auth.login_lockout must not be negative, got %s", cfg.Auth.LoginLockout)
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31, got %d", cfg.Auth.BcryptCost)
	}

	for name, rc := range cfg.Cache.Regions {
		if _, err := cache.ParseRegion(name); err != nil {
			return fmt.Errorf("cache.regions: %w", err)
		}
		if rc.MaxEntries <= 0 || rc.DefaultTTL <= 0 {
			return fmt.Errorf("cache.regions.%s: max_entries and ttl must be positive", name)
		}
	}

	seen := make(map[string]bool, len(cfg.Modules))
	for i, m := range cfg.Modules {
		if m.Name == "" {
			return fmt.Errorf("modules[%d].name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("modules[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
		if m.Constructor == "" {
			return fmt.Errorf("modules[%d].constructor is required", i)
		}
		switch m.RuntimeName() {
		case loader.RuntimeNative:
		case loader.RuntimeScript:
			if m.Script == "" {
				return fmt.Errorf("modules[%d].script is required for the script runtime", i)
			}
		default:
			return fmt.Errorf("modules[%d].runtime must be 'native' or 'script', got %q", i, m.Runtime)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	return nil
}
