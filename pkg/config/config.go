package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is read when no config file is given explicitly.
const DefaultPath = "config.yaml"

// Config holds all configuration for herbtrace.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// BaseURL is the public origin encoded into batch locators.
	// Auto-derived from Port if empty.
	BaseURL string `yaml:"base_url" env:"BASE_URL" env-default:""`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Locator (QR code) generation
	Locator LocatorConfig `yaml:"locator"`

	// Quality ledger behaviour
	Quality QualityConfig `yaml:"quality"`

	// Prometheus metrics endpoint
	Metrics MetricsConfig `yaml:"metrics"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host             string        `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port             int           `yaml:"port" env:"PGPORT" env-default:"5432"`
	User             string        `yaml:"user" env:"PGUSER" env-default:"herbtrace"`
	Password         string        `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database         string        `yaml:"database" env:"PGDATABASE" env-default:"herbtrace"`
	MaxConnections   int32         `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode          string        `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	// StatementTimeout bounds each statement; 0 keeps the server default.
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"PGSTATEMENT_TIMEOUT" env-default:"30s"`
}

// LocatorConfig controls QR code rendering and phase-two retries.
type LocatorConfig struct {
	// SizePx is the width and height of the generated PNG.
	SizePx int `yaml:"size_px" env:"LOCATOR_SIZE_PX" env-default:"256"`
	// MaxRetries is how many times a failed locator attach is retried during batch creation.
	// Zero disables retries.
	MaxRetries int `yaml:"max_retries" env:"LOCATOR_MAX_RETRIES"`
}

// DefaultLocatorRetries is used when neither the file nor the environment sets max_retries.
const DefaultLocatorRetries = 2

// QualityConfig selects the batch transition policy.
type QualityConfig struct {
	// TerminalLock stops lab results from moving a batch out of completed or rejected.
	TerminalLock bool `yaml:"terminal_lock" env:"QUALITY_TERMINAL_LOCK" env-default:"false"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	// Port serves /metrics on a separate listener when set; empty mounts it on the API mux.
	Port string `yaml:"port" env:"METRICS_PORT" env-default:""`
}

// Load reads configuration from the YAML file at path with environment variable overrides.
// An empty path means DefaultPath; when DefaultPath does not exist only the environment
// is read. An explicitly named file must exist.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
		Locator: LocatorConfig{MaxRetries: DefaultLocatorRetries},
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case !explicit && errors.Is(statErr, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, statErr)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Locator.SizePx <= 0 {
		return fmt.Errorf("locator.size_px must be positive, got %d", c.Locator.SizePx)
	}
	if c.Locator.MaxRetries < 0 {
		return fmt.Errorf("locator.max_retries must not be negative, got %d", c.Locator.MaxRetries)
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("base_url must be an absolute URL, got %q", c.BaseURL)
		}
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		resolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// resolveHostForDocker maps a loopback database host to host.docker.internal
// when running inside a container, so a local PostgreSQL stays reachable.
func resolveHostForDocker(host string) string {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	if isDockerResult && (host == "localhost" || host == "127.0.0.1") {
		return "host.docker.internal"
	}
	return host
}
