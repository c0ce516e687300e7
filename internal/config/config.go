// Package config loads the service configuration.
//
// Precedence, lowest first: Default(), the optional YAML file at CONFIG_PATH,
// then environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Listing   ListingConfig   `yaml:"listing"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Session   SessionConfig   `yaml:"session"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port           int           `yaml:"port" envconfig:"PORT"`
	AppName        string        `yaml:"app_name" envconfig:"APP_NAME"`
	HandlerTimeout time.Duration `yaml:"handler_timeout" envconfig:"SERVER_HANDLER_TIMEOUT"`
	StaticDir      string        `yaml:"static_dir" envconfig:"SERVER_STATIC_DIR"`
}

// LogConfig selects level and output format of pkg/log.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

// UpstreamConfig holds the tweet lookup API settings.
type UpstreamConfig struct {
	LookupURL       string        `yaml:"lookup_url" envconfig:"UPSTREAM_LOOKUP_URL"`
	QuotaURL        string        `yaml:"quota_url" envconfig:"UPSTREAM_QUOTA_URL"`
	Transport       string        `yaml:"transport" envconfig:"UPSTREAM_TRANSPORT"`
	ChromePath      string        `yaml:"chrome_path" envconfig:"CHROME_PATH"`
	ChromeRemoteURL string        `yaml:"chrome_remote_url" envconfig:"CHROME_REMOTE_URL"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout" envconfig:"UPSTREAM_ATTEMPT_TIMEOUT"`
	MaxRetries      int           `yaml:"max_retries" envconfig:"UPSTREAM_MAX_RETRIES"`
	RetryMinDelay   time.Duration `yaml:"retry_min_delay" envconfig:"UPSTREAM_RETRY_MIN_DELAY"`
	RetryMaxDelay   time.Duration `yaml:"retry_max_delay" envconfig:"UPSTREAM_RETRY_MAX_DELAY"`
	RetryRejected   bool          `yaml:"retry_rejected" envconfig:"UPSTREAM_RETRY_REJECTED"`
	QuotaRefresh    string        `yaml:"quota_refresh" envconfig:"UPSTREAM_QUOTA_REFRESH"`
}

// ListingConfig holds the trending/creators listing settings.
type ListingConfig struct {
	Enabled         bool          `yaml:"enabled" envconfig:"LISTING_ENABLED"`
	RemoteURL       string        `yaml:"remote_url" envconfig:"LISTING_URL"`
	DatabaseURL     string        `yaml:"database_url" envconfig:"DATABASE_URL"`
	CacheTTL        time.Duration `yaml:"cache_ttl" envconfig:"LISTING_CACHE_TTL"`
	HiddenFile      string        `yaml:"hidden_file" envconfig:"LISTING_HIDDEN_FILE"`
	RefreshSchedule string        `yaml:"refresh_schedule" envconfig:"LISTING_REFRESH_SCHEDULE"`
	Window          time.Duration `yaml:"window" envconfig:"LISTING_WINDOW"`
	Limit           int           `yaml:"limit" envconfig:"LISTING_LIMIT"`
}

// RateLimitConfig limits fetches per client IP.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" envconfig:"RATE_LIMIT_REQUESTS"`
	Window   time.Duration `yaml:"window" envconfig:"RATE_LIMIT_WINDOW"`
}

// SessionConfig controls the per-browser request tracking.
type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout" envconfig:"SESSION_IDLE_TIMEOUT"`
	PruneSchedule string        `yaml:"prune_schedule" envconfig:"SESSION_PRUNE_SCHEDULE"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           3000,
			AppName:        "X Downloader",
			HandlerTimeout: 30 * time.Second,
			StaticDir:      "./static",
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
		},
		Upstream: UpstreamConfig{
			LookupURL:      "http://localhost:8080/api/requestx",
			QuotaURL:       "http://localhost:8080/api/remains",
			Transport:      "http",
			AttemptTimeout: 10 * time.Second,
			MaxRetries:     3,
			RetryMinDelay:  1000 * time.Millisecond,
			RetryMaxDelay:  1500 * time.Millisecond,
			RetryRejected:  true,
			QuotaRefresh:   "@every 1m",
		},
		Listing: ListingConfig{
			Enabled:         false,
			DatabaseURL:     "file:xdownloader.db?_pragma=busy_timeout(5000)",
			CacheTTL:        5 * time.Minute,
			RefreshSchedule: "@every 5m",
			Window:          7 * 24 * time.Hour,
			Limit:           20,
		},
		RateLimit: RateLimitConfig{
			Requests: 10,
			Window:   time.Minute,
		},
		Session: SessionConfig{
			IdleTimeout:   30 * time.Minute,
			PruneSchedule: "@every 10m",
		},
	}
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if err := validateURL("UPSTREAM_LOOKUP_URL", c.Upstream.LookupURL); err != nil {
		return err
	}
	if c.Upstream.QuotaURL != "" {
		if err := validateURL("UPSTREAM_QUOTA_URL", c.Upstream.QuotaURL); err != nil {
			return err
		}
	}
	switch c.Upstream.Transport {
	case "http", "browser":
	default:
		return fmt.Errorf("UPSTREAM_TRANSPORT must be http or browser, got %q", c.Upstream.Transport)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	if c.Upstream.MaxRetries < 0 {
		return errors.New("UPSTREAM_MAX_RETRIES must not be negative")
	}
	if c.Upstream.AttemptTimeout <= 0 {
		return errors.New("UPSTREAM_ATTEMPT_TIMEOUT must be positive")
	}
	if c.Upstream.RetryMinDelay < 0 || c.Upstream.RetryMaxDelay < c.Upstream.RetryMinDelay {
		return fmt.Errorf("retry delay range [%s, %s) is invalid", c.Upstream.RetryMinDelay, c.Upstream.RetryMaxDelay)
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if c.Listing.Enabled {
		if c.Listing.RemoteURL == "" && c.Listing.DatabaseURL == "" {
			return errors.New("listing needs LISTING_URL or DATABASE_URL")
		}
		if c.Listing.RemoteURL != "" {
			if err := validateURL("LISTING_URL", c.Listing.RemoteURL); err != nil {
				return err
			}
		}
		if c.Listing.Limit <= 0 {
			return errors.New("LISTING_LIMIT must be positive")
		}
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}
