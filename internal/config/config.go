// Package config loads the server configuration.
//
// PRECEDENCE:
// Values are resolved in three layers, later ones winning:
//
//  1. built-in defaults (Default)
//  2. an optional config file, TOML (.toml) or YAML (.yaml, .yml)
//  3. environment variables (PORT, DATABASE_URL, SPOTIFY_CLIENT_ID, ...)
//
// cmd/server loads a .env file into the environment before calling Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// MinSessionSecretLength matches auth.MinSecretLength.
	MinSessionSecretLength = 16

	// devSessionSecret is only ever used outside production.
	devSessionSecret = "wrapify-insecure-development-secret"

	// CallbackPath is appended to CallbackBaseURL to form the OAuth redirect URI.
	CallbackPath = "/api/auth/callback"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Env  string `toml:"env" yaml:"env"`
	Port int    `toml:"port" yaml:"port"`

	// DatabaseURL selects the store: postgres:// or postgresql:// use
	// Postgres, anything else is a SQLite path or DSN.
	DatabaseURL string `toml:"database_url" yaml:"database_url"`

	SpotifyClientID     string `toml:"spotify_client_id" yaml:"spotify_client_id"`
	SpotifyClientSecret string `toml:"spotify_client_secret" yaml:"spotify_client_secret"`
	SpotifyAPIURL       string `toml:"spotify_api_url" yaml:"spotify_api_url"`
	SpotifyAccountsURL  string `toml:"spotify_accounts_url" yaml:"spotify_accounts_url"`
	CallbackBaseURL     string `toml:"callback_base_url" yaml:"callback_base_url"`

	SessionSecret string        `toml:"session_secret" yaml:"session_secret"`
	SessionTTL    time.Duration `toml:"session_ttl" yaml:"session_ttl"`
	CookieSecure  bool          `toml:"cookie_secure" yaml:"cookie_secure"`

	LogLevel  string `toml:"log_level" yaml:"log_level"`
	LogFormat string `toml:"log_format" yaml:"log_format"`

	CacheDriver   string        `toml:"cache_driver" yaml:"cache_driver"`
	RedisAddr     string        `toml:"redis_addr" yaml:"redis_addr"`
	RedisDB       int           `toml:"redis_db" yaml:"redis_db"`
	StatsCacheTTL time.Duration `toml:"stats_cache_ttl" yaml:"stats_cache_ttl"`

	AuthRateLimit float64 `toml:"auth_rate_limit" yaml:"auth_rate_limit"`
	AuthRateBurst int     `toml:"auth_rate_burst" yaml:"auth_rate_burst"`

	StaticDir string `toml:"static_dir" yaml:"static_dir"`

	// warnings collects non-fatal problems found while loading.
	warnings []string
}

// Default returns the built-in configuration: SQLite in ./data, in-memory
// stats cache, seven-day sessions and text logs.
func Default() *Config {
	return &Config{
		Env:                EnvDevelopment,
		Port:               8080,
		DatabaseURL:        "data/wrapify.db",
		SpotifyAPIURL:      "https://api.spotify.com/v1",
		SpotifyAccountsURL: "https://accounts.spotify.com",
		SessionTTL:         7 * 24 * time.Hour,
		LogLevel:           "info",
		LogFormat:          "text",
		CacheDriver:        "memory",
		StatsCacheTTL:      time.Minute,
		AuthRateLimit:      5,
		AuthRateBurst:      10,
	}
}

// Load builds the configuration from defaults, the file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.fillDerived()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(b, c); err != nil {
			return fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, c); err != nil {
			return fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config: unsupported file extension %q (want .toml, .yaml or .yml)", ext)
	}
	return nil
}

func (c *Config) applyEnv() error {
	e := &envReader{}

	e.str("APP_ENV", &c.Env)
	e.integer("PORT", &c.Port)
	e.str("DATABASE_URL", &c.DatabaseURL)
	e.str("SPOTIFY_CLIENT_ID", &c.SpotifyClientID)
	e.str("SPOTIFY_CLIENT_SECRET", &c.SpotifyClientSecret)
	e.str("SPOTIFY_API_URL", &c.SpotifyAPIURL)
	e.str("SPOTIFY_ACCOUNTS_URL", &c.SpotifyAccountsURL)
	e.str("CALLBACK_BASE_URL", &c.CallbackBaseURL)
	e.str("SESSION_SECRET", &c.SessionSecret)
	e.duration("SESSION_TTL", &c.SessionTTL)
	e.boolean("COOKIE_SECURE", &c.CookieSecure)
	e.str("LOG_LEVEL", &c.LogLevel)
	e.str("LOG_FORMAT", &c.LogFormat)
	e.str("CACHE_DRIVER", &c.CacheDriver)
	e.str("REDIS_ADDR", &c.RedisAddr)
	e.integer("REDIS_DB", &c.RedisDB)
	e.duration("STATS_CACHE_TTL", &c.StatsCacheTTL)
	e.float("AUTH_RATE_LIMIT", &c.AuthRateLimit)
	e.integer("AUTH_RATE_BURST", &c.AuthRateBurst)
	e.str("STATIC_DIR", &c.StaticDir)

	return errors.Join(e.errs...)
}

// fillDerived sets values that depend on other settings.
func (c *Config) fillDerived() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.CallbackBaseURL = strings.TrimRight(c.CallbackBaseURL, "/")
	if c.CallbackBaseURL == "" {
		c.CallbackBaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}

	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		c.warnings = append(c.warnings, "SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET not set; login is disabled")
	}
	if c.SessionSecret == "" && !c.IsProduction() {
		c.SessionSecret = devSessionSecret
		c.warnings = append(c.warnings, "SESSION_SECRET not set; using an insecure development secret")
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if len(c.SessionSecret) < MinSessionSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d characters", MinSessionSecretLength))
	}
	if c.IsProduction() && c.SessionSecret == devSessionSecret {
		errs = append(errs, errors.New("SESSION_SECRET must be set in production"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	switch c.CacheDriver {
	case "none", "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when CACHE_DRIVER=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_DRIVER must be none, memory or redis, got %q", c.CacheDriver))
	}
	if c.AuthRateLimit <= 0 || c.AuthRateBurst <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT and AUTH_RATE_BURST must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

// IsPostgres reports whether DatabaseURL points at Postgres.
func (c *Config) IsPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// CallbackURL is the OAuth redirect URI registered with Spotify.
func (c *Config) CallbackURL() string { return c.CallbackBaseURL + CallbackPath }

// SpotifyConfigured reports whether both Spotify credentials are present.
func (c *Config) SpotifyConfigured() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

// Warnings returns the non-fatal problems found by Load, for logging.
func (c *Config) Warnings() []string { return c.warnings }

// envReader applies set environment variables and collects parse errors.
type envReader struct {
	errs []error
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.lookup(key); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
			return
		}
		*dst = i
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s=%q is not a number", key, v))
			return
		}
		*dst = f
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s=%q is not a boolean", key, v))
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s=%q is not a duration: %w", key, v, err))
			return
		}
		*dst = d
	}
}
