package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrapify/wrapify/internal/config"
)

// clearEnv unsets every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "PORT", "DATABASE_URL", "SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET",
		"SPOTIFY_API_URL", "SPOTIFY_ACCOUNTS_URL", "CALLBACK_BASE_URL", "SESSION_SECRET",
		"SESSION_TTL", "COOKIE_SECURE", "LOG_LEVEL", "LOG_FORMAT", "CACHE_DRIVER",
		"REDIS_ADDR", "REDIS_DB", "STATS_CACHE_TTL", "AUTH_RATE_LIMIT", "AUTH_RATE_BURST", "STATIC_DIR",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "data/wrapify.db", c.DatabaseURL)
	assert.False(t, c.IsPostgres())
	assert.Equal(t, 7*24*time.Hour, c.SessionTTL)
	assert.Equal(t, time.Minute, c.StatsCacheTTL)
	assert.Equal(t, "http://localhost:8080/api/auth/callback", c.CallbackURL())
	assert.False(t, c.SpotifyConfigured())
	assert.Len(t, c.Warnings(), 2, "missing spotify credentials and session secret")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://wrapify@localhost/wrapify")
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("CALLBACK_BASE_URL", "https://wrapify.example/")
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123")
	t.Setenv("SESSION_TTL", "48h")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("CACHE_DRIVER", "none")

	c, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Port)
	assert.True(t, c.IsPostgres())
	assert.True(t, c.SpotifyConfigured())
	assert.Equal(t, "https://wrapify.example/api/auth/callback", c.CallbackURL())
	assert.Equal(t, 48*time.Hour, c.SessionTTL)
	assert.True(t, c.CookieSecure)
	assert.Equal(t, "none", c.CacheDriver)
	assert.Empty(t, c.Warnings())
}

func TestLoad_TOMLFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "wrapify.toml", `
port = 7000
database_url = ":memory:"
session_secret = "toml-secret-long-enough"
stats_cache_ttl = "30s"
log_format = "json"
`)
	t.Setenv("PORT", "7001")

	c, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7001, c.Port, "env wins over file")
	assert.Equal(t, ":memory:", c.DatabaseURL)
	assert.Equal(t, "toml-secret-long-enough", c.SessionSecret)
	assert.Equal(t, 30*time.Second, c.StatsCacheTTL)
	assert.Equal(t, "json", c.LogFormat)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "wrapify.yaml", `
env: production
session_secret: yaml-secret-long-enough
cache_driver: redis
redis_addr: localhost:6379
session_ttl: 24h
`)

	c, err := config.Load(path)
	require.NoError(t, err)

	assert.True(t, c.IsProduction())
	assert.Equal(t, "redis", c.CacheDriver)
	assert.Equal(t, "localhost:6379", c.RedisAddr)
	assert.Equal(t, 24*time.Hour, c.SessionTTL)
}

func TestLoad_Errors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad port", env: map[string]string{"PORT": "eighty"}},
		{name: "port out of range", env: map[string]string{"PORT": "70000"}},
		{name: "bad duration", env: map[string]string{"SESSION_TTL": "forever"}},
		{name: "short secret", env: map[string]string{"SESSION_SECRET": "short"}},
		{name: "production without secret", env: map[string]string{"APP_ENV": "production"}},
		{name: "redis without addr", env: map[string]string{"CACHE_DRIVER": "redis"}},
		{name: "unknown cache driver", env: map[string]string{"CACHE_DRIVER": "memcached"}},
		{name: "unsupported file", file: "wrapify.json"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.file != "" {
				path = writeFile(t, tc.file, "{}")
			}

			_, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
