package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/backoffice-client/internal/app"
)

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	cfg, err := loadConfig("", nil, environ(
		"BACKOFFICE_UPSTREAM__BASE_URL=https://api.example.com",
		"BACKOFFICE_LOG_LEVEL=debug",
		"BACKOFFICE_AUTH__STORAGE=memory",
		"BACKOFFICE_AUTH__DISABLE_SINGLE_FLIGHT=true",
		"BACKOFFICE_UPSTREAM__REFRESH_TIMEOUT=5s",
		"UNRELATED=1",
	))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, app.TokenStorageTypeMemory, cfg.Auth.Storage)
	assert.True(t, cfg.Auth.DisableSingleFlight)
	assert.Equal(t, 5*time.Second, cfg.Upstream.RefreshTimeout)
	assert.Equal(t, "/Auth/refresh-token", cfg.Upstream.RefreshPath)
}

func TestLoadConfigFallsBackToFrontendBaseURL(t *testing.T) {
	cfg, err := loadConfig("", nil, environ(
		"NEXT_PUBLIC_BASEURL=https://shop.example.com/api",
		"BACKOFFICE_AUTH__STORAGE=memory",
	))
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/api", cfg.Upstream.BaseURL)

	cfg, err = loadConfig("", nil, environ(
		"NEXT_PUBLIC_BASEURL=https://shop.example.com/api",
		"BACKOFFICE_UPSTREAM__BASE_URL=https://admin.example.com",
		"BACKOFFICE_AUTH__STORAGE=memory",
	))
	require.NoError(t, err)
	assert.Equal(t, "https://admin.example.com", cfg.Upstream.BaseURL, "explicit setting wins")
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_format = "json"

[server]
port = 8088

[upstream]
base_url = "https://file.example.com"
login_path = "/Account/login"

[auth]
storage = "redis"
login_route = "/signin"

[auth.redis]
addr = "localhost:6379"
ttl = "1h"
`), 0o600))

	cfg, err := loadConfig(path, nil, environ("BACKOFFICE_SERVER__PORT=9099"))
	require.NoError(t, err)

	assert.Equal(t, app.LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, uint16(9099), cfg.Server.Port, "environment overrides file")
	assert.Equal(t, "https://file.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, "/Account/login", cfg.Upstream.LoginPath)
	assert.Equal(t, "/signin", cfg.Auth.LoginRoute)
	assert.Equal(t, "localhost:6379", cfg.Auth.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Auth.Redis.TTL)
	assert.Equal(t, app.DefaultConfigRedisPrefix, cfg.Auth.Redis.Prefix)
}

func TestLoadConfigRequiresBaseURL(t *testing.T) {
	_, err := loadConfig("", nil, environ("BACKOFFICE_AUTH__STORAGE=memory"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BaseURL")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"), nil, environ())
	assert.Error(t, err)
}
