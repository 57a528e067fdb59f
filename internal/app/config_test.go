package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/backoffice-client/internal/authclient"
	"github.com/florianilch/backoffice-client/internal/tokenstore"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		Upstream: UpstreamConfig{BaseURL: "https://backoffice.example.com"},
		Auth: AuthConfig{
			Storage: TokenStorageTypeFile,
			File:    filepath.Join(t.TempDir(), "access-token"),
		},
	}
	require.NoError(t, cfg.ApplyDefaults())
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Storage: TokenStorageTypeRedis}}
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.Equal(t, LogExporterNone, cfg.Telemetry.Exporter)
	assert.Equal(t, DefaultConfigServerHost, cfg.Server.Host)
	assert.Equal(t, uint16(DefaultConfigServerPort), cfg.Server.Port)
	assert.Equal(t, DefaultConfigShutdownTimeout, cfg.Shutdown.Timeout)
	assert.Equal(t, "/Auth/refresh-token", cfg.Upstream.RefreshPath)
	assert.Equal(t, 30*time.Second, cfg.Upstream.RefreshTimeout)
	assert.Equal(t, "/Auth/login", cfg.Upstream.LoginPath)
	assert.Equal(t, "/", cfg.Auth.LoginRoute)
	assert.Equal(t, DefaultConfigRedisPrefix, cfg.Auth.Redis.Prefix)
	assert.Empty(t, cfg.Upstream.BaseURL, "base URL has no default")
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 9000},
		Upstream: UpstreamConfig{RefreshPath: "/v2/refresh"},
		Auth:     AuthConfig{Storage: TokenStorageTypeMemory, LoginRoute: "/login"},
	}
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, uint16(9000), cfg.Server.Port)
	assert.Equal(t, "/v2/refresh", cfg.Upstream.RefreshPath)
	assert.Equal(t, "/login", cfg.Auth.LoginRoute)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing base URL", mutate: func(c *Config) { c.Upstream.BaseURL = "" }, wantErr: "BaseURL"},
		{name: "relative base URL", mutate: func(c *Config) { c.Upstream.BaseURL = "backoffice" }, wantErr: "BaseURL"},
		{name: "unknown storage", mutate: func(c *Config) { c.Auth.Storage = "floppy" }, wantErr: "Storage"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LogFormat"},
		{name: "bad exporter", mutate: func(c *Config) { c.Telemetry.Exporter = "zipkin" }, wantErr: "Exporter"},
		{name: "refresh path not absolute", mutate: func(c *Config) { c.Upstream.RefreshPath = "refresh" }, wantErr: "RefreshPath"},
		{name: "env without key", mutate: func(c *Config) { c.Auth.Storage = TokenStorageTypeEnv }, wantErr: "env_key"},
		{name: "redis without addr", mutate: func(c *Config) { c.Auth.Storage = TokenStorageTypeRedis }, wantErr: "redis.addr"},
		{name: "file without path", mutate: func(c *Config) { c.Auth.File = "" }, wantErr: "file path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewTokenStore(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		auth AuthConfig
		want any
	}{
		{name: "memory", auth: AuthConfig{Storage: TokenStorageTypeMemory}, want: &tokenstore.MemoryStore{}},
		{name: "file", auth: AuthConfig{Storage: TokenStorageTypeFile, File: filepath.Join(t.TempDir(), "t")}, want: &tokenstore.FileStore{}},
		{name: "env", auth: AuthConfig{Storage: TokenStorageTypeEnv, EnvKey: "BACKOFFICE_TOKEN"}, want: &tokenstore.EnvStore{}},
		{name: "redis", auth: AuthConfig{Storage: TokenStorageTypeRedis, Redis: RedisConfig{Addr: mr.Addr(), Prefix: "bo"}}, want: &tokenstore.RedisStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeStore, err := tt.auth.NewTokenStore()
			require.NoError(t, err)
			defer func() { assert.NoError(t, closeStore()) }()
			assert.IsType(t, tt.want, store)
		})
	}

	_, _, err := (&AuthConfig{Storage: "floppy"}).NewTokenStore()
	assert.Error(t, err)
}

func TestNewClientUsesConfiguredPaths(t *testing.T) {
	var refreshed atomic.Bool
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/refresh":
			refreshed.Store(true)
			_, _ = w.Write([]byte(`{"accessToken":"fresh"}`))
		case "/products":
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer backend.Close()

	cfg := validConfig(t)
	cfg.Upstream.BaseURL = backend.URL
	cfg.Upstream.RefreshPath = "/v2/refresh"
	cfg.Auth.Storage = TokenStorageTypeMemory
	require.NoError(t, cfg.Validate())

	var routes []string
	client, closeStore, err := NewClient(cfg, authclient.NavigatorFunc(func(_ context.Context, route string) {
		routes = append(routes, route)
	}))
	require.NoError(t, err)
	defer func() { _ = closeStore() }()

	require.NoError(t, client.Session().Login(context.Background(), "stale"))
	resp, err := client.Get(context.Background(), "/products")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(resp.Body)))
	assert.True(t, refreshed.Load())
	assert.Empty(t, routes)
}

func TestAppStartStopsOnCancel(t *testing.T) {
	cfg := validConfig(t)
	cfg.Server.Port = 0
	cfg.Auth.Storage = TokenStorageTypeMemory
	cfg.Shutdown.Timeout = time.Second

	application, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, application.Client())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after cancellation")
	}
}
