package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/florianilch/backoffice-client/internal/authclient"
	"github.com/florianilch/backoffice-client/internal/gateway"
	"github.com/florianilch/backoffice-client/internal/tokensource"
	"github.com/florianilch/backoffice-client/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogExporter selects where OpenTelemetry log records are shipped.
type LogExporter string

const (
	LogExporterNone     LogExporter = "none"
	LogExporterStdout   LogExporter = "stdout"
	LogExporterOTLPHTTP LogExporter = "otlp-http"
	LogExporterOTLPGRPC LogExporter = "otlp-grpc"
)

// TokenStorageType represents the different storage types supported for the access token.
type TokenStorageType string

const (
	TokenStorageTypeMemory  TokenStorageType = "memory"
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
	TokenStorageTypeRedis   TokenStorageType = "redis"
)

// keyringService names the keyring entry holding the access token.
const keyringService = "backoffice-access-token"

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigLogExporter     = LogExporterNone
	DefaultConfigServerHost      = "127.0.0.1"
	DefaultConfigServerPort      = 4100
	DefaultConfigShutdownTimeout = 5 * time.Second
	DefaultConfigAuthStorage     = TokenStorageTypeFile
	DefaultConfigRedisPrefix     = "backoffice"
)

// ServerConfig holds gateway listener configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// TelemetryConfig controls OpenTelemetry log export.
type TelemetryConfig struct {
	Exporter LogExporter `json:"exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
}

// UpstreamConfig describes the back-office API.
type UpstreamConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
	// Timeout bounds whole API calls including a replay. Zero disables it.
	Timeout        time.Duration `json:"timeout" validate:"gte=0"`
	RefreshPath    string        `json:"refresh_path" validate:"required,startswith=/"`
	RefreshTimeout time.Duration `json:"refresh_timeout" validate:"gte=0"`
	LoginPath      string        `json:"login_path" validate:"required,startswith=/"`
}

// RedisConfig holds settings for the redis token storage.
type RedisConfig struct {
	Addr     string        `json:"addr,omitempty"`
	Password string        `json:"password,omitempty"`
	DB       int           `json:"db,omitempty" validate:"gte=0"`
	Prefix   string        `json:"prefix,omitempty"`
	TTL      time.Duration `json:"ttl,omitempty" validate:"gte=0"`
}

// AuthConfig describes where the access token lives and how sessions end.
type AuthConfig struct {
	Storage TokenStorageType `json:"storage" validate:"required,oneof=memory file env keyring redis"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string      `json:"file,omitempty"`         // For file storage: path to token file
	EnvKey      string      `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string      `json:"keyring_user,omitempty"` // For keyring storage: user identifier
	Redis       RedisConfig `json:"redis"`

	// LoginRoute is where front ends are sent when a refresh fails.
	LoginRoute string `json:"login_route" validate:"required,startswith=/"`

	// DisableSingleFlight lets every concurrent 401 run its own refresh.
	DisableSingleFlight bool `json:"disable_single_flight"`
}

// NewTokenStore creates a TokenStore from the authentication configuration.
// The returned close function releases backend connections.
func (a *AuthConfig) NewTokenStore() (tokenstore.TokenStore, func() error, error) {
	noop := func() error { return nil }

	switch a.Storage {
	case TokenStorageTypeMemory:
		return tokenstore.NewMemoryStore(""), noop, nil
	case TokenStorageTypeFile:
		store, err := tokenstore.NewFileStore(a.File)
		return store, noop, err
	case TokenStorageTypeEnv:
		store, err := tokenstore.NewEnvStore(a.EnvKey)
		return store, noop, err
	case TokenStorageTypeKeyring:
		store, err := tokenstore.NewKeyringStore(keyringService, a.KeyringUser)
		return store, noop, err
	case TokenStorageTypeRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.Redis.Addr,
			Password: a.Redis.Password,
			DB:       a.Redis.DB,
		})
		store, err := tokenstore.NewRedisStore(rdb, a.Redis.Prefix, a.Redis.TTL)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return store, rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// ClientOptions translates the configuration into authclient options.
func (c *Config) ClientOptions(navigator authclient.Navigator) []authclient.Option {
	opts := []authclient.Option{
		authclient.WithRefreshPath(c.Upstream.RefreshPath),
		authclient.WithRefreshTimeout(c.Upstream.RefreshTimeout),
		authclient.WithTimeout(c.Upstream.Timeout),
		authclient.WithLoginRoute(c.Auth.LoginRoute),
		authclient.WithSingleFlight(!c.Auth.DisableSingleFlight),
	}
	if navigator != nil {
		opts = append(opts, authclient.WithNavigator(navigator))
	}
	return opts
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Server    ServerConfig    `json:"server"`
	Shutdown  ShutdownConfig  `json:"shutdown"`
	Upstream  UpstreamConfig  `json:"upstream"`
	Auth      AuthConfig      `json:"auth"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
// The upstream base URL has no default.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = DefaultConfigLogExporter
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.RefreshPath == "" {
		c.Upstream.RefreshPath = tokensource.DefaultRefreshPath
	}
	if c.Upstream.RefreshTimeout == 0 {
		c.Upstream.RefreshTimeout = tokensource.DefaultTimeout
	}
	if c.Upstream.LoginPath == "" {
		c.Upstream.LoginPath = gateway.DefaultLoginPath
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}
	if c.Auth.LoginRoute == "" {
		c.Auth.LoginRoute = authclient.DefaultLoginRoute
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "backoffice", "access-token")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeRedis:
		if c.Auth.Redis.Prefix == "" {
			c.Auth.Redis.Prefix = DefaultConfigRedisPrefix
		}
	case TokenStorageTypeEnv, TokenStorageTypeMemory:
		// env_key must be explicitly configured (no sensible default)
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	case TokenStorageTypeRedis:
		if c.Auth.Redis.Addr == "" {
			return errors.New("redis.addr required for redis storage")
		}
	}

	return nil
}
