package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/backoffice-client/internal/authclient"
	"github.com/florianilch/backoffice-client/internal/gateway"
)

// App orchestrates the lifecycle of the gateway server and related services.
type App struct {
	cfg        *Config
	client     *authclient.Client
	gateway    *gateway.Gateway
	closeStore func() error
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	events := gateway.NewBroker()

	// I/O deferred to the first request
	client, closeStore, err := NewClient(cfg, events)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.New(client, events,
		gateway.WithLoginPath(cfg.Upstream.LoginPath),
		gateway.WithLoginRoute(cfg.Auth.LoginRoute),
	)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &App{
		cfg:        cfg,
		client:     client,
		gateway:    gw,
		closeStore: closeStore,
	}, nil
}

// NewClient builds the authenticated client described by cfg. navigator may be
// nil. The returned close function releases the token store.
func NewClient(cfg *Config, navigator authclient.Navigator) (*authclient.Client, func() error, error) {
	store, closeStore, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token store: %w", err)
	}

	client, err := authclient.New(cfg.Upstream.BaseURL, store, cfg.ClientOptions(navigator)...)
	if err != nil {
		_ = closeStore()
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, closeStore, nil
}

// Client returns the shared authenticated client.
func (a *App) Client() *authclient.Client {
	return a.client
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	shutdownFuncs := []func(context.Context) error{
		func(context.Context) error { return a.closeStore() },
	}

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting gateway server", "address", address, "upstream", a.cfg.Upstream.BaseURL)
	gatewayErrCh, err := a.gateway.Start(gCtx, address)
	if err != nil {
		_ = a.closeStore()
		return fmt.Errorf("gateway startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.gateway.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-gatewayErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "gateway runtime error", "error", err)
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
