package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"strconv"
	"time"

	"github.com/florianilch/backoffice-client/internal/authclient"
)

// DefaultLoginPath is the backend login endpoint whose response starts a session.
const DefaultLoginPath = "/Auth/login"

// apiPrefix is where the back-office API is mounted on the gateway.
const apiPrefix = "/api"

// maxLoginBody bounds how much of a login response is inspected for a token.
const maxLoginBody = 1 << 20

// Option configures a Gateway.
type Option func(*config)

type config struct {
	loginPath  string
	loginRoute string
}

// WithLoginPath overrides DefaultLoginPath.
func WithLoginPath(path string) Option {
	return func(c *config) {
		c.loginPath = path
	}
}

// WithLoginRoute sets the route front ends are told to open when the session
// ends. Defaults to authclient.DefaultLoginRoute.
func WithLoginRoute(route string) Option {
	return func(c *config) {
		c.loginRoute = route
	}
}

// Gateway exposes the back-office API locally through one authenticated client.
type Gateway struct {
	mux    *http.ServeMux
	server *http.Server
	client *authclient.Client
	events *Broker
	cfg    config
}

// Compile-time check that Gateway implements http.Handler
var _ http.Handler = (*Gateway)(nil)

// New creates a Gateway forwarding /api/* to the client's base URL. events
// should be the Navigator the client was built with so session changes reach
// /session/events subscribers.
func New(client *authclient.Client, events *Broker, opts ...Option) (*Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("missing client")
	}
	if events == nil {
		events = NewBroker()
	}

	cfg := config{
		loginPath:  DefaultLoginPath,
		loginRoute: authclient.DefaultLoginRoute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	g := &Gateway{
		client: client,
		events: events,
		cfg:    cfg,
	}

	upstream := client.BaseURL()
	reverseProxyHandler := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			// Credentials come from the session, never from the caller
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("Cookie")
		},
		ModifyResponse: g.modifyResponse,
		ErrorHandler:   g.proxyError,
		// Flush as soon as the backend does; report downloads are streamed
		FlushInterval: -1,
		Transport:     client.Transport(),
	}

	logger := slog.Default()

	mux := http.NewServeMux()
	mux.Handle(apiPrefix+"/", applyMiddlewares(http.StripPrefix(apiPrefix, reverseProxyHandler),
		Logging(logger),
		Recovery,
	))
	mux.Handle("GET /session", applyMiddlewares(http.HandlerFunc(g.getSession), Logging(logger), Recovery))
	mux.Handle("POST /session", applyMiddlewares(http.HandlerFunc(g.postSession), Logging(logger), Recovery))
	mux.Handle("DELETE /session", applyMiddlewares(http.HandlerFunc(g.deleteSession), Logging(logger), Recovery))
	// Long-lived stream, not request-logged
	mux.Handle("GET /session/events", applyMiddlewares(http.HandlerFunc(g.sessionEvents), Recovery))

	g.mux = mux
	return g, nil
}

// ServeHTTP implements http.Handler interface
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mux.ServeHTTP(w, r)
}

// modifyResponse keeps backend cookies inside the gateway (the transport has
// already stored them) and starts a session from a successful login response.
func (g *Gateway) modifyResponse(resp *http.Response) error {
	resp.Header.Del("Set-Cookie")

	req := resp.Request
	if req == nil || req.Method != http.MethodPost || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil
	}
	if req.URL.Path != g.client.BaseURL().JoinPath(g.cfg.loginPath).Path {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLoginBody))
	if err != nil {
		return fmt.Errorf("reading login response: %w", err)
	}
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))

	var login struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(body, &login); err != nil || login.AccessToken == "" {
		slog.WarnContext(req.Context(), "login response carried no access token")
		return nil
	}

	if err := g.client.Session().Login(req.Context(), login.AccessToken); err != nil {
		return err
	}
	g.events.Publish(Event{Type: EventSessionStarted})
	return nil
}

// proxyError maps transport failures to JSON responses. A failed refresh tells
// the front end where to send the user.
func (g *Gateway) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, authclient.ErrSessionEnded):
		writeJSON(ctx, w, ErrorResponse{Error: "session ended", Redirect: g.cfg.loginRoute}, http.StatusUnauthorized)
	case errors.Is(err, context.Canceled):
		// Client went away, nothing to answer
	default:
		slog.ErrorContext(ctx, "upstream request failed", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	}
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (g *Gateway) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	g.server = &http.Server{
		Handler:      g,
		ReadTimeout:  30 * time.Second, // Inbound: read entire client request
		WriteTimeout: 15 * time.Minute, // Inbound: bounds event streams and report downloads
		IdleTimeout:  90 * time.Second, // Inbound: keep-alive wait for next request from client
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := g.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	if err := g.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = g.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
