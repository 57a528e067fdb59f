package tokensource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrRefreshFailed wraps every refresh failure: transport errors, non-2xx
// statuses and malformed bodies alike.
var ErrRefreshFailed = errors.New("token refresh failed")

// RefreshError reports a refresh endpoint response with a non-2xx status.
type RefreshError struct {
	StatusCode int
	Body       string
}

func (e *RefreshError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("refresh endpoint returned %d", e.StatusCode)
	}
	return fmt.Sprintf("refresh endpoint returned %d: %s", e.StatusCode, e.Body)
}

// Unwrap allows errors.Is(err, ErrRefreshFailed).
func (e *RefreshError) Unwrap() error {
	return ErrRefreshFailed
}

// maxErrorBody caps how much of an error response is kept in RefreshError.
const maxErrorBody = 512

// RefresherOption configures a Refresher.
type RefresherOption func(*refresherConfig)

// refresherConfig holds configuration for NewRefresher.
type refresherConfig struct {
	baseTransport http.RoundTripper
	jar           http.CookieJar
	path          string
	timeout       time.Duration
}

// WithTransport sets a custom base transport for token refresh requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) RefresherOption {
	return func(c *refresherConfig) {
		c.baseTransport = transport
	}
}

// WithCookieJar sets the jar holding the refresh token cookie. It should be
// shared with the client that performs login so the cookie set there is sent here.
func WithCookieJar(jar http.CookieJar) RefresherOption {
	return func(c *refresherConfig) {
		c.jar = jar
	}
}

// WithPath overrides DefaultRefreshPath.
func WithPath(path string) RefresherOption {
	return func(c *refresherConfig) {
		c.path = path
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) RefresherOption {
	return func(c *refresherConfig) {
		c.timeout = timeout
	}
}

// Refresher calls the refresh endpoint. Safe for concurrent use; it performs
// no deduplication of its own.
type Refresher struct {
	client   *http.Client
	endpoint string
}

// NewRefresher creates a Refresher for the API rooted at baseURL.
func NewRefresher(baseURL string, opts ...RefresherOption) (*Refresher, error) {
	cfg := &refresherConfig{
		baseTransport: http.DefaultTransport,
		path:          DefaultRefreshPath,
		timeout:       DefaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}
	endpoint := base.JoinPath(cfg.path)

	return &Refresher{
		client: &http.Client{
			// Bounds the refresh even when the caller's context has no deadline
			Timeout:   cfg.timeout,
			Transport: cfg.baseTransport,
			Jar:       cfg.jar,
		},
		endpoint: endpoint.String(),
	}, nil
}

// Endpoint returns the absolute refresh URL.
func (r *Refresher) Endpoint() string {
	return r.endpoint
}

// Refresh exchanges the refresh cookie for a new access token.
// Failures are never retried here.
func (r *Refresher) Refresh(ctx context.Context) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RefreshError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var payload refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrRefreshFailed, err)
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("%w: response has no accessToken", ErrRefreshFailed)
	}

	token := &oauth2.Token{
		AccessToken: payload.AccessToken,
		TokenType:   "Bearer",
	}
	if exp, ok := Expiry(payload.AccessToken); ok {
		token.Expiry = exp
	}
	return token, nil
}
