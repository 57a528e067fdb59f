package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/florianilch/backoffice-client/internal/tokensource"
	"github.com/florianilch/backoffice-client/internal/tokenstore"
)

// Option configures a Client.
type Option func(*clientConfig)

// clientConfig holds configuration for New.
type clientConfig struct {
	baseTransport  http.RoundTripper
	jar            http.CookieJar
	refresher      Refresher
	refreshPath    string
	refreshTimeout time.Duration
	timeout        time.Duration
	sessionOpts    []SessionOption
}

// WithTransport sets the base transport used for API and refresh requests.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.baseTransport = transport
	}
}

// WithCookieJar replaces the default in-memory cookie jar.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *clientConfig) {
		c.jar = jar
	}
}

// WithRefresher replaces the refresh endpoint client.
func WithRefresher(r Refresher) Option {
	return func(c *clientConfig) {
		c.refresher = r
	}
}

// WithRefreshPath overrides tokensource.DefaultRefreshPath.
func WithRefreshPath(path string) Option {
	return func(c *clientConfig) {
		c.refreshPath = path
	}
}

// WithRefreshTimeout bounds a single refresh call.
func WithRefreshTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.refreshTimeout = timeout
	}
}

// WithTimeout bounds whole API calls, replays included. Zero means no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithNavigator sets the Navigator notified when the session ends.
func WithNavigator(n Navigator) Option {
	return func(c *clientConfig) {
		c.sessionOpts = append(c.sessionOpts, WithSessionNavigator(n))
	}
}

// WithLoginRoute overrides DefaultLoginRoute.
func WithLoginRoute(route string) Option {
	return func(c *clientConfig) {
		c.sessionOpts = append(c.sessionOpts, WithSessionLoginRoute(route))
	}
}

// WithSingleFlight toggles sharing one refresh between concurrent 401s.
func WithSingleFlight(enabled bool) Option {
	return func(c *clientConfig) {
		c.sessionOpts = append(c.sessionOpts, WithSessionSingleFlight(enabled))
	}
}

// Client issues authenticated requests against the back-office API.
// Construct one per application and share it.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	transport  *Transport
	session    *Session
}

// New creates a Client for the API rooted at baseURL, backed by store.
func New(baseURL string, store tokenstore.TokenStore, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		baseTransport:  http.DefaultTransport,
		refreshPath:    tokensource.DefaultRefreshPath,
		refreshTimeout: tokensource.DefaultTimeout,
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

	if cfg.jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		cfg.jar = jar
	}

	if cfg.refresher == nil {
		refresher, err := tokensource.NewRefresher(baseURL,
			tokensource.WithTransport(cfg.baseTransport),
			tokensource.WithCookieJar(cfg.jar),
			tokensource.WithPath(cfg.refreshPath),
			tokensource.WithTimeout(cfg.refreshTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("creating refresher: %w", err)
		}
		cfg.refresher = refresher
	}

	session, err := NewSession(store, cfg.refresher, cfg.sessionOpts...)
	if err != nil {
		return nil, err
	}

	transport := &Transport{
		Session: session,
		Base:    cfg.baseTransport,
		Jar:     cfg.jar,
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.timeout,
		},
		transport: transport,
		session:   session,
	}, nil
}

// Session returns the session backing the client.
func (c *Client) Session() *Session {
	return c.session
}

// Transport returns the authenticating transport, e.g. for a reverse proxy.
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

// BaseURL returns a copy of the API base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Do sends req through the authenticating transport. Unlike the helpers, it
// returns non-2xx responses without converting them to errors.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// RequestOption customizes a single request.
type RequestOption func(*http.Request)

// WithQuery merges query parameters into the request URL.
func WithQuery(values url.Values) RequestOption {
	return func(req *http.Request) {
		q := req.URL.Query()
		for k, vs := range values {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// Request issues method against path (relative to the base URL). body may be
// nil, []byte or json.RawMessage (sent as is), an io.Reader, or any value to be
// JSON-encoded. Non-2xx responses are returned as *StatusError.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	reader, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			URL:        target.Redacted(),
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       data,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, nil, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPost, path, body, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPut, path, body, opts...)
}

func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPatch, path, body, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, path, nil, opts...)
}

// GetJSON fetches path and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.SendJSON(ctx, http.MethodGet, path, nil, out, opts...)
}

// SendJSON issues method with in as JSON body and decodes the response into
// out. A nil out discards the response body.
func (c *Client) SendJSON(ctx context.Context, method, path string, in, out any, opts ...RequestOption) error {
	resp, err := c.Request(ctx, method, path, in, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// resolve joins path (which may carry a query string) onto the base URL.
func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	if ref.IsAbs() {
		return nil, fmt.Errorf("path %q must be relative to the base URL", path)
	}

	target := c.baseURL.JoinPath(ref.EscapedPath())
	if strings.HasSuffix(ref.Path, "/") && !strings.HasSuffix(target.Path, "/") {
		target.Path += "/"
	}
	target.RawQuery = ref.RawQuery
	return target, nil
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	case io.Reader:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}
