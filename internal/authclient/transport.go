package authclient

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// RequestIDHeader correlates a request and its replay in backend logs.
const RequestIDHeader = "X-Request-Id"

// maxDrain bounds how much of a discarded 401 body is read to reuse the connection.
const maxDrain = 64 << 10

// Transport is an http.RoundTripper that authenticates requests with the
// session's access token and recovers from 401 responses.
type Transport struct {
	Session *Session

	// Base performs the actual round trips. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// Jar, if set, supplies and records cookies the way a browser does for
	// credentialed requests, so a refresh cookie issued at login reaches the
	// refresh endpoint.
	Jar http.CookieJar
}

// Compile-time check that Transport implements http.RoundTripper.
var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

// RoundTrip implements http.RoundTripper interface.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Session == nil {
		return nil, fmt.Errorf("authclient: transport has no session")
	}

	// Jar cookies are added per attempt; the caller's own are kept for the replay
	callerCookies := slices.Clone(req.Header.Values("Cookie"))

	out, sentToken, err := t.decorate(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}
	t.recordCookies(out, resp)

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	ctx := out.Context()
	if RetryStateFrom(ctx) == Retried {
		slog.DebugContext(ctx, "request rejected after replay, giving up", "method", out.Method, "path", out.URL.Path)
		return resp, nil
	}

	// The original response is replaced by the replay or by the refresh error
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	_ = resp.Body.Close()

	newToken, err := t.Session.Recover(ctx, sentToken)
	if err != nil {
		return nil, err
	}

	replay, err := t.replay(out, callerCookies, newToken)
	if err != nil {
		return nil, err
	}
	return t.RoundTrip(replay)
}

// decorate clones req, makes its body replayable, and attaches the stored token.
// It returns the token that was attached, if any.
func (t *Transport) decorate(req *http.Request) (*http.Request, string, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	if err := bufferBody(req, out); err != nil {
		return nil, "", err
	}

	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}

	if t.Jar != nil {
		for _, c := range t.Jar.Cookies(out.URL) {
			out.AddCookie(c)
		}
	}

	// A replay already carries the refreshed token
	if RetryStateFrom(ctx) == Retried && out.Header.Get("Authorization") != "" {
		return out, bearerFrom(out), nil
	}

	token, ok, err := t.Session.AccessToken(ctx)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return out, "", nil
	}

	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(out)
	return out, token, nil
}

// replay builds the one permitted retry of out, carrying the new token.
func (t *Transport) replay(out *http.Request, callerCookies []string, token string) (*http.Request, error) {
	ctx := WithRetryState(out.Context(), Retried)
	next := out.Clone(ctx)

	if out.GetBody != nil {
		body, err := out.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		next.Body = body
	}

	// Jar cookies are re-read on the next decorate
	next.Header.Del("Cookie")
	for _, c := range callerCookies {
		next.Header.Add("Cookie", c)
	}
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(next)
	return next, nil
}

func (t *Transport) recordCookies(out *http.Request, resp *http.Response) {
	if t.Jar == nil {
		return
	}
	if cookies := resp.Cookies(); len(cookies) > 0 {
		t.Jar.SetCookies(out.URL, cookies)
	}
}

// bufferBody gives out a body that can be read again for a replay. Requests
// built with bytes/strings readers already have GetBody; anything else is read
// into memory once.
func bufferBody(req, out *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return fmt.Errorf("reading request body: %w", err)
		}
		_ = req.Body.Close()
		out.Body = body
		return nil
	}

	defer func() { _ = req.Body.Close() }()
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}

	out.Body = io.NopCloser(bytes.NewReader(data))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	out.ContentLength = int64(len(data))
	return nil
}

func bearerFrom(req *http.Request) string {
	const prefix = "Bearer "
	h := req.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
