package authclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/florianilch/backoffice-client/internal/tokensource"
	"github.com/florianilch/backoffice-client/internal/tokenstore"
)

// State is the lifecycle state of the stored access token.
type State int32

const (
	StateValid State = iota
	StateExpiredUnrecovered
	StateExpiredRecovering
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpiredUnrecovered:
		return "expired-unrecovered"
	case StateExpiredRecovering:
		return "expired-recovering"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Refresher obtains a new access token. Implemented by tokensource.Refresher.
type Refresher interface {
	Refresh(ctx context.Context) (*oauth2.Token, error)
}

// Compile-time check that the refresh endpoint client satisfies Refresher
var _ Refresher = (*tokensource.Refresher)(nil)

// refreshKey is the single-flight key; there is only one token slot.
const refreshKey = "refresh"

// Session owns the access token slot and its refresh policy.
type Session struct {
	store      tokenstore.TokenStore
	refresher  Refresher
	navigator  Navigator
	loginRoute string

	singleFlight bool
	group        singleflight.Group

	state atomic.Int32
	// synced is set once the state reflects the store
	synced atomic.Bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionNavigator sets the Navigator notified when the session ends.
func WithSessionNavigator(n Navigator) SessionOption {
	return func(s *Session) {
		s.navigator = n
	}
}

// WithSessionLoginRoute overrides DefaultLoginRoute.
func WithSessionLoginRoute(route string) SessionOption {
	return func(s *Session) {
		s.loginRoute = route
	}
}

// WithSessionSingleFlight toggles refresh deduplication (enabled by default).
func WithSessionSingleFlight(enabled bool) SessionOption {
	return func(s *Session) {
		s.singleFlight = enabled
	}
}

// NewSession creates a Session. No I/O is performed.
func NewSession(store tokenstore.TokenStore, refresher Refresher, opts ...SessionOption) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}
	if refresher == nil {
		return nil, fmt.Errorf("missing refresher")
	}

	s := &Session{
		store:        store,
		refresher:    refresher,
		loginRoute:   DefaultLoginRoute,
		singleFlight: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current token state. A session whose first store read
// finds no token is invalid until Login.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
	s.synced.Store(true)
}

// AccessToken returns the stored token. ok is false when nothing is stored.
func (s *Session) AccessToken(ctx context.Context) (token string, ok bool, err error) {
	token, err = s.store.Read(ctx)
	if errors.Is(err, tokenstore.ErrTokenNotFound) {
		if s.synced.CompareAndSwap(false, true) {
			s.state.CompareAndSwap(int32(StateValid), int32(StateInvalid))
		}
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading access token: %w", err)
	}
	s.synced.Store(true)
	return token, true, nil
}

// Login installs a freshly issued token and leaves the invalid state.
func (s *Session) Login(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("access token cannot be empty")
	}
	if err := s.store.Write(ctx, token); err != nil {
		return fmt.Errorf("storing access token: %w", err)
	}
	s.setState(StateValid)
	slog.InfoContext(ctx, "session started")
	return nil
}

// Logout clears the stored token without notifying the Navigator.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing access token: %w", err)
	}
	s.setState(StateInvalid)
	slog.InfoContext(ctx, "session closed")
	return nil
}

// Recover obtains a replacement for staleToken after a 401. With single-flight
// enabled, concurrent callers share one refresh, and a caller whose stale token
// has already been replaced reuses the replacement without refreshing.
//
// The refresh runs detached from ctx: a caller that gives up gets ctx.Err(),
// while the refresh still completes and its outcome is applied in full.
func (s *Session) Recover(ctx context.Context, staleToken string) (string, error) {
	s.state.CompareAndSwap(int32(StateValid), int32(StateExpiredUnrecovered))

	refreshCtx := context.WithoutCancel(ctx)

	var ch <-chan singleflight.Result
	if s.singleFlight {
		ch = s.group.DoChan(refreshKey, func() (any, error) {
			if current, ok := s.replacement(refreshCtx, staleToken); ok {
				s.state.CompareAndSwap(int32(StateExpiredUnrecovered), int32(StateValid))
				slog.DebugContext(ctx, "access token already refreshed, reusing")
				return current, nil
			}
			return s.refresh(refreshCtx)
		})
	} else {
		own := make(chan singleflight.Result, 1)
		go func() {
			token, err := s.refresh(refreshCtx)
			own <- singleflight.Result{Val: token, Err: err}
		}()
		ch = own
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// replacement returns the stored token if it differs from staleToken, meaning
// another request refreshed it after staleToken was sent.
func (s *Session) replacement(ctx context.Context, staleToken string) (string, bool) {
	if staleToken == "" || s.State() == StateInvalid {
		return "", false
	}
	current, ok, err := s.AccessToken(ctx)
	if err != nil || !ok || current == staleToken {
		return "", false
	}
	return current, true
}

// refresh performs one refresh attempt and applies its outcome to the store.
func (s *Session) refresh(ctx context.Context) (string, error) {
	s.setState(StateExpiredRecovering)
	slog.InfoContext(ctx, "access token rejected, refreshing")

	token, err := s.refresher.Refresh(ctx)
	if err != nil {
		s.end(ctx, err)
		return "", fmt.Errorf("%w: %w", ErrSessionEnded, err)
	}

	if err := s.store.Write(ctx, token.AccessToken); err != nil {
		// The new token still authorizes the replay, but later requests will
		// read the stale one and go through recovery again
		slog.ErrorContext(ctx, "failed to persist refreshed access token", "error", err)
	}
	s.setState(StateValid)

	attrs := []any{}
	if !token.Expiry.IsZero() {
		attrs = append(attrs, "expires_at", token.Expiry)
	}
	slog.InfoContext(ctx, "access token refreshed", attrs...)

	return token.AccessToken, nil
}

// end clears the stored token and sends the Navigator to the login route.
func (s *Session) end(ctx context.Context, cause error) {
	s.setState(StateInvalid)
	slog.WarnContext(ctx, "token refresh failed, ending session", "error", cause)

	if err := s.store.Clear(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to clear access token", "error", err)
	}
	if s.navigator != nil {
		s.navigator.Navigate(ctx, s.loginRoute)
	}
}
