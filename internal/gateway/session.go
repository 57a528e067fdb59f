package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/florianilch/backoffice-client/internal/tokensource"
)

// SessionStatus describes the gateway's session for front ends.
type SessionStatus struct {
	State         string     `json:"state"`
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// loginRequest installs a token obtained outside the gateway.
type loginRequest struct {
	AccessToken string `json:"accessToken"`
}

func (g *Gateway) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := g.client.Session()

	token, ok, err := session.AccessToken(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read access token", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	status := SessionStatus{
		State:         session.State().String(),
		Authenticated: ok,
	}
	if ok {
		if exp, found := tokensource.Expiry(token); found {
			status.ExpiresAt = &exp
		}
	}
	writeJSON(ctx, w, status, http.StatusOK)
}

func (g *Gateway) postSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSONError(ctx, w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccessToken == "" {
		writeJSONError(ctx, w, "accessToken is required", http.StatusBadRequest)
		return
	}

	if err := g.client.Session().Login(ctx, req.AccessToken); err != nil {
		slog.ErrorContext(ctx, "failed to start session", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	g.events.Publish(Event{Type: EventSessionStarted})
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) deleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := g.client.Session().Logout(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to end session", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	g.events.Publish(Event{Type: EventSessionEnded, Route: g.cfg.loginRoute})
	w.WriteHeader(http.StatusNoContent)
}

// sessionEvents streams session changes until the client disconnects.
func (g *Gateway) sessionEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	events, unsubscribe := g.events.Subscribe()
	defer unsubscribe()

	if err := sse.WriteComment("connected"); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "event subscriber disconnected")
			return
		case ev := <-events:
			if err := sse.WriteEvent(ev.Type, ev); err != nil {
				slog.ErrorContext(ctx, "failed to write session event", "error", err)
				return
			}
		}
	}
}
