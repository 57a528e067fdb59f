package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/florianilch/backoffice-client/internal/authclient"
)

// Session event types published to /session/events subscribers.
const (
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
)

// Event notifies front ends about session changes. Route is set when the
// client should navigate, e.g. to the login page after a failed refresh.
type Event struct {
	Type  string    `json:"type"`
	Route string    `json:"route,omitempty"`
	At    time.Time `json:"at"`
}

// subscriberBuffer is how many undelivered events a slow subscriber may hold
// before further events are dropped for it.
const subscriberBuffer = 8

// Broker fans session events out to connected front ends. It is the gateway's
// authclient.Navigator: ending the session redirects every open tab.
type Broker struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// Compile-time check that Broker implements authclient.Navigator
var _ authclient.Navigator = (*Broker)(nil)

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a subscriber. The returned function unregisters it and
// closes the channel.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber without blocking.
func (b *Broker) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Navigate implements authclient.Navigator.
func (b *Broker) Navigate(_ context.Context, route string) {
	b.Publish(Event{Type: EventSessionEnded, Route: route})
}
