package authclient

import "context"

// RetryState records whether a request has already been through recovery.
type RetryState int

const (
	// NotRetried requests are eligible for one refresh-and-replay on 401.
	NotRetried RetryState = iota
	// Retried requests are never recovered again; a 401 is returned as is.
	Retried
)

func (s RetryState) String() string {
	switch s {
	case NotRetried:
		return "not-retried"
	case Retried:
		return "retried"
	default:
		return "unknown"
	}
}

type retryStateKey struct{}

// WithRetryState returns a context carrying the given retry state.
func WithRetryState(ctx context.Context, state RetryState) context.Context {
	return context.WithValue(ctx, retryStateKey{}, state)
}

// RetryStateFrom reports the retry state carried by ctx. Contexts without one
// are NotRetried.
func RetryStateFrom(ctx context.Context) RetryState {
	if state, ok := ctx.Value(retryStateKey{}).(RetryState); ok {
		return state
	}
	return NotRetried
}
