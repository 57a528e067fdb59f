package tokenstore

import (
	"context"
	"errors"
)

var (
	// ErrTokenNotFound is returned by Read when no access token is stored.
	ErrTokenNotFound = errors.New("access token not found")

	// ErrReadOnly is returned by Write and Clear on read-only backends.
	ErrReadOnly = errors.New("token storage is read-only")
)

// TokenStore reads, writes and clears the access token slot.
//
// Token refresh requires writable storage.
type TokenStore interface {
	// Read returns the stored token. Returns ErrTokenNotFound if the slot is
	// missing or empty.
	Read(ctx context.Context) (string, error)

	// Write persists the token, replacing any previous value. Returns
	// ErrReadOnly if the backend is read-only (e.g., environment variables).
	Write(ctx context.Context, token string) error

	// Clear removes the stored token. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}
