// Package tokenstore provides persistent storage for the back-office access token.
//
// A TokenStore holds a single slot: the bearer token attached to outgoing API
// requests. It is written after login and after every successful refresh, read
// on every request, and cleared when a refresh fails.
//
// Supported backends with different security and deployment tradeoffs:
//   - Memory: process-local, lost on exit
//   - File: local filesystem storage with atomic writes and secure permissions
//   - Env: read-only environment variable access (static token, no refresh)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Redis: shared slot for several gateway instances
package tokenstore
