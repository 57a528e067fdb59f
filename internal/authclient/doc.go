// Package authclient implements the authenticated HTTP client for the
// back-office API.
//
// Every outgoing request is decorated with the stored access token. A 401
// response triggers at most one recovery per request: the token is refreshed
// through the refresh endpoint, persisted, and the original request is replayed
// once with the new token. If the refresh fails the stored token is cleared and
// the configured Navigator is sent to the login route; the caller receives an
// error wrapping ErrSessionEnded.
//
// The token state machine is explicit in Session:
//
//	valid -> expired-unrecovered -> expired-recovering -> valid
//	                                                   -> invalid (terminal until Login)
//
// Concurrent 401s share one in-flight refresh unless single-flight is disabled
// with WithSingleFlight(false), in which case every 401 refreshes on its own.
package authclient
