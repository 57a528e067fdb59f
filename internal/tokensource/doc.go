// Package tokensource obtains fresh access tokens from the back-office
// refresh endpoint.
//
// The backend keeps the refresh token in an HTTP-only cookie, so a refresh is a
// bare POST with an empty JSON body; the cookie jar supplies the credential.
// The response body carries the new access token:
//
//	{"accessToken": "..."}
//
// # Usage
//
//	r, err := tokensource.NewRefresher(baseURL, tokensource.WithCookieJar(jar))
//	tok, err := r.Refresh(ctx)
//
// Refresh requests use their own http.Client over the base transport and never
// pass through the authenticating transport, so a failing refresh cannot
// trigger another refresh.
//
// # Custom Base Transport
//
// Configure a custom base transport for refresh requests (e.g., for proxies or custom timeouts):
//
//	r, err := tokensource.NewRefresher(
//		baseURL,
//		tokensource.WithTransport(customTransport),
//	)
package tokensource
