package authclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrSessionEnded is returned when a refresh fails and the stored token has
// been cleared. The underlying refresh error is wrapped alongside it.
var ErrSessionEnded = errors.New("session ended")

// StatusError is returned by Client for non-2xx responses that survived recovery.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if body := strings.TrimSpace(string(e.Body)); body != "" {
		if len(body) > 256 {
			body = body[:256] + "..."
		}
		msg += ": " + body
	}
	return msg
}

// IsUnauthorized reports whether err is a StatusError with status 401.
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized
}
