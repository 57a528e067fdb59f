package authclient

import "context"

// DefaultLoginRoute is where a Navigator is sent when the session ends.
const DefaultLoginRoute = "/"

// Navigator is notified when recovery fails and the user has to log in again.
// A nil Navigator means there is no interactive front end to redirect.
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, route string)

func (f NavigatorFunc) Navigate(ctx context.Context, route string) {
	f(ctx, route)
}
