// Package authn defines the authentication strategy contract consulted by the
// gating middleware, and the trivial no-auth strategy.
package authn

import (
	"net/http"

	"github.com/arklight/sessiond/sessions"
)

// Result is the outcome of consulting a strategy for an unauthenticated
// session. A zero Result means "continue": the session is now authenticated
// and the request may proceed. A non-empty RedirectURL halts the request and
// sends the browser there instead.
type Result struct {
	RedirectURL string
}

// Continue reports whether the request may proceed downstream.
func (r Result) Continue() bool {
	return r.RedirectURL == ""
}

// Strategy decides what happens to requests whose session is not yet
// authenticated. The gating middleware is agnostic to which variant is
// installed; any implementation of this two-outcome contract can be injected.
type Strategy interface {
	// OnUnauthenticated either authenticates the session as a side effect
	// (Continue) or yields a redirect the middleware must respond with.
	OnUnauthenticated(s *sessions.Session) (Result, error)

	// BypassRoutes lists paths exempt from the authentication gate, such as
	// a callback route that authenticates itself.
	BypassRoutes() []string
}

// Route is one entry of a strategy's route table, with the pattern in
// net/http "METHOD /path" form.
type Route struct {
	Pattern string
	Handler http.HandlerFunc
}

// RouteProvider is implemented by strategies that bring their own routes,
// registered into the host server as one unit.
type RouteProvider interface {
	Routes() []Route
}

// StateTokenRoutes is implemented by strategies whose callback carries the
// session token in the state query parameter instead of the cookie.
type StateTokenRoutes interface {
	StatePaths() []string
}

// NoAuth marks every session authenticated on its first gated request. Used
// by deployments that do not require login.
type NoAuth struct{}

// OnUnauthenticated flips the session to authenticated unconditionally.
func (NoAuth) OnUnauthenticated(s *sessions.Session) (Result, error) {
	s.MarkAuthenticated()
	return Result{}, nil
}

// BypassRoutes returns nothing; no-auth has no routes of its own.
func (NoAuth) BypassRoutes() []string {
	return nil
}
