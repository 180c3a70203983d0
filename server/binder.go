package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/arklight/sessiond/sessions"
)

// ErrMissingState marks a callback request that arrived without the state
// query parameter, leaving no way to bind it to a session.
var ErrMissingState = errors.New("missing state parameter")

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

// ContextKeySession stores the request's resolved session.
const ContextKeySession ContextKey = "session"

// SessionFromContext returns the session bound to the request, or nil if the
// binder did not run.
func SessionFromContext(ctx context.Context) *sessions.Session {
	s, _ := ctx.Value(ContextKeySession).(*sessions.Session)
	return s
}

// SessionBinderMiddleware resolves or mints the session token, refreshes the
// cookie and binds the session onto the request context. It never mutates
// the authenticated flag.
func (s *Server) SessionBinderMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.resolveSession(w, r)
		if !ok {
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeySession, session)
		next(w, r.WithContext(ctx))
	}
}

// resolveSession implements the binder contract. On an OAuth callback path
// the token travels in the state parameter — the browser may not carry the
// cookie yet, and the provider round-trip is the authoritative channel.
// Everywhere else the cookie holds the token, minted fresh when absent.
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request) (*sessions.Session, bool) {
	var token string
	if _, fromState := s.statePaths[r.URL.Path]; fromState {
		token = r.URL.Query().Get("state")
		if token == "" {
			writeJSONError(w, ErrMissingState.Error(), http.StatusBadRequest)
			return nil, false
		}
	} else {
		if cookie, err := r.Cookie(s.config.GetSessionCookieName()); err == nil && cookie.Value != "" {
			token = cookie.Value
		}
		if token == "" {
			token = sessions.NewToken()
		}
	}

	// Sliding window: every pass through the binder refreshes the expiry.
	s.setSessionCookie(w, r, token)
	return s.sessions.GetOrCreate(token), true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.config.GetSessionMaxAge().Seconds()),
	})
}
