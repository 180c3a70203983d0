package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// ChainMiddleware composes middleware around a handler, applied in reverse
// order so the first listed runs outermost.
func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// GatingMiddleware is the authentication gate. Bypass routes and favicon
// requests pass straight through; everything else is forwarded only once the
// session is authenticated, otherwise the installed strategy decides between
// authenticating in place and redirecting to a login flow.
func (s *Server) GatingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.bypass[r.URL.Path]; ok {
			next(w, r)
			return
		}
		if strings.Contains(r.URL.Path, routeFavicon) {
			next(w, r)
			return
		}

		// Reuse the session the binder attached; resolve directly only if
		// this middleware runs outside the standard pipeline, so one request
		// never mints two tokens.
		session := SessionFromContext(r.Context())
		if session == nil {
			var ok bool
			if session, ok = s.resolveSession(w, r); !ok {
				return
			}
		}

		if !session.Authenticated() {
			log.Debug().Str("path", r.URL.Path).Msg("session not authenticated")
			result, err := s.strategy.OnUnauthenticated(session)
			if err != nil {
				writeJSONError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if !result.Continue() {
				s.redirectPageHandler(w, result.RedirectURL)
				return
			}
		}

		next(w, r)
	}
}

// LoggingMiddleware tags each request with an ID and logs its outcome.
func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()
		next(w, r)
		log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

// RecoverMiddleware converts handler panics into 500 responses; an
// authentication failure must never take the process down.
func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("recovered from handler panic")
				writeJSONError(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// writeJSONError writes an error payload with a real status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
