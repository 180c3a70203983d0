// Package server assembles the sessioned HTTP surface: token/cookie binding,
// the authentication gate, the installed strategy's routes and the wrapped
// downstream application handler.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/arklight/sessiond/authn"
	"github.com/arklight/sessiond/graph"
	"github.com/arklight/sessiond/internal/config"
	"github.com/arklight/sessiond/msoauth"
	"github.com/arklight/sessiond/sessions"
	"github.com/arklight/sessiond/users"
	"github.com/rs/zerolog/log"
)

// ErrConfiguration marks construction-time configuration problems. These are
// fatal: the server refuses to start rather than run misconfigured.
var ErrConfiguration = errors.New("invalid server configuration")

// Strategy selector values recognized by New.
const (
	StrategyMicrosoft = "msft"
	StrategyNone      = "none"
)

// Server gates every request behind the installed authentication strategy
// and forwards authenticated traffic to the downstream application handler.
type Server struct {
	mux     *http.ServeMux
	handler http.HandlerFunc
	config  config.Config

	sessions       sessions.Store
	users          *users.Store
	sessionFactory sessions.Factory
	userFactory    users.Factory
	strategy       authn.Strategy
	downstream     http.Handler
	graphClient    *graph.Client

	bypass     map[string]struct{}
	statePaths map[string]struct{}
	routes     []string
}

// Option configures a Server.
type Option func(*Server)

// WithSessionStore replaces the default in-memory session store.
func WithSessionStore(store sessions.Store) Option {
	return func(s *Server) { s.sessions = store }
}

// WithSessionFactory sets the session construction function. Passing nil is
// a configuration error.
func WithSessionFactory(f sessions.Factory) Option {
	return func(s *Server) { s.sessionFactory = f }
}

// WithUserFactory sets the user construction function. Passing nil is a
// configuration error.
func WithUserFactory(f users.Factory) Option {
	return func(s *Server) { s.userFactory = f }
}

// WithStrategy installs a custom authentication strategy, overriding the
// config selector.
func WithStrategy(strategy authn.Strategy) Option {
	return func(s *Server) { s.strategy = strategy }
}

// WithDownstream sets the application handler gated requests are forwarded
// to. Defaults to a minimal index page.
func WithDownstream(h http.Handler) Option {
	return func(s *Server) { s.downstream = h }
}

// WithGraphClient overrides the profile client used for post-auth hydration.
func WithGraphClient(c *graph.Client) Option {
	return func(s *Server) { s.graphClient = c }
}

// New builds a sessioned server from configuration. Missing entity
// constructors and unknown strategy selectors are startup-fatal.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		mux:            http.NewServeMux(),
		config:         cfg,
		sessionFactory: sessions.New,
		userFactory:    users.NewUser,
		bypass:         make(map[string]struct{}),
		statePaths:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	// The stores' on-demand creation path depends on these; fail now, not on
	// the first request.
	if s.sessionFactory == nil {
		return nil, fmt.Errorf("%w: session model requires a construction function", ErrConfiguration)
	}
	if s.userFactory == nil {
		return nil, fmt.Errorf("%w: user model requires a construction function", ErrConfiguration)
	}

	if s.sessions == nil {
		var storeOpts []sessions.MemoryOption
		if ttl := cfg.GetSessionTTL(); ttl > 0 {
			storeOpts = append(storeOpts, sessions.WithTTL(ttl))
		}
		s.sessions = sessions.NewMemoryStore(s.sessionFactory, storeOpts...)
	}
	s.users = users.NewStore(s.userFactory)
	if s.graphClient == nil {
		s.graphClient = graph.NewClient()
	}

	if s.strategy == nil {
		strategy, err := s.buildStrategy()
		if err != nil {
			return nil, err
		}
		s.strategy = strategy
	}

	for _, path := range s.strategy.BypassRoutes() {
		s.bypass[path] = struct{}{}
	}
	s.bypass[RouteHealthz] = struct{}{}
	if str, ok := s.strategy.(authn.StateTokenRoutes); ok {
		for _, path := range str.StatePaths() {
			s.statePaths[path] = struct{}{}
		}
	}

	s.initRoutes()
	s.handler = ChainMiddleware(s.mux.ServeHTTP,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.SessionBinderMiddleware,
		s.GatingMiddleware,
	)
	s.logRoutes()

	return s, nil
}

func (s *Server) buildStrategy() (authn.Strategy, error) {
	switch s.config.GetAuthStrategy() {
	case StrategyNone:
		return authn.NoAuth{}, nil
	case StrategyMicrosoft:
		clientID := s.config.GetOAuthClientID()
		if clientID == "" {
			return nil, fmt.Errorf("%w: microsoft oauth strategy requires a client id", ErrConfiguration)
		}
		return msoauth.New(
			msoauth.Config{
				ClientID: clientID,
				Tenant:   s.config.GetOAuthTenant(),
				Scopes:   s.config.GetOAuthScopes(),
				BaseURL:  s.config.GetBaseURL(),
			},
			s.sessions,
			msoauth.WithSuccessHandler(s.loginSuccessHandler),
			msoauth.WithAuthenticatedHook(s.hydrateUser),
		), nil
	default:
		return nil, fmt.Errorf("%w: unknown authentication strategy %q", ErrConfiguration, s.config.GetAuthStrategy())
	}
}

// ServeHTTP runs the full pipeline: logging, recovery, session binding,
// gating, then the route table.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler(w, r)
}

// Sessions exposes the session store, e.g. for a wrapped application that
// wants to inspect its own session.
func (s *Server) Sessions() sessions.Store {
	return s.sessions
}

// Users exposes the hydrated user store.
func (s *Server) Users() *users.Store {
	return s.users
}

// Close releases the session store's background resources.
func (s *Server) Close() {
	s.sessions.Close()
}

// RegisterRouteFunc adds a handler to the server's route table.
func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	// The strategy's routes are mounted as one unit; its paths are already
	// in the bypass set.
	if provider, ok := s.strategy.(authn.RouteProvider); ok {
		for _, route := range provider.Routes() {
			s.RegisterRouteFunc(route.Pattern, route.Handler)
		}
	}

	s.RegisterRouteFunc("GET "+RouteHealthz, s.healthzHandler())
	s.RegisterRouteFunc("/", s.downstreamHandler())
}

func (s *Server) logRoutes() {
	for _, route := range s.routes {
		log.Debug().Str("route", route).Msg("registered route")
	}
}

func (s *Server) downstreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.downstream != nil {
			s.downstream.ServeHTTP(w, r)
			return
		}
		s.indexHandler(w, r)
	}
}

// Helper to determine the scheme (http/https) behind proxies.
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
