// Package msoauth implements the OAuth 2.0 authorization-code-with-PKCE
// exchange against Microsoft identity. It owns its callback route table and
// is installed into the server as the authentication strategy.
package msoauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/arklight/sessiond/authn"
	"github.com/arklight/sessiond/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	// CallbackPath is the provider redirect target, fixed per deployment.
	CallbackPath = "/microsoft_oauth/callback"

	defaultTenant          = "common"
	defaultScopes          = "User.Read"
	defaultExchangeTimeout = 15 * time.Second
)

// Config carries the deployment settings for the exchange engine. ClientID
// comes from the local deployment configuration, never hardcoded.
type Config struct {
	ClientID string
	Tenant   string // defaults to "common"
	Scopes   string // space-separated, defaults to "User.Read"
	BaseURL  string // this server's externally visible base URL
}

// SuccessHandler renders the response for a freshly authenticated session.
type SuccessHandler func(w http.ResponseWriter, r *http.Request, s *sessions.Session)

// AuthenticatedHook runs after a session turns authenticated, e.g. to
// hydrate a user profile. It must not block the callback response for long.
type AuthenticatedHook func(s *sessions.Session, td sessions.TokenData)

// Handler drives the per-session state machine
// anonymous → pending → exchanging → authenticated. It never skips states:
// a callback for a session without a recorded verifier is rejected.
type Handler struct {
	cfg       Config
	sessions  sessions.Store
	oauth     *oauth2.Config
	timeout   time.Duration
	client    *http.Client // non-nil only when overridden for tests
	onSuccess SuccessHandler
	onAuth    AuthenticatedHook
}

// Option configures a Handler.
type Option func(*Handler)

// WithExchangeTimeout bounds the provider token-exchange call.
func WithExchangeTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithEndpoint overrides the provider endpoints, typically for tests.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(h *Handler) { h.oauth.Endpoint = ep }
}

// WithHTTPClient overrides the HTTP client used for the exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Handler) { h.client = c }
}

// WithSuccessHandler overrides the response rendered after authentication.
func WithSuccessHandler(sh SuccessHandler) Option {
	return func(h *Handler) { h.onSuccess = sh }
}

// WithAuthenticatedHook installs a post-authentication hook.
func WithAuthenticatedHook(hook AuthenticatedHook) Option {
	return func(h *Handler) { h.onAuth = hook }
}

// New creates the exchange engine with explicit dependencies.
func New(cfg Config, store sessions.Store, opts ...Option) *Handler {
	if cfg.Tenant == "" {
		cfg.Tenant = defaultTenant
	}
	if cfg.Scopes == "" {
		cfg.Scopes = defaultScopes
	}

	h := &Handler{
		cfg:      cfg,
		sessions: store,
		timeout:  defaultExchangeTimeout,
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			Endpoint:    microsoft.AzureADEndpoint(cfg.Tenant),
			RedirectURL: strings.TrimSuffix(cfg.BaseURL, "/") + CallbackPath,
			Scopes:      strings.Fields(cfg.Scopes),
		},
		onSuccess: defaultSuccessHandler,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the engine's route table for registration into the host
// server.
func (h *Handler) Routes() []authn.Route {
	return []authn.Route{
		{Pattern: "GET " + CallbackPath, Handler: h.handleCallback},
	}
}

// BypassRoutes exempts the callback from the authentication gate; it
// authenticates itself.
func (h *Handler) BypassRoutes() []string {
	return []string{CallbackPath}
}

// StatePaths lists paths whose session token travels in the state query
// parameter instead of the cookie.
func (h *Handler) StatePaths() []string {
	return []string{CallbackPath}
}

// OnUnauthenticated starts a fresh authorization flow and redirects the
// browser to the provider. The session is only marked authenticated later,
// by the callback.
func (h *Handler) OnUnauthenticated(s *sessions.Session) (authn.Result, error) {
	return authn.Result{RedirectURL: h.BuildAuthCodeURL(s)}, nil
}

// BuildAuthCodeURL generates a fresh PKCE verifier, records it on the
// session and returns the provider authorization URL. Each call produces a
// new verifier, so concurrent re-initiations invalidate earlier ones.
func (h *Handler) BuildAuthCodeURL(s *sessions.Session) string {
	verifier := oauth2.GenerateVerifier()
	s.BeginAuthFlow(verifier)

	// state carries the session token across the provider round-trip; the
	// verifier stays server-side, only its S256 challenge goes in the URL.
	url := h.oauth.AuthCodeURL(s.Token(),
		oauth2.SetAuthURLParam("response_mode", "query"),
		oauth2.S256ChallengeOption(verifier),
	)
	log.Debug().Str("token", s.Token()[:minInt(8, len(s.Token()))]).Msg("built authorization URL")
	return url
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")
	sessionState := q.Get("session_state")

	if errParam := q.Get("error"); errParam != "" {
		log.Warn().Str("error", errParam).Str("description", q.Get("error_description")).
			Msg("provider returned authorization error")
		writeError(w, errParam+": "+q.Get("error_description"), http.StatusBadRequest)
		return
	}

	if code == "" || state == "" || sessionState == "" {
		writeError(w, ErrMalformedCallback.Error(), http.StatusBadRequest)
		return
	}

	session := h.sessions.GetOrCreate(state)
	verifier := session.Verifier()
	if verifier == "" {
		// Either a forged/replayed state or a session that never initiated
		// the flow. No session's authenticated flag is touched.
		writeError(w, ErrInvalidOrExpiredState.Error(), http.StatusUnauthorized)
		return
	}
	session.StoreCode(code)

	td, exchErr := h.exchange(r.Context(), code, verifier)
	if exchErr != nil {
		log.Error().Int("status", exchErr.Status).Str("body", exchErr.Body).
			Msg("token exchange failed")
		writeError(w, exchErr.Error(), http.StatusBadGateway)
		return
	}

	// Payload, flag and cookie land together: the binder already queued the
	// Set-Cookie for this response, and CompleteAuthFlow applies the rest in
	// one critical section.
	session.CompleteAuthFlow(*td)
	h.sessions.Persist(session)

	if id, principal := TokenIdentity(td.AccessToken); principal != "" {
		log.Info().Str("principal", principal).Str("oid", id).Msg("session authenticated")
	} else {
		log.Info().Msg("session authenticated")
	}

	if h.onAuth != nil {
		h.onAuth(session, *td)
	}
	h.onSuccess(w, r, session)
}

// exchange performs the code-for-token POST under a bounded timeout. Only
// the individual session is touched around this call; no store-wide lock is
// held while it is in flight.
func (h *Handler) exchange(ctx context.Context, code, verifier string) (*sessions.TokenData, *TokenExchangeError) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if h.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, h.client)
	}

	tok, err := h.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &TokenExchangeError{
				Status: retrieveErr.Response.StatusCode,
				Body:   string(retrieveErr.Body),
			}
		}
		return nil, &TokenExchangeError{Body: err.Error()}
	}

	return &sessions.TokenData{
		TokenType:    tok.TokenType,
		Scope:        extraString(tok, "scope"),
		ExpiresIn:    extraInt(tok, "expires_in"),
		ExtExpiresIn: extraInt(tok, "ext_expires_in"),
		AccessToken:  tok.AccessToken,
	}, nil
}

func defaultSuccessHandler(w http.ResponseWriter, r *http.Request, s *sessions.Session) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<html><body><h2>Login successful</h2><p><a href=\"/\">Return to the application</a></p></body></html>"))
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
