package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// TokenData is the raw payload returned by the identity provider's token
// endpoint. It is stored opaquely on the session once the exchange succeeds.
type TokenData struct {
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	ExtExpiresIn int    `json:"ext_expires_in"`
	AccessToken  string `json:"access_token"`
}

// Session tracks the authentication state of one browser, keyed by an opaque
// token carried in a cookie. A session moves through anonymous →
// pending (verifier set) → exchanging (code set) → authenticated, and the
// authenticated flag is never reverted.
//
// All field access goes through methods guarded by a per-session mutex so
// overlapping requests from the same browser observe consistent state.
type Session struct {
	token string // immutable after creation

	mu            sync.Mutex
	authenticated bool
	verifier      string // ephemeral PKCE verifier, server-side only
	code          string // ephemeral authorization code from the callback
	tokenData     *TokenData
	userID        string
	createdAt     time.Time
	lastSeen      time.Time
}

// New creates a session for the given token. It is the default session
// factory used by the stores.
func New(token string) *Session {
	now := time.Now()
	return &Session{
		token:     token,
		createdAt: now,
		lastSeen:  now,
	}
}

// Factory constructs a session for a token the store has not seen before.
// Construction must always succeed.
type Factory func(token string) *Session

// Token returns the session's immutable identifier.
func (s *Session) Token() string {
	return s.token
}

// Authenticated reports whether the bearer of this session has completed
// authentication.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// MarkAuthenticated flips the session to authenticated without an OAuth
// exchange. Used by the no-auth strategy.
func (s *Session) MarkAuthenticated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
}

// BeginAuthFlow records a freshly generated PKCE verifier, invalidating any
// earlier in-flight flow for this session (last writer wins).
func (s *Session) BeginAuthFlow(verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifier = verifier
	s.code = ""
}

// Verifier returns the pending PKCE verifier, or "" if no flow is in flight.
func (s *Session) Verifier() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifier
}

// StoreCode records the authorization code received on the provider callback.
func (s *Session) StoreCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
}

// Code returns the authorization code recorded during an exchange.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// CompleteAuthFlow stores the provider token payload and marks the session
// authenticated in a single critical section, so a partially updated session
// can never be observed as authenticated.
func (s *Session) CompleteAuthFlow(td TokenData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenData = &td
	s.verifier = ""
	s.authenticated = true
}

// TokenData returns a copy of the stored provider token payload, or nil if
// the session has not completed an exchange.
func (s *Session) TokenData() *TokenData {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokenData == nil {
		return nil
	}
	td := *s.tokenData
	return &td
}

// SetUserID links the session to a hydrated user record.
func (s *Session) SetUserID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
}

// UserID returns the linked user ID, or "" if the session was never hydrated.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Touch refreshes the last-access timestamp. The stores call it on every
// lookup so TTL eviction is keyed on activity rather than creation.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}

// LastSeen returns the time of the most recent lookup.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// sessionRecord is the serialized form used by persistent stores.
type sessionRecord struct {
	Token         string     `json:"token"`
	Authenticated bool       `json:"authenticated"`
	Verifier      string     `json:"verifier,omitempty"`
	Code          string     `json:"code,omitempty"`
	TokenData     *TokenData `json:"token_data,omitempty"`
	UserID        string     `json:"user_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (s *Session) snapshot() sessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := sessionRecord{
		Token:         s.token,
		Authenticated: s.authenticated,
		Verifier:      s.verifier,
		Code:          s.code,
		UserID:        s.userID,
		CreatedAt:     s.createdAt,
	}
	if s.tokenData != nil {
		td := *s.tokenData
		rec.TokenData = &td
	}
	return rec
}

func (s *Session) restore(rec sessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = rec.Authenticated
	s.verifier = rec.Verifier
	s.code = rec.Code
	s.tokenData = rec.TokenData
	s.userID = rec.UserID
	if !rec.CreatedAt.IsZero() {
		s.createdAt = rec.CreatedAt
	}
}

// NewToken mints a cryptographically random URL-safe session token with 32
// bytes of entropy. Collisions are negligible, so no uniqueness check is made.
func NewToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
