package msoauth_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/arklight/sessiond/msoauth"
	"github.com/arklight/sessiond/sessions"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newHandler(t *testing.T, store sessions.Store, opts ...msoauth.Option) *msoauth.Handler {
	t.Helper()
	cfg := msoauth.Config{
		ClientID: "client-123",
		Tenant:   "common",
		Scopes:   "User.Read",
		BaseURL:  "http://localhost:8080",
	}
	return msoauth.New(cfg, store, opts...)
}

func callbackMux(h *msoauth.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	for _, rt := range h.Routes() {
		mux.HandleFunc(rt.Pattern, rt.Handler)
	}
	return mux
}

func TestBuildAuthCodeURLParameters(t *testing.T) {
	store := sessions.NewMemoryStore(nil)
	defer store.Close()
	h := newHandler(t, store)

	s := store.GetOrCreate("token-a")
	rawURL := h.BuildAuthCodeURL(s)

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	require.Equal(t, "login.microsoftonline.com", u.Host)
	require.Equal(t, "/common/oauth2/v2.0/authorize", u.Path)

	q := u.Query()
	require.Equal(t, "client-123", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "http://localhost:8080/microsoft_oauth/callback", q.Get("redirect_uri"))
	require.Equal(t, "query", q.Get("response_mode"))
	require.Equal(t, "User.Read", q.Get("scope"))
	require.Equal(t, "token-a", q.Get("state"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))

	verifier := s.Verifier()
	require.NotEmpty(t, verifier, "verifier is stored server-side on the session")
	require.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))
	require.NotContains(t, rawURL, verifier, "verifier never travels in the URL")
}

func TestBuildAuthCodeURLFreshVerifierEachCall(t *testing.T) {
	store := sessions.NewMemoryStore(nil)
	defer store.Close()
	h := newHandler(t, store)
	s := store.GetOrCreate("token-a")

	h.BuildAuthCodeURL(s)
	first := s.Verifier()
	h.BuildAuthCodeURL(s)
	second := s.Verifier()

	require.NotEmpty(t, first)
	require.NotEmpty(t, second)
	require.NotEqual(t, first, second, "re-initiation must mint a new verifier")
}

// fakeTokenEndpoint returns a provider token endpoint and a pointer to the
// form values of the last exchange request it received.
func fakeTokenEndpoint(t *testing.T, status int, body string) (*httptest.Server, *url.Values) {
	t.Helper()
	var lastForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		lastForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &lastForm
}

func testEndpoint(srv *httptest.Server) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func TestCallbackSuccessAuthenticatesSession(t *testing.T) {
	srv, lastForm := fakeTokenEndpoint(t, http.StatusOK,
		`{"token_type":"Bearer","scope":"User.Read","expires_in":3599,"ext_expires_in":3599,"access_token":"tok123"}`)

	store := sessions.NewMemoryStore(nil)
	defer store.Close()

	var hooked *sessions.Session
	h := newHandler(t, store,
		msoauth.WithEndpoint(testEndpoint(srv)),
		msoauth.WithAuthenticatedHook(func(s *sessions.Session, td sessions.TokenData) {
			hooked = s
		}),
	)

	s := store.GetOrCreate("token-a")
	h.BuildAuthCodeURL(s)
	verifier := s.Verifier()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/microsoft_oauth/callback?code=code-x&state=token-a&session_state=ss-1", nil)
	callbackMux(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Login successful")

	require.True(t, s.Authenticated())
	td := s.TokenData()
	require.NotNil(t, td)
	require.Equal(t, "tok123", td.AccessToken)
	require.Equal(t, "Bearer", td.TokenType)
	require.Equal(t, 3599, td.ExpiresIn)
	require.Same(t, s, hooked)

	require.Equal(t, "code-x", lastForm.Get("code"))
	require.Equal(t, "authorization_code", lastForm.Get("grant_type"))
	require.Equal(t, verifier, lastForm.Get("code_verifier"), "exchange proves possession of the stored verifier")
	require.Equal(t, "client-123", lastForm.Get("client_id"))
}

func TestCallbackUnknownStateRejected(t *testing.T) {
	store := sessions.NewMemoryStore(nil)
	defer store.Close()
	h := newHandler(t, store)

	// An unrelated pending session must stay untouched.
	other := store.GetOrCreate("token-a")
	h.BuildAuthCodeURL(other)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/microsoft_oauth/callback?code=code-x&state=token-z&session_state=ss-1", nil)
	callbackMux(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid or expired state")
	require.False(t, other.Authenticated())
}

func TestCallbackMissingParametersRejected(t *testing.T) {
	store := sessions.NewMemoryStore(nil)
	defer store.Close()
	h := newHandler(t, store)

	for _, target := range []string{
		"/microsoft_oauth/callback?state=token-a&session_state=ss-1",
		"/microsoft_oauth/callback?code=code-x&session_state=ss-1",
		"/microsoft_oauth/callback?code=code-x&state=token-a",
	} {
		rec := httptest.NewRecorder()
		callbackMux(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		require.Contains(t, rec.Body.String(), "malformed callback")
	}
}

func TestCallbackProviderErrorPassthrough(t *testing.T) {
	store := sessions.NewMemoryStore(nil)
	defer store.Close()
	h := newHandler(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/microsoft_oauth/callback?error=access_denied&error_description=user+cancelled", nil)
	callbackMux(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "access_denied")
}

func TestCallbackExchangeFailureLeavesSessionUnauthenticated(t *testing.T) {
	srv, _ := fakeTokenEndpoint(t, http.StatusUnauthorized,
		`{"error":"invalid_grant","error_description":"AADSTS70008: expired code"}`)

	store := sessions.NewMemoryStore(nil)
	defer store.Close()
	h := newHandler(t, store, msoauth.WithEndpoint(testEndpoint(srv)))

	s := store.GetOrCreate("token-a")
	h.BuildAuthCodeURL(s)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/microsoft_oauth/callback?code=code-x&state=token-a&session_state=ss-1", nil)
	callbackMux(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "token exchange failed")
	require.False(t, s.Authenticated())
	require.Nil(t, s.TokenData())
}

func TestCallbackExchangeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	store := sessions.NewMemoryStore(nil)
	defer store.Close()
	h := newHandler(t, store,
		msoauth.WithEndpoint(testEndpoint(srv)),
		msoauth.WithExchangeTimeout(20*time.Millisecond),
	)

	s := store.GetOrCreate("token-a")
	h.BuildAuthCodeURL(s)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/microsoft_oauth/callback?code=code-x&state=token-a&session_state=ss-1", nil)
	callbackMux(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.False(t, s.Authenticated())
}

func TestRouteTableAndBypass(t *testing.T) {
	store := sessions.NewMemoryStore(nil)
	defer store.Close()
	h := newHandler(t, store)

	require.Len(t, h.Routes(), 1)
	require.Equal(t, "GET /microsoft_oauth/callback", h.Routes()[0].Pattern)
	require.Equal(t, []string{"/microsoft_oauth/callback"}, h.BypassRoutes())
	require.Equal(t, []string{"/microsoft_oauth/callback"}, h.StatePaths())
}

func TestTokenIdentity(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"oid":                "oid-1",
		"preferred_username": "ada@example.com",
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	id, principal := msoauth.TokenIdentity(raw)
	require.Equal(t, "oid-1", id)
	require.Equal(t, "ada@example.com", principal)

	id, principal = msoauth.TokenIdentity("not-a-jwt")
	require.Empty(t, id)
	require.Empty(t, principal)
}
