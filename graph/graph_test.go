package graph_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arklight/sessiond/graph"
	"github.com/stretchr/testify/require"
)

func TestMeDecodesProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me", r.URL.Path)
		require.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"@odata.context": "https://graph.microsoft.com/v1.0/$metadata#users/$entity",
			"id": "user-1",
			"displayName": "Ada Lovelace",
			"givenName": "Ada",
			"surname": "Lovelace",
			"mail": "ada@example.com",
			"userPrincipalName": "ada@example.com"
		}`))
	}))
	defer srv.Close()

	c := graph.NewClient(graph.WithBaseURL(srv.URL))
	me, err := c.Me(context.Background(), "tok123")
	require.NoError(t, err)
	require.Equal(t, "user-1", me.ID)
	require.Equal(t, "Ada Lovelace", me.DisplayName)
	require.Equal(t, "ada@example.com", me.Mail)
}

func TestMeSurfacesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"InvalidAuthenticationToken"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := graph.NewClient(graph.WithBaseURL(srv.URL))
	_, err := c.Me(context.Background(), "bad-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}
