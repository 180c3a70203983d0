package msoauth

import (
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// TokenIdentity extracts the object ID and principal name from a Microsoft
// access token without verifying its signature. The token was just received
// over TLS from the token endpoint, so this is a convenience for logging and
// user keying, not an authentication decision.
func TokenIdentity(accessToken string) (id, principal string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return "", ""
	}
	id, _ = claims["oid"].(string)
	principal, _ = claims["preferred_username"].(string)
	if principal == "" {
		principal, _ = claims["upn"].(string)
	}
	return id, principal
}

func extraString(tok *oauth2.Token, key string) string {
	s, _ := tok.Extra(key).(string)
	return s
}

// extraInt reads a numeric extra field; the provider encodes these as JSON
// numbers but form-encoded responses surface them as strings.
func extraInt(tok *oauth2.Token, key string) int {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}
