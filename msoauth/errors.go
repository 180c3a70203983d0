package msoauth

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedCallback indicates the provider callback arrived without
	// its required query parameters.
	ErrMalformedCallback = errors.New("malformed callback parameters")

	// ErrInvalidOrExpiredState indicates the callback's state value does not
	// resolve to a session with a pending verifier — a replayed or forged
	// state, or a session that never initiated the flow.
	ErrInvalidOrExpiredState = errors.New("invalid or expired state")
)

// TokenExchangeError is returned when the provider rejects the
// code-for-token exchange or the exchange request fails in transit. The
// exchange is never retried; authorization codes are single-use, so the user
// must restart the login flow.
type TokenExchangeError struct {
	Status int // 0 for transport failures
	Body   string
}

func (e *TokenExchangeError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("token exchange failed: %s", e.Body)
	}
	return fmt.Sprintf("token exchange failed: status %d: %s", e.Status, e.Body)
}
