package sessions

// Store maps opaque tokens to sessions.
//
// GetOrCreate is atomic per token: concurrent lookups of a not-yet-known
// token must resolve to one Session, and repeated lookups of the same token
// return the identical *Session for the life of the store. Creation never
// fails; unknown tokens are built with the configured Factory.
type Store interface {
	// GetOrCreate returns the session for token, creating it on first use.
	GetOrCreate(token string) *Session

	// Persist writes the session's current state to durable storage, if the
	// implementation has any. Failures are logged, never surfaced — the
	// in-process session stays authoritative.
	Persist(s *Session)

	// Len reports the number of live sessions.
	Len() int

	// Close releases background resources (eviction sweeps, connections).
	Close()
}
