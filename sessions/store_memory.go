package sessions

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultSweepInterval = time.Minute

// MemoryStore is the default in-process session store. A single mutex guards
// the creation path so two concurrent lookups for the same unknown token can
// never produce two distinct sessions.
//
// Server-side entries would otherwise outlive the cookie that references
// them, so the store optionally evicts sessions idle for longer than a TTL.
type MemoryStore struct {
	factory Factory

	mu    sync.Mutex
	items map[string]*Session

	ttl       time.Duration
	sweepTick time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTTL enables eviction of sessions idle for longer than d.
func WithTTL(d time.Duration) MemoryOption {
	return func(ms *MemoryStore) { ms.ttl = d }
}

// WithSweepInterval overrides how often the eviction sweep runs.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(ms *MemoryStore) { ms.sweepTick = d }
}

// NewMemoryStore creates a store backed by the given session factory.
func NewMemoryStore(factory Factory, opts ...MemoryOption) *MemoryStore {
	if factory == nil {
		factory = New
	}
	ms := &MemoryStore{
		factory:   factory,
		items:     make(map[string]*Session),
		sweepTick: defaultSweepInterval,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}
	if ms.ttl > 0 {
		go ms.sweep()
	}
	return ms
}

// GetOrCreate returns the one session for token, building it on first use.
func (ms *MemoryStore) GetOrCreate(token string) *Session {
	ms.mu.Lock()
	s, ok := ms.items[token]
	if !ok {
		s = ms.factory(token)
		ms.items[token] = s
		log.Debug().Str("token", abbrevToken(token)).Msg("session created")
	}
	ms.mu.Unlock()

	s.Touch()
	return s
}

// Persist is a no-op; memory is the storage.
func (ms *MemoryStore) Persist(*Session) {}

// Len reports the number of live sessions.
func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.items)
}

// Close stops the eviction sweep.
func (ms *MemoryStore) Close() {
	ms.closeOnce.Do(func() { close(ms.done) })
}

func (ms *MemoryStore) sweep() {
	ticker := time.NewTicker(ms.sweepTick)
	defer ticker.Stop()
	for {
		select {
		case <-ms.done:
			return
		case <-ticker.C:
			ms.evictIdle()
		}
	}
}

func (ms *MemoryStore) evictIdle() {
	cutoff := time.Now().Add(-ms.ttl)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	for token, s := range ms.items {
		if s.LastSeen().Before(cutoff) {
			delete(ms.items, token)
			log.Debug().Str("token", abbrevToken(token)).Msg("session evicted")
		}
	}
}

// abbrevToken shortens tokens for log output; full tokens never hit the logs.
func abbrevToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
