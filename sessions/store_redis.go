package sessions

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redisKeyPrefix   = "sessiond:session:"
	redisCallTimeout = 2 * time.Second
)

// RedisStore keeps live sessions in a process-local identity map, exactly
// like MemoryStore, and additionally writes snapshots through to Redis so
// authenticated sessions survive a process restart.
//
// The identity map is what satisfies the singleton-per-token guarantee;
// Redis only seeds the first in-process lookup after a restart. Redis
// failures degrade to a fresh session and are logged, never surfaced.
type RedisStore struct {
	factory Factory
	client  redis.UniversalClient
	ttl     time.Duration

	mu    sync.Mutex
	local map[string]*Session
}

// NewRedisStore creates a write-through store. ttl bounds how long a
// persisted snapshot is kept; zero keeps snapshots indefinitely.
func NewRedisStore(client redis.UniversalClient, factory Factory, ttl time.Duration) *RedisStore {
	if factory == nil {
		factory = New
	}
	return &RedisStore{
		factory: factory,
		client:  client,
		ttl:     ttl,
		local:   make(map[string]*Session),
	}
}

// GetOrCreate returns the one live session for token, seeding it from a
// persisted snapshot when the process has not seen the token before.
func (rs *RedisStore) GetOrCreate(token string) *Session {
	rs.mu.Lock()
	s, ok := rs.local[token]
	if !ok {
		s = rs.factory(token)
		if rec, found := rs.load(token); found {
			s.restore(rec)
		}
		rs.local[token] = s
	}
	rs.mu.Unlock()

	s.Touch()
	return s
}

// Persist writes the session snapshot to Redis.
func (rs *RedisStore) Persist(s *Session) {
	rec := s.snapshot()
	payload, err := json.Marshal(rec)
	if err != nil {
		log.Error().Err(err).Msg("redis store: marshal session")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisCallTimeout)
	defer cancel()
	if err := rs.client.Set(ctx, redisKeyPrefix+s.Token(), payload, rs.ttl).Err(); err != nil {
		log.Error().Err(err).Str("token", abbrevToken(s.Token())).Msg("redis store: persist session")
	}
}

// Len reports the number of live in-process sessions.
func (rs *RedisStore) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.local)
}

// Close releases the Redis connection.
func (rs *RedisStore) Close() {
	if err := rs.client.Close(); err != nil {
		log.Error().Err(err).Msg("redis store: close")
	}
}

func (rs *RedisStore) load(token string) (sessionRecord, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisCallTimeout)
	defer cancel()

	payload, err := rs.client.Get(ctx, redisKeyPrefix+token).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("token", abbrevToken(token)).Msg("redis store: load session")
		}
		return sessionRecord{}, false
	}

	var rec sessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		log.Warn().Err(err).Str("token", abbrevToken(token)).Msg("redis store: decode session")
		return sessionRecord{}, false
	}
	return rec, true
}
