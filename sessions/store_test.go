package sessions_test

import (
	"sync"
	"testing"
	"time"

	"github.com/arklight/sessiond/sessions"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	store := sessions.NewMemoryStore(nil)
	defer store.Close()

	first := store.GetOrCreate("token-a")
	second := store.GetOrCreate("token-a")
	require.Same(t, first, second)
	require.Equal(t, "token-a", first.Token())
}

func TestGetOrCreateConcurrentSingleton(t *testing.T) {
	store := sessions.NewMemoryStore(nil)
	defer store.Close()

	const goroutines = 64
	results := make([]*sessions.Session, goroutines)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			results[i] = store.GetOrCreate("shared-token")
		}(i)
	}
	start.Done()
	done.Wait()

	for i := 1; i < goroutines; i++ {
		require.Same(t, results[0], results[i])
	}
	require.Equal(t, 1, store.Len())
}

func TestDistinctTokensDistinctSessions(t *testing.T) {
	store := sessions.NewMemoryStore(nil)
	defer store.Close()

	a := store.GetOrCreate("token-a")
	b := store.GetOrCreate("token-b")
	require.NotSame(t, a, b)
	require.Equal(t, 2, store.Len())
}

func TestCustomFactory(t *testing.T) {
	var built []string
	store := sessions.NewMemoryStore(func(token string) *sessions.Session {
		built = append(built, token)
		return sessions.New(token)
	})
	defer store.Close()

	store.GetOrCreate("token-a")
	store.GetOrCreate("token-a")
	require.Equal(t, []string{"token-a"}, built)
}

func TestTTLEvictionDropsIdleSessions(t *testing.T) {
	store := sessions.NewMemoryStore(nil,
		sessions.WithTTL(30*time.Millisecond),
		sessions.WithSweepInterval(10*time.Millisecond),
	)
	defer store.Close()

	store.GetOrCreate("idle-token")
	require.Equal(t, 1, store.Len())

	require.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestTTLKeepsActiveSessions(t *testing.T) {
	store := sessions.NewMemoryStore(nil,
		sessions.WithTTL(100*time.Millisecond),
		sessions.WithSweepInterval(10*time.Millisecond),
	)
	defer store.Close()

	for i := 0; i < 10; i++ {
		store.GetOrCreate("busy-token")
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, 1, store.Len())
}

func TestNewTokenIsURLSafeAndUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := sessions.NewToken()
		require.GreaterOrEqual(t, len(token), 43) // 32 bytes base64url
		require.NotContains(t, token, "+")
		require.NotContains(t, token, "/")
		require.NotContains(t, token, "=")
		require.False(t, seen[token])
		seen[token] = true
	}
}
