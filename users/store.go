package users

import "sync"

// Store is a concurrency-safe map of identity key to user, with the same
// get-or-create contract as the session store.
type Store struct {
	factory Factory

	mu    sync.RWMutex
	items map[string]*User
}

// NewStore creates a user store backed by the given factory.
func NewStore(factory Factory) *Store {
	if factory == nil {
		factory = NewUser
	}
	return &Store{
		factory: factory,
		items:   make(map[string]*User),
	}
}

// GetOrCreate returns the user for id, building it on first use.
func (st *Store) GetOrCreate(id string) *User {
	st.mu.Lock()
	defer st.mu.Unlock()
	u, ok := st.items[id]
	if !ok {
		u = st.factory(id)
		st.items[u.ID] = u
	}
	return u
}

// Get returns the user for id, if present.
func (st *Store) Get(id string) (*User, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	u, ok := st.items[id]
	return u, ok
}

// Upsert stores or replaces a user record.
func (st *Store) Upsert(u *User) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.items[u.ID] = u
}

// Len reports the number of known users.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.items)
}
