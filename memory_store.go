package totpgate

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	tx        *Transaction
	expiresAt time.Time
}

// MemoryStore is an in-process StateStore for tests and single-instance
// embedding. Production deployments use [RedisStore]; suspended state must
// survive whatever instance handles the post-back.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStore describes the newmemorystore operation and its observable behavior.
//
// NewMemoryStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) key(purpose, id string) string {
	return purpose + ":" + id
}

// Save stores a deep copy of the transaction under id.
func (s *MemoryStore) Save(_ context.Context, purpose, id string, tx *Transaction, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.key(purpose, id)] = memoryEntry{
		tx:        tx.Clone(),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Load returns a deep copy so callers cannot mutate stored state.
func (s *MemoryStore) Load(_ context.Context, purpose, id string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[s.key(purpose, id)]
	if !ok {
		return nil, ErrStateNotFound
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.entries, s.key(purpose, id))
		return nil, ErrStateExpired
	}
	return entry.tx.Clone(), nil
}

// Delete removes the entry and reports whether this call removed it.
func (s *MemoryStore) Delete(_ context.Context, purpose, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(purpose, id)
	if _, ok := s.entries[key]; !ok {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}
