package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	entry    Entry
	expireAt time.Time // zero => no TTL
}

// MemoryStore is a concurrency-safe in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// Get returns the entry for key if present and not expired.
func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}

	if !e.expireAt.IsZero() && !s.now().Before(e.expireAt) {
		s.mu.Lock()
		// Re-check; a concurrent Set may have replaced it.
		if cur, ok := s.data[key]; ok && cur.expireAt.Equal(e.expireAt) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return Entry{}, false, nil
	}
	return e.entry, true, nil
}

// Set stores value under key for ttl.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	e := memoryEntry{entry: Entry{Value: value, StoredAt: now}}
	if ttl > 0 {
		e.expireAt = now.Add(ttl)
	}

	s.mu.Lock()
	s.data[key] = e
	s.mu.Unlock()
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
