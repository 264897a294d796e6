package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. Used when no Redis URL is
// configured and by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory cache store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Read retrieves a cache entry, returning (nil, nil) when absent or expired
func (s *MemoryStore) Read(ctx context.Context, domainKey string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	me, ok := s.entries[domainKey]
	if !ok {
		return nil, nil
	}
	if !me.expiresAt.IsZero() && s.now().After(me.expiresAt) {
		return nil, nil
	}

	entry := me.entry
	return &entry, nil
}

// Write stores a cache entry with the given TTL
func (s *MemoryStore) Write(ctx context.Context, entry *Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	me := memoryEntry{entry: *entry}
	if ttl > 0 {
		me.expiresAt = s.now().Add(ttl)
	}
	s.entries[entry.DomainKey] = me
	return nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
