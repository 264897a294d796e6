package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one cached payload for a (domain, logical key) pair. Mutated only
// by the fetch orchestrator; freshness is derived from LastRefreshedAt, never
// stored.
type Entry struct {
	DomainKey       string          `json:"domain_key"`
	Payload         json.RawMessage `json:"payload"`
	LastRefreshedAt time.Time       `json:"last_refreshed_at"`
}

// Store persists cache entries. Read returns (nil, nil) on a miss.
// Write must be all-or-nothing: a cancelled refresh never leaves a
// half-written entry.
type Store interface {
	Read(ctx context.Context, domainKey string) (*Entry, error)
	Write(ctx context.Context, entry *Entry, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// RedisStore implements Store on Redis. Entries are stored as JSON under
// cache:{domainKey} with a TTL at the domain's hard cutoff, so expiry and
// the rejection boundary coincide.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed cache store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(domainKey string) string {
	return fmt.Sprintf("cache:%s", domainKey)
}

// Read retrieves a cache entry, returning (nil, nil) when absent
func (s *RedisStore) Read(ctx context.Context, domainKey string) (*Entry, error) {
	data, err := s.client.Get(ctx, s.key(domainKey)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry %s: %w", domainKey, err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal cache entry %s: %w", domainKey, err)
	}

	return &entry, nil
}

// Write stores a cache entry with the given TTL as a single SET
func (s *RedisStore) Write(ctx context.Context, entry *Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry %s: %w", entry.DomainKey, err)
	}

	if err := s.client.Set(ctx, s.key(entry.DomainKey), data, ttl).Err(); err != nil {
		return fmt.Errorf("write cache entry %s: %w", entry.DomainKey, err)
	}

	return nil
}

// Ping checks Redis connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
