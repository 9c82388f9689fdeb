package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is the persisted session state: the opaque token and the
// JSON-serialized user. Validity is inferred only from presence and
// parseability; there is no embedded expiry metadata.
type Record struct {
	Token string
	User  string
}

// Store abstracts session persistence so the gate can be exercised in tests
// without a running Redis.
type Store interface {
	Get(ctx context.Context, token string) (*Record, error)
	Save(ctx context.Context, rec Record, ttl time.Duration) error
	Clear(ctx context.Context, token string) error
}

const keyPrefix = "session:"

// RedisStore keeps session records in a Redis hash per token.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client as a session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get loads the record for a token. A missing session yields nil, not an error.
func (s *RedisStore) Get(ctx context.Context, token string) (*Record, error) {
	values, err := s.client.HGetAll(ctx, keyPrefix+token).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return &Record{Token: values["token"], User: values["user"]}, nil
}

// Save persists the record under its token with the given TTL.
func (s *RedisStore) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	key := keyPrefix + rec.Token
	if err := s.client.HSet(ctx, key, "token", rec.Token, "user", rec.User).Err(); err != nil {
		return err
	}
	if ttl > 0 {
		return s.client.Expire(ctx, key, ttl).Err()
	}
	return nil
}

// Clear removes both persisted fields by deleting the session key.
func (s *RedisStore) Clear(ctx context.Context, token string) error {
	return s.client.Del(ctx, keyPrefix+token).Err()
}

// MemoryStore is an in-process store used in tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(ctx context.Context, token string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[token]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Token] = rec
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, token)
	return nil
}

// Len reports the number of live sessions. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
