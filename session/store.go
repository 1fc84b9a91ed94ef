package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pathpal/pathpal/internal/kv"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// ErrStoreUnavailable is returned when the backing store is unreachable.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Store persists sessions for their TTL. Implementations must treat an
// expired session exactly like a missing one.
type Store interface {
	Get(ctx context.Context, sid string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, sid string) error
	Close()
}

// RedisStore keeps sessions as JSON blobs under a TTL, for deployments
// where more than one instance must see the same sessions.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store with the given key prefix.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "sess"
	}
	return &RedisStore{redis: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(sid string) string {
	return s.prefix + ":" + sid
}

func (s *RedisStore) Get(ctx context.Context, sid string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	data, err := encode(sess)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(sess.SID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sid string) error {
	if err := s.redis.Del(ctx, s.key(sid)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() {}

// MemoryStore keeps sessions in-process. Suitable for a single instance;
// everything vanishes on restart.
type MemoryStore struct {
	entries *kv.Store[[]byte]
}

// NewMemoryStore creates an in-process store sweeping on the session TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{entries: kv.NewStore[[]byte](ttl)}
	s.entries.StartSweeper(ttl)
	return s
}

func (s *MemoryStore) Get(_ context.Context, sid string) (*Session, error) {
	data, ok := s.entries.Get(sid)
	if !ok {
		return nil, ErrNotFound
	}
	return decode(data)
}

func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	data, err := encode(sess)
	if err != nil {
		return err
	}
	s.entries.Put(sess.SID, data)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sid string) error {
	s.entries.Delete(sid)
	return nil
}

func (s *MemoryStore) Close() {
	s.entries.Close()
}

func encode(sess *Session) ([]byte, error) {
	sess.Version = schemaVersion
	return json.Marshal(sess)
}

func decode(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session blob: %w", err)
	}
	if sess.Version != schemaVersion {
		return nil, ErrNotFound
	}
	return &sess, nil
}
