// Package idempotency remembers which command event ids were already applied
// so redelivered messages are skipped.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Store marks keys as processed.
type Store interface {
	// Check atomically marks key and reports whether it was already marked.
	Check(ctx context.Context, key string) (alreadyProcessed bool, err error)
	// Release forgets key so a failed attempt can be redelivered.
	Release(ctx context.Context, key string) error
}

// NewStore picks Redis, then Postgres, then memory. Memory is refused in
// production.
func NewStore(redisClient *redis.Client, pool *pgxpool.Pool, ttl time.Duration, isProd bool) (Store, error) {
	if redisClient != nil {
		return NewRedisStore(redisClient, ttl), nil
	}
	if pool != nil {
		return NewPostgresStore(pool), nil
	}
	if isProd {
		return nil, errors.New("idempotency: redis or postgres is required in production")
	}
	return NewMemoryStore(ttl), nil
}

// MemoryStore is process-local.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStore) Check(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.seen[key]; ok && (s.ttl <= 0 || now.Before(exp)) {
		return true, nil
	}
	s.seen[key] = now.Add(s.ttl)
	return false, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
	return nil
}

// RedisStore uses SET NX with a TTL.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: "comments:cmd:"}
}

func (s *RedisStore) Check(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.prefix+key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// PostgresStore uses the comment_processed_commands table. Entries never
// expire.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Check(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO comment_processed_commands (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`, key)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 0, nil
}

func (s *PostgresStore) Release(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM comment_processed_commands WHERE event_id = $1`, key)
	return err
}

// ParseRedisURL returns nil for an empty url.
func ParseRedisURL(raw string) (*redis.Client, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(raw)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}
