package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clarident/clarident-go/internal/infrastructure/caching/types"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
)

const redisKeyPrefix = "clarident:cache:"

// RedisStore is the durable tier: entries survive process restart and serve
// as the fallback of record. The redis-side expiration is a physical backstop
// slightly behind the logical expiry carried inside each entry, so logically
// expired entries may linger briefly; the manager never serves them.
type RedisStore struct {
	client *redis.Client
	logger *logging.ChanneledLogger
}

// RedisConfig captures the settings for establishing the connection.
type RedisConfig struct {
	Addr    string
	DB      int
	Timeout time.Duration
}

const defaultRedisTimeout = 5 * time.Second

// NewRedisStore initialises a Redis-backed durable tier and validates
// connectivity with a ping.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *logging.ChanneledLogger) (*RedisStore, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client, logger: logger}, nil
}

// NewRedisStoreWithClient wraps an existing client; used by tests.
func NewRedisStoreWithClient(client *redis.Client, logger *logging.ChanneledLogger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) Tier() types.Tier { return types.TierDurable }

func (s *RedisStore) Get(ctx context.Context, key string) (*types.Entry, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry types.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A corrupt entry is unreadable; drop it rather than erroring
		// every subsequent lookup.
		_ = s.client.Del(ctx, redisKeyPrefix+key).Err()
		return nil, false, fmt.Errorf("redis entry decode %s: %w", key, err)
	}

	entry.Hits++
	return &entry, true, nil
}

func (s *RedisStore) Set(ctx context.Context, entry *types.Entry) error {
	copied := *entry
	copied.Tier = types.TierDurable

	raw, err := json.Marshal(&copied)
	if err != nil {
		return fmt.Errorf("redis entry encode %s: %w", entry.Key, err)
	}

	// Physical expiry lags the logical one by a minute so GetStale can
	// still find recently expired entries during degraded operation.
	ttl := time.Until(copied.ExpiresAt) + time.Minute
	if ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, redisKeyPrefix+entry.Key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", entry.Key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var removed int
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("redis del %s: %w", iter.Val(), err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	return removed, nil
}

func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(redisKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
