package scopestate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clarident/clarident-go/internal/domain/scope"
)

// Interface assertion.
var _ Store = (*RedisStore)(nil)

const scopeKeyPrefix = "clarident:scope:"

// Records are stored as "kind|tenant|unixnano". The CAS script compares the
// "kind|tenant" prefix so the timestamp never participates in the match.
var casScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
  local sep2 = 0
  local seen = 0
  for i = 1, #current do
    if string.sub(current, i, i) == '|' then
      seen = seen + 1
      if seen == 2 then sep2 = i break end
    end
  end
  local prefix = string.sub(current, 1, sep2 - 1)
  if prefix ~= ARGV[1] then
    return 0
  end
elseif ARGV[1] ~= '' then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisStore persists scope records in Redis so switches survive process
// restarts and are visible across instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed scope record store and verifies
// connectivity.
func NewRedisStore(addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used in tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func encodeRecord(r Record) string {
	return fmt.Sprintf("%s|%s|%d", r.Selection.Kind, r.Selection.TenantID, r.UpdatedAt.UnixNano())
}

func encodePrefix(r *Record) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%s|%s", r.Selection.Kind, r.Selection.TenantID)
}

func decodeRecord(raw string) (*Record, error) {
	parts := strings.SplitN(raw, "|", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed scope record %q", raw)
	}
	nanos, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed scope record timestamp %q", parts[2])
	}
	return &Record{
		Selection: scope.Selection{Kind: scope.Kind(parts[0]), TenantID: parts[1]},
		UpdatedAt: time.Unix(0, nanos).UTC(),
	}, nil
}

// Get returns the principal's record, or nil when absent.
func (s *RedisStore) Get(ctx context.Context, principalID string) (*Record, error) {
	raw, err := s.client.Get(ctx, scopeKeyPrefix+principalID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get scope record: %w", err)
	}
	record, err := decodeRecord(raw)
	if err != nil {
		// Unreadable records are dropped rather than served.
		s.client.Del(ctx, scopeKeyPrefix+principalID)
		return nil, nil
	}
	return record, nil
}

// CompareAndSwap atomically stores new when the current record's selection
// matches old. Runs as a single Lua script so concurrent writers cannot
// interleave between the read and the write.
func (s *RedisStore) CompareAndSwap(ctx context.Context, principalID string, old *Record, new Record, ttl time.Duration) (bool, error) {
	res, err := casScript.Run(ctx, s.client,
		[]string{scopeKeyPrefix + principalID},
		encodePrefix(old), encodeRecord(new), ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis scope cas: %w", err)
	}
	return res == 1, nil
}

// Delete removes the principal's record.
func (s *RedisStore) Delete(ctx context.Context, principalID string) error {
	if err := s.client.Del(ctx, scopeKeyPrefix+principalID).Err(); err != nil {
		return fmt.Errorf("redis delete scope record: %w", err)
	}
	return nil
}
