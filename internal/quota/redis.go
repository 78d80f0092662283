package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// chargeScript increments the counter unless it already reached the limit.
// A missing or corrupt value starts from zero. Returns -1 when denied.
var chargeScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]))
if n == nil or n < 0 then
	n = 0
end
n = math.floor(n)
local limit = tonumber(ARGV[1])
if limit >= 0 and n >= limit then
	return -1
end
n = n + 1
redis.call('SET', KEYS[1], n, 'EX', ARGV[2])
return n
`)

// RedisStore keeps anonymous counters server-side, keyed by session token.
// Charge runs as a single script so concurrent requests from one session
// cannot lose increments or overshoot the limit.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	return NewRedisStoreFromClient(client), nil
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: CounterTTL}
}

func (s *RedisStore) key(id Identity) (string, error) {
	anon, ok := id.(Anonymous)
	if !ok {
		return "", ErrUnsupportedIdentity
	}
	if anon.SessionToken == "" {
		return "", fmt.Errorf("quota: empty session token")
	}
	return fmt.Sprintf("quota:session:%s", anon.SessionToken), nil
}

func (s *RedisStore) Load(ctx context.Context, id Identity) (int64, error) {
	key, err := s.key(id)
	if err != nil {
		return 0, err
	}

	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ParseCounter(raw), nil
}

func (s *RedisStore) Store(ctx context.Context, id Identity, n int64) error {
	key, err := s.key(id)
	if err != nil {
		return err
	}
	if n < 0 {
		n = 0
	}
	return s.client.Set(ctx, key, n, s.ttl).Err()
}

func (s *RedisStore) Charge(ctx context.Context, id Identity, limit int64) (int64, error) {
	key, err := s.key(id)
	if err != nil {
		return 0, err
	}

	n, err := chargeScript.Run(ctx, s.client, []string{key}, limit, int64(s.ttl.Seconds())).Int64()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrLimitExceeded
	}
	return n, nil
}

// Reset drops the counter for a session token.
func (s *RedisStore) Reset(ctx context.Context, sessionToken string) error {
	key, err := s.key(Anonymous{SessionToken: sessionToken})
	if err != nil {
		return err
	}
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
