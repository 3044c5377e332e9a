package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/maktaba/core"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisStore is a fixed-window rate limiter store shared by every API instance.
// It fails closed: Allow denies when Redis cannot be reached.
type RedisStore struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

var _ middleware.RateLimiterStore = (*RedisStore)(nil) // interface compliance check

func NewRedisStore(conf *core.Config) (*RedisStore, error) {
	if !conf.RateLimit.Enabled(conf.Redis) {
		return nil, errors.New("rate limiter requires a redis address and a positive limit and window")
	}
	prefix := strings.TrimSpace(conf.Redis.Prefix)
	if prefix == "" {
		prefix = "maktaba:ratelimit"
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Address,
			Password: conf.Redis.Password,
		}),
		prefix: prefix,
		limit:  conf.RateLimit.Limit,
		window: conf.RateLimit.Window,
		now:    time.Now,
	}, nil
}

// Allow counts one request for identifier and reports whether it is within the window's quota.
func (s *RedisStore) Allow(identifier string) (bool, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		identifier = "unknown"
	}

	windowMs := s.window.Milliseconds()
	slot := s.now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%d", s.prefix, identifier, slot)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	count, err := fixedWindowScript.Run(ctx, s.client, []string{key}, windowMs).Int64()
	if err != nil {
		return false, errors.Wrap(err, "running rate limit script")
	}
	return count <= int64(s.limit), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
