package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Counts are kept per key and fixed window; the first hit sets the expiry.
const allowScript = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
if current >= limit then
	local ttl = redis.call('TTL', KEYS[1])
	if ttl < 0 then ttl = window end
	return {0, current, ttl}
end
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('EXPIRE', KEYS[1], window)
end
local ttl = redis.call('TTL', KEYS[1])
if ttl < 0 then ttl = window end
return {1, n, ttl}
`

// Redis is a limiter shared by every Prism replica.
type Redis struct {
	client *redis.Client
	script *redis.Script
	limit  int
	window time.Duration
	prefix string
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedis(ctx context.Context, opts RedisOptions, limit int, window time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	if window < time.Second {
		window = time.Second
	}
	return &Redis{
		client: client,
		script: redis.NewScript(allowScript),
		limit:  limit,
		window: window,
		prefix: "prism:ratelimit",
	}, nil
}

func (r *Redis) key(key string, now time.Time) string {
	secs := int64(r.window / time.Second)
	return fmt.Sprintf("%s:%s:%d", r.prefix, key, now.Unix()/secs)
}

func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	if r.limit <= 0 {
		return Result{Allowed: true, Limit: r.limit, Remaining: -1}, nil
	}

	now := time.Now()
	secs := int64(r.window / time.Second)
	vals, err := r.script.Run(ctx, r.client, []string{r.key(key, now)}, r.limit, secs).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate limit check: unexpected reply %v", vals)
	}
	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	ttl, _ := vals[2].(int64)

	remaining := r.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   allowed == 1,
		Limit:     r.limit,
		Remaining: remaining,
		ResetAt:   now.Add(time.Duration(ttl) * time.Second),
	}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
