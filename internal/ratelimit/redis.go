package ratelimit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fixedWindowScript increments the counter, starts the window on the first
// hit and returns {count, pttl}. A key left without a TTL is repaired.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisConfig contains configuration for the Redis limiter.
type RedisConfig struct {
	// KeyPrefix is prepended to every counter key.
	KeyPrefix string
	// KeyHashSecret, when set, replaces client keys with an HMAC-SHA256 digest
	// so client addresses are not stored in clear text.
	KeyHashSecret []byte
}

// RedisLimiter shares windows across replicas through Redis. When Redis
// fails it answers from an in-process fallback instead of erroring.
type RedisLimiter struct {
	client    redis.Scripter
	config    RedisConfig
	fallback  *MemoryLimiter
	logger    *zap.Logger
	available atomic.Bool
	now       func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter. fallback may be nil, in
// which case a fresh MemoryLimiter is used.
func NewRedisLimiter(client redis.Scripter, config RedisConfig, fallback *MemoryLimiter, logger *zap.Logger) *RedisLimiter {
	if fallback == nil {
		fallback = NewMemoryLimiter(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ratelimit:"
	}
	r := &RedisLimiter{
		client:   client,
		config:   config,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
	r.available.Store(true)
	return r
}

func (r *RedisLimiter) buildKey(key string) string {
	if len(r.config.KeyHashSecret) > 0 {
		key = hashKey(key, r.config.KeyHashSecret)
	}
	return r.config.KeyPrefix + key
}

// hashKey returns the first 32 hex characters of HMAC-SHA256(key).
func hashKey(key string, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Check implements Limiter.
func (r *RedisLimiter) Check(ctx context.Context, key string, window time.Duration, limit int) Result {
	now := r.now()
	count, ttl, err := r.incr(ctx, r.buildKey(key), window)
	if err != nil {
		if r.available.Swap(false) {
			r.logger.Warn("redis rate limiter unavailable, using in-memory fallback", zap.Error(err))
		}
		return r.fallback.Check(ctx, key, window, limit)
	}
	if !r.available.Swap(true) {
		r.logger.Info("redis rate limiter recovered")
	}

	res := Result{Limit: limit, ResetTime: now.Add(ttl)}
	if count > int64(limit) {
		return res
	}
	res.Allowed = true
	res.Remaining = limit - int(count)
	return res
}

func (r *RedisLimiter) incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}
	vals, err := fixedWindowScript.Run(ctx, r.client, []string{key}, windowMs).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("rate limit script: unexpected reply length %d", len(vals))
	}
	return vals[0], time.Duration(vals[1]) * time.Millisecond, nil
}

// Available reports whether the last call reached Redis.
func (r *RedisLimiter) Available() bool {
	return r.available.Load()
}
