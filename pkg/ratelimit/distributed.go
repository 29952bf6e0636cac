package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistributedLimiter enforces one shared per-source budget across multiple
// investigator instances using a Redis token bucket. The bucket state is
// updated atomically via a Lua script so concurrent instances never double
// spend a token.
//
// Fail-open: if Redis is unreachable the call is allowed; the upstream
// source's own limits are the backstop in that case.
type DistributedLimiter struct {
	rdb      *redis.Client
	capacity int64
	window   time.Duration
	key      string
}

const tokenBucketScript = `
local bucket_key = KEYS[1]
local capacity = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', bucket_key, 'tokens', 'last_refill')
local tokens = tonumber(state[1]) or capacity
local last_refill = tonumber(state[2]) or now

local elapsed = now - last_refill
if elapsed >= interval then
	tokens = capacity
	last_refill = now
end

if tokens >= 1 then
	tokens = tokens - 1
	redis.call('HMSET', bucket_key, 'tokens', tokens, 'last_refill', last_refill)
	redis.call('EXPIRE', bucket_key, interval * 2)
	return {1, tokens, last_refill}
end
redis.call('HMSET', bucket_key, 'tokens', tokens, 'last_refill', last_refill)
redis.call('EXPIRE', bucket_key, interval * 2)
return {0, tokens, last_refill}
`

// NewDistributedLimiter creates a Redis-backed limiter for one source.
func NewDistributedLimiter(rdb *redis.Client, source string, max int64, window time.Duration) *DistributedLimiter {
	h := sha256.Sum256([]byte(source))
	return &DistributedLimiter{
		rdb:      rdb,
		capacity: max,
		window:   window,
		key:      fmt.Sprintf("scamshield:rl:%s", hex.EncodeToString(h[:8])),
	}
}

func (d *DistributedLimiter) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	result, err := d.rdb.Eval(ctx, tokenBucketScript, []string{d.key},
		d.capacity, int64(d.window.Seconds()), time.Now().Unix(),
	).Result()
	if err != nil {
		return true
	}
	slice, ok := result.([]interface{})
	if !ok || len(slice) < 1 {
		return true
	}
	allowed, _ := slice[0].(int64)
	return allowed == 1
}

func (d *DistributedLimiter) RetryAfter() time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	vals, err := d.rdb.HMGet(ctx, d.key, "tokens", "last_refill").Result()
	if err != nil || len(vals) < 2 || vals[0] == nil {
		return 0
	}
	tokens, _ := vals[0].(string)
	if tokens != "0" {
		return 0
	}
	lastRefill, _ := vals[1].(string)
	var refillUnix int64
	fmt.Sscanf(lastRefill, "%d", &refillUnix)
	d2 := time.Until(time.Unix(refillUnix, 0).Add(d.window))
	if d2 < 0 {
		return 0
	}
	return d2
}
