package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// milli is the fixed-point scale for token counts kept in redis. Lua
// integer replies are truncated, so fractional tokens travel as
// thousandths.
const milli = 1000

// bucketScript refills KEYS[1] at ARGV[1] milli-tokens per second up to
// ARGV[2] milli-tokens and takes one token when available. It replies
// {allowed, remaining milli-tokens, server time in ms}.
const bucketScript = `
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "m", "at")
local level = tonumber(state[1]) or capacity
local at = tonumber(state[2]) or now
if now > at then
  level = math.min(capacity, level + math.floor((now - at) * rate / 1000))
end

local allowed = 0
if level >= 1000 then
  allowed = 1
  level = level - 1000
end

redis.call("HSET", KEYS[1], "m", level, "at", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, level, now}
`

var (
	errBucketUnset  = errors.New("rate limiter not configured")
	errBucketArgs   = errors.New("rate limiter needs a key, a positive rate and a positive burst")
	errBucketResult = errors.New("unexpected rate limit script reply")
)

// TokenBucket is a redis-backed token bucket shared by every instance.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// NewTokenBucket returns nil for a nil client.
func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client, script: redis.NewScript(bucketScript)}
}

// Allow takes one token from key. rate is in tokens per second.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error) {
	denied := &RateLimitResult{Limit: burst}
	if t == nil || t.client == nil {
		return denied, errBucketUnset
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return denied, errBucketArgs
	}

	reply, err := t.script.Run(ctx, t.client, []string{key},
		int64(math.Ceil(rate*milli)),
		int64(burst)*milli,
		defaultBucketTTL(rate, burst).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return denied, err
	}
	if len(reply) != 3 {
		return denied, errBucketResult
	}

	allowed, level, now := reply[0] == 1, reply[1], reply[2]
	result := &RateLimitResult{
		Allowed:   allowed,
		Limit:     burst,
		Remaining: int(level / milli),
		ResetTime: time.UnixMilli(now),
	}
	if !allowed {
		deficit := float64(milli-level) / milli
		result.RetryAfter = time.Duration(deficit / rate * float64(time.Second))
		result.ResetTime = result.ResetTime.Add(result.RetryAfter)
	}
	return result, nil
}

// defaultBucketTTL keeps idle buckets for twice the time a full refill takes.
func defaultBucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(2*float64(burst)/rate))
	return time.Duration(seconds) * time.Second
}
