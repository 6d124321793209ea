package redis

import (
	"context"
	"fmt"
	"time"

	"admin-auth-service/internal/client"
	"admin-auth-service/internal/ratelimit"
)

const rateLimitPrefix = "rate_limit:"

// rateLimitScript applies one request attempt server-side so the increment,
// window rollover, and block transition are atomic across instances. It
// mirrors ratelimit.Apply; keep the two in sync.
const rateLimitScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local block = tonumber(ARGV[4])
local threshold = tonumber(ARGV[5])
local hint = tonumber(ARGV[6])

local rec = redis.call('HMGET', key, 'count', 'window_start', 'blocked_until', 'suspicion')
local count = tonumber(rec[1])
local window_start = tonumber(rec[2]) or 0
local blocked_until = tonumber(rec[3]) or 0
local suspicion = tonumber(rec[4]) or 0

if count and blocked_until > now then
    return {count, window_start, blocked_until, suspicion}
end

if (not count) or (now >= window_start + window) then
    if count and suspicion > hint then
        hint = suspicion
    end
    count = 1
    window_start = now
    blocked_until = 0
    suspicion = hint
else
    count = count + 1
    if count > max then
        suspicion = suspicion + 1
        local b = block
        if threshold > 0 and suspicion >= threshold then
            b = block * 2
        end
        blocked_until = now + b
    end
end

redis.call('HMSET', key, 'count', count, 'window_start', window_start, 'blocked_until', blocked_until, 'suspicion', suspicion)
local ttl = window
if blocked_until - now > ttl then
    ttl = blocked_until - now
end
redis.call('PEXPIRE', key, ttl)
return {count, window_start, blocked_until, suspicion}
`

// RateLimitStore shares sliding-window counters across instances through a
// Redis Lua script.
type RateLimitStore struct {
	client *client.RedisClient
}

func NewRateLimitStore(client *client.RedisClient) *RateLimitStore {
	return &RateLimitStore{client: client}
}

var _ ratelimit.Store = (*RateLimitStore)(nil)

func (s *RateLimitStore) Take(ctx context.Context, key string, cfg ratelimit.EndpointConfig, now time.Time, suspicion int) (ratelimit.Record, error) {
	res, err := s.client.Eval(ctx, rateLimitScript,
		[]string{rateLimitPrefix + key},
		now.UnixMilli(),
		cfg.Window.Milliseconds(),
		cfg.MaxRequests,
		cfg.BlockDuration.Milliseconds(),
		cfg.SuspicionThreshold,
		suspicion,
	)
	if err != nil {
		return ratelimit.Record{}, fmt.Errorf("rate limit script failed: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 4 {
		return ratelimit.Record{}, fmt.Errorf("unexpected rate limit script result: %v", res)
	}

	rec := ratelimit.Record{
		Count:     int(toInt64(vals[0])),
		Suspicion: int(toInt64(vals[3])),
	}
	rec.WindowStart = time.UnixMilli(toInt64(vals[1])).UTC()
	if blocked := toInt64(vals[2]); blocked > 0 {
		rec.BlockedUntil = time.UnixMilli(blocked).UTC()
	}
	return rec, nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
