package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript admits one dispatch if the trailing window has room.
// Returns {1, remaining} on admission or {0, retry_after_ms}.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	-- 윈도우 밖의 오래된 요청 제거
	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry_after = tonumber(oldest[2]) + window_ms - now
	if retry_after < 1 then
		retry_after = 1
	end
	return {0, retry_after}
`)

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // Unique identifier, e.g. "yahoo"
	Limit  int           // Maximum dispatches allowed in Window
	Window time.Duration // Trailing window
}

// ProviderRateLimit is the shared ceiling for the quote provider
func ProviderRateLimit(perMinute int) RateLimitConfig {
	return RateLimitConfig{
		Key:    "yahoo",
		Limit:  perMinute,
		Window: time.Minute,
	}
}

// RateLimiter implements a sliding-window ceiling shared by every process
// pointed at the same Redis.
// ⭐ SSOT: 멀티 프로세스 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
	cfg    RateLimitConfig
	seq    atomic.Uint64
}

// NewRateLimiter creates a new rate limiter for one provider
func NewRateLimiter(client *Client, prefix string, cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
		cfg:    cfg,
	}
}

func (r *RateLimiter) key() string {
	return fmt.Sprintf("%s:ratelimit:%s", r.prefix, r.cfg.Key)
}

// Allow tries to admit one dispatch.
// Returns (allowed, retryAfter, error); retryAfter is zero when allowed.
func (r *RateLimiter) Allow(ctx context.Context) (bool, time.Duration, error) {
	if !r.client.Enabled() {
		// Redis 비활성화 시 모두 허용
		return true, 0, nil
	}

	now := time.Now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + strconv.FormatUint(r.seq.Add(1), 10)

	result, err := slidingWindowScript.Run(ctx, r.client.Redis(), []string{r.key()},
		now,
		r.cfg.Window.Milliseconds(),
		r.cfg.Limit,
		member,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	if result[0] == 1 {
		return true, 0, nil
	}
	return false, time.Duration(result[1]) * time.Millisecond, nil
}

// InWindow counts the dispatches still inside the trailing window
func (r *RateLimiter) InWindow(ctx context.Context) (int64, error) {
	if !r.client.Enabled() {
		return 0, nil
	}
	since := time.Now().Add(-r.cfg.Window).UnixMilli()
	n, err := r.client.Redis().ZCount(ctx, r.key(), strconv.FormatInt(since, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit count failed: %w", err)
	}
	return n, nil
}

// Limit returns the configured ceiling per window
func (r *RateLimiter) Limit() RateLimitConfig {
	return r.cfg
}

// Reset drops the shared window, e.g. after a ceiling change
func (r *RateLimiter) Reset(ctx context.Context) error {
	if !r.client.Enabled() {
		return nil
	}
	return r.client.Redis().Del(ctx, r.key()).Err()
}
