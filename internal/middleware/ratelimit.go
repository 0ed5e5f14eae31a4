package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/revue-tickets/internal/config"
)

// bucketScript refills a bucket continuously from the elapsed time and
// takes one token.  State is a hash of {tokens, ts}; both are floats so
// fractional refills are not lost between calls.
//
// KEYS[1] bucket key
// ARGV    now_ms, burst, rate_per_ms, ttl_ms
// returns {allowed, tokens_left, retry_after_ms}
var bucketScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local st = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(st[1]) or burst
local ts = tonumber(st[2]) or now
if now > ts then
	tokens = math.min(burst, tokens + (now - ts) * rate)
end

local ok = 0
local wait = 0
if tokens >= 1 then
	ok = 1
	tokens = tokens - 1
else
	wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('PEXPIRE', KEYS[1], ttl)
return {ok, math.floor(tokens), wait}
`)

// bucketDecision is the outcome of one take from a bucket.
type bucketDecision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

func takeToken(ctx context.Context, rdb redis.Scripter, cfg config.RateLimitConfig, key string, now time.Time) (bucketDecision, error) {
	res, err := bucketScript.Run(ctx, rdb, []string{key},
		now.UnixMilli(), cfg.Burst, cfg.RatePerSec/1000, cfg.IdleTTL.Milliseconds()).Int64Slice()
	if err != nil {
		return bucketDecision{}, err
	}
	if len(res) != 3 {
		return bucketDecision{}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}
	return bucketDecision{
		Allowed:    res[0] == 1,
		Remaining:  res[1],
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket returns a Redis-backed token bucket limiter.  Redis
// errors let the request through; a degraded limiter must not block seat
// selection.  Pass a nil rdb, or disable cfg, to get a pass-through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb redis.Scripter, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := bucketKey(cfg, c)
			d, err := takeToken(c.Request().Context(), rdb, cfg, key, time.Now())
			if err != nil {
				log.Warn("ratelimit: redis error, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.Allowed {
				return next(c)
			}

			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			log.Debug("ratelimit: blocked", zap.String("key", key), zap.Duration("retry_after", d.RetryAfter))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too many requests",
				"retry_after": secs,
			})
		}
	}
}

// bucketKey derives the bucket for a request from cfg.KeyStrategy.
// Requester-based strategies are the default: buyers behind one NAT share
// an IP but never a session.
func bucketKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	rid := currentRequester(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch cfg.KeyStrategy {
	case "ip":
		parts = append(parts, "ip", ip)
	case "requester":
		parts = append(parts, "req", rid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_requester":
		parts = append(parts, "ip", ip, "req", rid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "requester_route":
		parts = append(parts, "req", rid, "route", route)
	default:
		parts = append(parts, "ip", ip, "req", rid, "route", route)
	}
	return strings.Join(parts, ":")
}
