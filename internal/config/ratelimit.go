package config

import (
	"strings"
	"time"
)

// RateLimitConfig configures the Redis token bucket in front of the
// hold-mutating endpoints.  A bucket holds up to Burst tokens and refills
// continuously at RatePerSec.
type RateLimitConfig struct {
	Enabled     bool
	Burst       int           // RATE_LIMIT_BURST
	RatePerSec  float64       // RATE_LIMIT_RPS
	IdleTTL     time.Duration // bucket expiry after the last request
	KeyStrategy string        // ip | requester | route | ip_requester | ip_route | requester_route
	Prefix      string
	Debug       bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  A buyer clicking
// around the seat map sends bursts of select/unselect, so the default
// bucket is generous in burst and modest in sustained rate.
func LoadRateLimitConfig() RateLimitConfig {
	c := RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		Burst:       envInt("RATE_LIMIT_BURST", 30),
		RatePerSec:  envFloat("RATE_LIMIT_RPS", 1),
		IdleTTL:     envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy: strings.ToLower(envStr("RATE_LIMIT_KEY_STRATEGY", "requester_route")),
		Prefix:      envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:       envBool("RATE_LIMIT_DEBUG", false),
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	// an idle bucket must not expire before it could have refilled
	if full := time.Duration(float64(c.Burst) / c.RatePerSec * float64(time.Second)); c.IdleTTL < full {
		c.IdleTTL = full
	}
	return c
}
