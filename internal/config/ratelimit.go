package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// RateLimitConfig drives the Redis token bucket in front of /api.  The
// defaults allow 100 requests per client address per hour.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"100"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"36s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"1h"`
	KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY" envDefault:"ip"`
	Prefix         string        `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
	Debug          bool          `env:"RATE_LIMIT_DEBUG" envDefault:"false"`
}

// LoadRateLimitConfig parses the rate limit settings and clamps them to
// usable values.  A malformed variable falls back to the defaults.
func LoadRateLimitConfig() RateLimitConfig {
	def, err := env.ParseAs[RateLimitConfig]()
	if err != nil {
		def = RateLimitConfig{
			Enabled:        true,
			Capacity:       100,
			RefillTokens:   1,
			RefillInterval: 36 * time.Second,
			TTL:            time.Hour,
			KeyStrategy:    "ip",
			Prefix:         "rl",
		}
	}
	return def.normalize()
}

func (def RateLimitConfig) normalize() RateLimitConfig {
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	minTTL := 5 * def.RefillInterval
	if def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}
