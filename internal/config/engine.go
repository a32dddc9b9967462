package config

import (
	"fmt"
	"strings"
	"time"
)

// Supported snapshot backends.
const (
	SourceKindRedis    = "redis"
	SourceKindPostgres = "postgres"
)

// EngineConfig tunes the decision engine.
type EngineConfig struct {
	// MaxDepth bounds nested dependency and rule-based segment resolution.
	MaxDepth int `envconfig:"MAX_DEPTH" default:"10" validate:"min=1,max=64"`
}

// SourceConfig selects where flag definitions are synchronized from and how often.
type SourceConfig struct {
	Kind            string        `envconfig:"KIND" default:"redis" validate:"oneof=redis postgres"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"30s"`
	FetchTimeout    time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`

	// KeyPrefix namespaces every Redis key read by the Redis source.
	KeyPrefix string `envconfig:"KEY_PREFIX" default:"heimdall"`
}

// Validate checks the refresh cadence and the key namespace.
func (c *SourceConfig) Validate() error {
	if c.RefreshInterval < time.Second {
		return fmt.Errorf("source refresh interval must be at least 1s, got %s", c.RefreshInterval)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("source fetch timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.FetchTimeout > c.RefreshInterval {
		return fmt.Errorf("source fetch timeout (%s) cannot exceed refresh interval (%s)", c.FetchTimeout, c.RefreshInterval)
	}
	if c.Kind == SourceKindRedis {
		if err := validateNoWhitespace(c.KeyPrefix, "redis key prefix"); err != nil {
			return err
		}
		if strings.HasSuffix(c.KeyPrefix, ":") {
			return fmt.Errorf("redis key prefix must not end with ':'")
		}
	}
	return nil
}

// CacheConfig controls the in-process evaluation result cache.
type CacheConfig struct {
	Enabled  bool          `envconfig:"ENABLED" default:"true"`
	Capacity int           `envconfig:"CAPACITY" default:"100000"`
	TTL      time.Duration `envconfig:"TTL" default:"1m"`
}

// Validate only checks sizing when the cache is enabled.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Capacity < 1 {
		return fmt.Errorf("cache capacity must be at least 1, got %d", c.Capacity)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.TTL)
	}
	return nil
}
