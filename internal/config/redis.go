package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RedisConfig describes the Redis instance the redis source reads published
// definitions from. A refresh is one pipelined round trip, so the pool stays small.
type RedisConfig struct {
	// URL wins over the individual parts when set.
	URL        string `envconfig:"URL"`
	Host       string `envconfig:"HOST"`
	Port       string `envconfig:"PORT"`
	Username   string `envconfig:"USERNAME"`
	Password   string `envconfig:"PASSWORD"`
	DB         int    `envconfig:"DB" default:"0" validate:"min=0,max=15"`
	TLSEnabled bool   `envconfig:"TLS_ENABLED" default:"false"`

	// ClientName shows up in CLIENT LIST on the server.
	ClientName string `envconfig:"CLIENT_NAME" default:"heimdall-evaluator"`

	PoolSize     int           `envconfig:"POOL_SIZE" default:"4" validate:"min=1"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"1" validate:"min=0,ltefield=PoolSize"`
	PoolTimeout  time.Duration `envconfig:"POOL_TIMEOUT" default:"4s"`

	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`

	MaxRetries      int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=0"`
	MinRetryBackoff time.Duration `envconfig:"MIN_RETRY_BACKOFF" default:"8ms"`
	MaxRetryBackoff time.Duration `envconfig:"MAX_RETRY_BACKOFF" default:"512ms" validate:"gtefield=MinRetryBackoff"`

	// Startup ping. The backoff doubles after each failed attempt.
	PingMaxRetries int           `envconfig:"PING_MAX_RETRIES" default:"5" validate:"min=1"`
	PingBackoff    time.Duration `envconfig:"PING_BACKOFF" default:"2s"`
}

// Address joins Host and Port. Callers holding a URL parse it themselves.
func (c *RedisConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Endpoint is the log-safe form of the configured target.
func (c *RedisConfig) Endpoint() string {
	return redactedEndpoint(c.URL, c.Host, c.Port)
}

// Validate checks the connection settings. Production requires a password of at
// least 12 characters and TLS, either through TLS_ENABLED or a rediss:// URL.
func (c *RedisConfig) Validate(environment string) error {
	return remote{
		kind:     "redis",
		schemes:  []string{"redis", "rediss"},
		url:      c.URL,
		host:     c.Host,
		port:     c.Port,
		password: c.Password,
		encrypted: func(parsed *url.URL) bool {
			return c.TLSEnabled || (parsed != nil && parsed.Scheme == "rediss")
		},
		checkURL: checkRedisDB,
	}.validate(environment)
}

// IsConfigured reports whether enough is set to attempt a connection.
func (c *RedisConfig) IsConfigured() bool {
	return c.URL != "" || (c.Host != "" && c.Port != "")
}

// checkRedisDB validates the optional database index in a URL path.
func checkRedisDB(parsed *url.URL) error {
	raw := strings.Trim(parsed.Path, "/")
	if raw == "" {
		return nil
	}
	db, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("database number must be a valid integer: %s", raw)
	}
	if db < 0 || db > 15 {
		return fmt.Errorf("database number must be between 0 and 15, got %d", db)
	}
	return nil
}
