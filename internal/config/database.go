package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig describes the PostgreSQL database the postgres source reads
// definitions from. A refresh is a single read-only transaction, so the pool stays small.
type DatabaseConfig struct {
	// URL wins over the individual parts when set.
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Name     string `envconfig:"NAME"`
	User     string `envconfig:"USER"`
	Password string `envconfig:"PASSWORD"`
	SSLMode  string `envconfig:"SSL_MODE" default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	// ApplicationName is reported to PostgreSQL (visible in pg_stat_activity).
	ApplicationName string `envconfig:"APPLICATION_NAME" default:"heimdall-evaluator"`

	// StatementTimeout caps every query of a snapshot read. Zero leaves the server default.
	StatementTimeout time.Duration `envconfig:"STATEMENT_TIMEOUT" default:"10s" validate:"min=0"`

	MaxConns        int           `envconfig:"MAX_CONNS" default:"4" validate:"min=1"`
	MinConns        int           `envconfig:"MIN_CONNS" default:"0" validate:"min=0,ltefield=MaxConns"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME" default:"30m"`
	ConnectTimeout  time.Duration `envconfig:"CONNECT_TIMEOUT" default:"5s"`

	// Startup ping. The backoff doubles after each failed attempt.
	PingMaxRetries int           `envconfig:"PING_MAX_RETRIES" default:"5" validate:"min=1"`
	PingBackoff    time.Duration `envconfig:"PING_BACKOFF" default:"2s"`
}

// ConnectionString renders a pgx connection URL. Session parameters the
// evaluator relies on are added to a configured URL unless it already sets them.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		parsed, err := url.Parse(c.URL)
		if err != nil {
			return c.URL
		}
		q := parsed.Query()
		for k, v := range c.sessionParams() {
			if !q.Has(k) {
				q.Set(k, v[0])
			}
		}
		parsed.RawQuery = q.Encode()
		return parsed.String()
	}

	q := c.sessionParams()
	q.Set("sslmode", c.SSLMode)
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// sessionParams are sent as runtime parameters on every new connection.
func (c *DatabaseConfig) sessionParams() url.Values {
	q := url.Values{}
	if c.ApplicationName != "" {
		q.Set("application_name", c.ApplicationName)
	}
	if c.StatementTimeout > 0 {
		q.Set("statement_timeout", strconv.FormatInt(c.StatementTimeout.Milliseconds(), 10))
	}
	return q
}

// Endpoint is the log-safe form of the configured target.
func (c *DatabaseConfig) Endpoint() string {
	if c.URL == "" && c.Host != "" {
		return redactedEndpoint("", c.Host, c.Port) + "/" + c.Name
	}
	return redactedEndpoint(c.URL, c.Host, c.Port)
}

// Validate checks the connection settings. Production requires a password of at
// least 12 characters and an sslmode of require or stricter, in parts or in the URL.
func (c *DatabaseConfig) Validate(environment string) error {
	return remote{
		kind:     "database",
		schemes:  []string{"postgres", "postgresql"},
		url:      c.URL,
		host:     c.Host,
		port:     c.Port,
		password: c.Password,
		encrypted: func(parsed *url.URL) bool {
			if parsed != nil {
				return isSecureSSLMode(parsed.Query().Get("sslmode"))
			}
			return isSecureSSLMode(c.SSLMode)
		},
		checkURL:   checkPostgresURL,
		checkParts: c.checkParts,
	}.validate(environment)
}

// IsConfigured reports whether enough is set to attempt a connection.
func (c *DatabaseConfig) IsConfigured() bool {
	return c.URL != "" || (c.Host != "" && c.Port != "" && c.Name != "" && c.User != "")
}

func (c *DatabaseConfig) checkParts() error {
	if err := validateNoWhitespace(c.Name, "database name"); err != nil {
		return err
	}
	// NAMEDATALEN - 1
	if len(c.Name) > 63 {
		return fmt.Errorf("database name cannot exceed 63 characters")
	}
	return validateNoWhitespace(c.User, "database user")
}

func checkPostgresURL(parsed *url.URL) error {
	if parsed.User == nil || parsed.User.Username() == "" {
		return fmt.Errorf("user is required in URL")
	}
	if strings.Trim(parsed.Path, "/") == "" {
		return fmt.Errorf("database name is required in URL path")
	}
	return nil
}
