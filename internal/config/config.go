// Package config provides centralized configuration management for the evaluator service.
// It uses envconfig for environment variable loading and validator for validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvironmentProduction is the production environment identifier
	EnvironmentProduction = "production"

	// envPrefix is prepended to every environment variable name.
	envPrefix = "HEIMDALL"
)

// Config holds the complete application configuration.
type Config struct {
	App           AppConfig           `envconfig:"APP"`
	Engine        EngineConfig        `envconfig:"ENGINE"`
	Source        SourceConfig        `envconfig:"SOURCE"`
	Server        ServerConfig        `envconfig:"SERVER"`
	Cache         CacheConfig         `envconfig:"CACHE"`
	Database      DatabaseConfig      `envconfig:"DB"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
}

// AppConfig contains core application settings.
type AppConfig struct {
	Name            string        `envconfig:"NAME" default:"heimdall-evaluator"`
	Version         string        `envconfig:"VERSION" default:"dev"`
	Environment     string        `envconfig:"ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// Load reads configuration from environment variables with the HEIMDALL prefix.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate runs the struct tags first, then the cross-field rules of each
// section. Connection settings are only checked for the backend Source.Kind selects.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	env := c.App.Environment
	checks := []func() error{
		c.Source.Validate,
		func() error { return c.Server.Validate(env) },
		c.Cache.Validate,
		c.Observability.Validate,
	}
	switch c.Source.Kind {
	case SourceKindPostgres:
		checks = append(checks, func() error { return c.Database.Validate(env) })
	case SourceKindRedis:
		checks = append(checks, func() error { return c.Redis.Validate(env) })
	}

	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}

	if c.Server.Port == c.Observability.Port {
		return fmt.Errorf("server and observability ports must differ, both are %s", c.Server.Port)
	}
	return nil
}

// SourceEndpoint is the log-safe target of the selected backend.
func (c *Config) SourceEndpoint() string {
	if c.Source.Kind == SourceKindPostgres {
		return c.Database.Endpoint()
	}
	return c.Redis.Endpoint()
}

// LogConfig logs the effective configuration. Secrets never reach the log.
func (c *Config) LogConfig(log *slog.Logger) {
	log.Info("configuration loaded",
		slog.Group("app",
			slog.String("name", c.App.Name),
			slog.String("version", c.App.Version),
			slog.String("environment", c.App.Environment),
			slog.String("log_level", c.App.LogLevel),
			slog.Duration("shutdown_timeout", c.App.ShutdownTimeout),
		),
		slog.Group("source",
			slog.String("kind", c.Source.Kind),
			slog.String("endpoint", c.SourceEndpoint()),
			slog.Duration("refresh_interval", c.Source.RefreshInterval),
		),
		slog.Int("engine_max_depth", c.Engine.MaxDepth),
		slog.Group("server",
			slog.String("port", c.Server.Port),
			slog.Bool("tls", c.Server.TLSEnabled),
			slog.Int("api_keys", len(c.Server.APIKeyHashes)),
		),
		slog.Group("cache",
			slog.Bool("enabled", c.Cache.Enabled),
			slog.Int("capacity", c.Cache.Capacity),
		),
		slog.Group("observability",
			slog.String("port", c.Observability.Port),
			slog.Bool("profiling", c.Observability.Profiling),
		),
	)
}

// validatePort checks a numeric TCP port.
func validatePort(port, context string) error {
	if port == "" {
		return fmt.Errorf("%s port cannot be empty", context)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("%s port must be a number: %w", context, err)
	}
	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("%s port must be between 1 and 65535, got %d", context, portNum)
	}
	return nil
}

// validateHost rejects empty or padded hosts.
func validateHost(host, context string) error {
	if host == "" {
		return fmt.Errorf("%s host cannot be empty", context)
	}
	if strings.TrimSpace(host) != host {
		return fmt.Errorf("%s host cannot contain whitespace", context)
	}
	return nil
}

// validateNoWhitespace rejects empty values and any embedded space.
func validateNoWhitespace(value, fieldName string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if strings.ContainsFunc(value, unicode.IsSpace) {
		return fmt.Errorf("%s cannot contain whitespace", fieldName)
	}
	return nil
}

// minProductionPasswordLen applies to every backend credential in production.
const minProductionPasswordLen = 12

func validatePasswordStrength(password, context, environment string) error {
	if environment == EnvironmentProduction && len(password) < minProductionPasswordLen {
		return fmt.Errorf("%s password must be at least %d characters in production", context, minProductionPasswordLen)
	}
	return nil
}

// isSecureSSLMode reports whether a libpq sslmode refuses plaintext.
func isSecureSSLMode(mode string) bool {
	switch mode {
	case "require", "verify-ca", "verify-full":
		return true
	}
	return false
}

// parseAndValidateURL parses rawURL and requires one of the allowed schemes and a host.
func parseAndValidateURL(rawURL string, allowedSchemes []string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	if !slices.Contains(allowedSchemes, parsed.Scheme) {
		return nil, fmt.Errorf("invalid scheme '%s', must be one of: %v", parsed.Scheme, allowedSchemes)
	}

	if parsed.Host == "" {
		return nil, fmt.Errorf("host is required in URL")
	}

	return parsed, nil
}
