package config

import (
	"fmt"
	"net"
	"time"
)

// ServerConfig configures the evaluation REST API listener.
type ServerConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port string `envconfig:"PORT" default:"8080"`

	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"2s" validate:"ltefield=ReadTimeout"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"5s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`

	MaxHeaderBytes int   `envconfig:"MAX_HEADER_BYTES" default:"524288" validate:"min=1"`
	MaxBodyBytes   int64 `envconfig:"MAX_BODY_BYTES" default:"1048576" validate:"min=1"`
	MaxBatchSize   int   `envconfig:"MAX_BATCH_SIZE" default:"200" validate:"min=1,max=1000"`

	// APIKeyHashes lists the SHA-256 hex digests of every accepted X-API-Key,
	// comma separated. More than one lets a key be rotated without downtime.
	APIKeyHashes []string `envconfig:"API_KEY_HASHES" validate:"dive,len=64,hexadecimal"`

	TLSEnabled bool   `envconfig:"TLS_ENABLED" default:"false"`
	TLSCert    string `envconfig:"TLS_CERT_FILE" validate:"required_if=TLSEnabled true"`
	TLSKey     string `envconfig:"TLS_KEY_FILE" validate:"required_if=TLSEnabled true"`
}

// Address is the listen address; IPv6 hosts are bracketed.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// AuthEnabled reports whether API key hashes are configured.
func (c *ServerConfig) AuthEnabled() bool {
	return len(c.APIKeyHashes) > 0
}

// Validate checks the listen address. Production also demands API keys and TLS.
func (c *ServerConfig) Validate(environment string) error {
	if err := validateHost(c.Host, "server"); err != nil {
		return err
	}
	if err := validatePort(c.Port, "server"); err != nil {
		return err
	}
	if environment != EnvironmentProduction {
		return nil
	}
	if !c.AuthEnabled() {
		return fmt.Errorf("at least one API key hash is required in production environment")
	}
	if !c.TLSEnabled {
		return fmt.Errorf("TLS must be enabled in production environment")
	}
	return nil
}
