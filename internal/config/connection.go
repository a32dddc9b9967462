package config

import (
	"fmt"
	"net/url"
)

// remote is the connection shape both source backends share: either a URL or
// host and port parts, plus the credentials production hardens.
type remote struct {
	kind     string
	schemes  []string
	url      string
	host     string
	port     string
	password string

	// encrypted reports whether traffic will be encrypted. parsed is nil when
	// the connection is built from parts.
	encrypted func(parsed *url.URL) bool

	checkURL   func(parsed *url.URL) error
	checkParts func() error
}

// validate checks the connection and, in production, requires a strong
// password and an encrypted transport whichever form was used.
func (r remote) validate(environment string) error {
	password := r.password
	var parsed *url.URL

	if r.url != "" {
		var err error
		parsed, err = parseAndValidateURL(r.url, r.schemes)
		if err == nil && r.checkURL != nil {
			err = r.checkURL(parsed)
		}
		if err != nil {
			return fmt.Errorf("invalid %s URL: %w", r.kind, err)
		}
		if parsed.User != nil {
			if p, ok := parsed.User.Password(); ok {
				password = p
			}
		}
	} else {
		if err := validateHost(r.host, r.kind); err != nil {
			return err
		}
		if err := validatePort(r.port, r.kind); err != nil {
			return err
		}
		if r.checkParts != nil {
			if err := r.checkParts(); err != nil {
				return err
			}
		}
	}

	if environment != EnvironmentProduction {
		return nil
	}
	if password == "" {
		return fmt.Errorf("%s password is required in production environment", r.kind)
	}
	if err := validatePasswordStrength(password, r.kind, environment); err != nil {
		return err
	}
	if !r.encrypted(parsed) {
		return fmt.Errorf("%s connection must be encrypted in production environment", r.kind)
	}
	return nil
}

// redactedEndpoint renders a connection target for logs, masking any password.
func redactedEndpoint(rawURL, host, port string) string {
	if rawURL == "" {
		if host == "" && port == "" {
			return ""
		}
		return host + ":" + port
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url"
	}
	return parsed.Redacted()
}
