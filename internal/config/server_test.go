package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	primaryKeyHash   = "5dec7e1c36e8ec7f526cfa8ff6dc788daad76f6dd34467662eb47990dca6b55d"
	secondaryKeyHash = "2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae"
)

func TestServerConfig_Load(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name:    "Should bracket an IPv6 listen host",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_SERVER_HOST": "::"}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "[::]:8080", cfg.Server.Address())
				assert.False(t, cfg.Server.AuthEnabled())
			},
		},
		{
			name: "Should accept several API key hashes for rotation",
			envVars: mergeEnvVars(map[string]string{
				"HEIMDALL_SERVER_API_KEY_HASHES": primaryKeyHash + "," + secondaryKeyHash,
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{primaryKeyHash, secondaryKeyHash}, cfg.Server.APIKeyHashes)
				assert.True(t, cfg.Server.AuthEnabled())
			},
		},
		{
			name:    "Should reject a hash that is not hex",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_SERVER_API_KEY_HASHES": "not-a-hash"}),
			wantErr: true,
		},
		{
			name: "Should reject one bad hash among good ones",
			envVars: mergeEnvVars(map[string]string{
				"HEIMDALL_SERVER_API_KEY_HASHES": primaryKeyHash + ",abc123",
			}),
			wantErr: true,
		},
		{
			name:    "Should reject a non-numeric port",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_SERVER_PORT": "http"}),
			wantErr: true,
		},
		{
			name:    "Should require certificates when TLS is on",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_SERVER_TLS_ENABLED": "true"}),
			wantErr: true,
		},
		{
			name: "Should reject a header timeout longer than the read timeout",
			envVars: mergeEnvVars(map[string]string{
				"HEIMDALL_SERVER_READ_TIMEOUT":        "1s",
				"HEIMDALL_SERVER_READ_HEADER_TIMEOUT": "2s",
			}),
			wantErr: true,
		},
		{
			name:    "Should reject a zero batch size",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_SERVER_MAX_BATCH_SIZE": "0"}),
			wantErr: true,
		},
		{
			name: "Should require API keys in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				delete(cfg, "HEIMDALL_SERVER_API_KEY_HASHES")
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "Should require TLS in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				cfg["HEIMDALL_SERVER_TLS_ENABLED"] = "false"
				delete(cfg, "HEIMDALL_SERVER_TLS_CERT_FILE")
				delete(cfg, "HEIMDALL_SERVER_TLS_KEY_FILE")
				return cfg
			}(),
			wantErr: true,
		},
	})
}
