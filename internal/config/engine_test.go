package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngineAndSourceConfig_Validation(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name:    "Should reject a zero max depth",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_ENGINE_MAX_DEPTH": "0"}),
			wantErr: true,
		},
		{
			name:    "Should reject an absurd max depth",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_ENGINE_MAX_DEPTH": "1000"}),
			wantErr: true,
		},
		{
			name:    "Should reject an unknown source kind",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_SOURCE_KIND": "s3"}),
			wantErr: true,
		},
		{
			name:    "Should reject a sub-second refresh interval",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_SOURCE_REFRESH_INTERVAL": "500ms"}),
			wantErr: true,
		},
		{
			name: "Should reject a fetch timeout longer than the refresh interval",
			envVars: mergeEnvVars(map[string]string{
				"HEIMDALL_SOURCE_REFRESH_INTERVAL": "5s",
				"HEIMDALL_SOURCE_FETCH_TIMEOUT":    "6s",
			}),
			wantErr: true,
		},
		{
			name:    "Should reject a key prefix with whitespace",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_SOURCE_KEY_PREFIX": "my prefix"}),
			wantErr: true,
		},
		{
			name:    "Should reject a key prefix ending with the separator",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_SOURCE_KEY_PREFIX": "heimdall:"}),
			wantErr: true,
		},
		{
			name: "Should ignore the key prefix for the postgres source",
			envVars: postgresEnvVars(map[string]string{
				"HEIMDALL_SOURCE_KEY_PREFIX": "",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, SourceKindPostgres, cfg.Source.Kind)
			},
		},
	})
}

func TestCacheConfig_Validation(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name:    "Should reject zero capacity when enabled",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_CACHE_CAPACITY": "0"}),
			wantErr: true,
		},
		{
			name:    "Should reject a zero ttl when enabled",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_CACHE_TTL": "0s"}),
			wantErr: true,
		},
		{
			name: "Should skip sizing checks when disabled",
			envVars: mergeEnvVars(map[string]string{
				"HEIMDALL_CACHE_ENABLED":  "false",
				"HEIMDALL_CACHE_CAPACITY": "0",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Cache.Enabled)
			},
		},
		{
			name:    "Should parse a custom ttl",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_CACHE_TTL": "90s"}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
			},
		},
	})
}
