package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisConfig_Load(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name:    "Should apply source defaults",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 4, cfg.Redis.PoolSize)
				assert.Equal(t, 3*time.Second, cfg.Redis.ReadTimeout)
				assert.Equal(t, "heimdall-evaluator", cfg.Redis.ClientName)
				assert.Equal(t, "localhost:6379", cfg.Redis.Address())
			},
		},
		{
			name: "Should parse ping settings",
			envVars: mergeEnvVars(map[string]string{
				"HEIMDALL_REDIS_PING_MAX_RETRIES": "8",
				"HEIMDALL_REDIS_PING_BACKOFF":     "3s",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8, cfg.Redis.PingMaxRetries)
				assert.Equal(t, 3*time.Second, cfg.Redis.PingBackoff)
			},
		},
		{
			name:    "Should reject zero ping attempts",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_REDIS_PING_MAX_RETRIES": "0"}),
			wantErr: true,
		},
		{
			name:    "Should reject an unparsable backoff",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_REDIS_PING_BACKOFF": "soon"}),
			wantErr: true,
		},
		{
			name: "Should reject more idle connections than the pool holds",
			envVars: mergeEnvVars(map[string]string{
				"HEIMDALL_REDIS_POOL_SIZE":      "2",
				"HEIMDALL_REDIS_MIN_IDLE_CONNS": "3",
			}),
			wantErr: true,
		},
		{
			name: "Should reject a retry ceiling below the floor",
			envVars: mergeEnvVars(map[string]string{
				"HEIMDALL_REDIS_MIN_RETRY_BACKOFF": "1s",
				"HEIMDALL_REDIS_MAX_RETRY_BACKOFF": "10ms",
			}),
			wantErr: true,
		},
		{
			name:    "Should reject database 16",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_REDIS_DB": "16"}),
			wantErr: true,
		},
		{
			name:    "Should reject a negative database",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_REDIS_DB": "-1"}),
			wantErr: true,
		},
		{
			name:    "Should accept the hardened production profile",
			envVars: validProductionConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Redis.TLSEnabled)
			},
		},
		{
			name: "Should skip redis checks when postgres is the source",
			envVars: postgresEnvVars(map[string]string{
				"HEIMDALL_REDIS_HOST": " bad host",
			}),
		},
	})
}

func TestRedisConfig_Validate(t *testing.T) {
	const strong = "RedisSecure123!"

	tests := []struct {
		name    string
		cfg     RedisConfig
		env     string
		wantErr string
	}{
		{name: "parts in development", cfg: RedisConfig{Host: "localhost", Port: "6379"}, env: "development"},
		{name: "empty host", cfg: RedisConfig{Port: "6379"}, env: "development", wantErr: "host cannot be empty"},
		{name: "padded host", cfg: RedisConfig{Host: " localhost", Port: "6379"}, env: "development", wantErr: "whitespace"},
		{name: "non-numeric port", cfg: RedisConfig{Host: "localhost", Port: "abc"}, env: "development", wantErr: "must be a number"},
		{
			name:    "production without password",
			cfg:     RedisConfig{Host: "redis", Port: "6379", TLSEnabled: true},
			env:     EnvironmentProduction,
			wantErr: "password is required",
		},
		{
			name:    "production with short password",
			cfg:     RedisConfig{Host: "redis", Port: "6379", Password: "short", TLSEnabled: true},
			env:     EnvironmentProduction,
			wantErr: "at least 12",
		},
		{
			name:    "production without TLS",
			cfg:     RedisConfig{Host: "redis", Port: "6379", Password: strong},
			env:     EnvironmentProduction,
			wantErr: "must be encrypted",
		},
		{
			name: "production rediss URL",
			cfg:  RedisConfig{URL: "rediss://:" + strong + "@redis.example.com:6379/0"},
			env:  EnvironmentProduction,
		},
		{
			name: "production redis URL with TLS flag",
			cfg:  RedisConfig{URL: "redis://:" + strong + "@redis.example.com:6379", TLSEnabled: true},
			env:  EnvironmentProduction,
		},
		{
			name:    "production plain redis URL",
			cfg:     RedisConfig{URL: "redis://:" + strong + "@redis.example.com:6379"},
			env:     EnvironmentProduction,
			wantErr: "must be encrypted",
		},
		{
			name:    "production URL without password",
			cfg:     RedisConfig{URL: "rediss://redis.example.com:6379"},
			env:     EnvironmentProduction,
			wantErr: "password is required",
		},
		{name: "wrong scheme", cfg: RedisConfig{URL: "http://redis.example.com:6379/0"}, env: "development", wantErr: "invalid scheme"},
		{name: "URL database 16", cfg: RedisConfig{URL: "redis://redis.example.com:6379/16"}, env: "development", wantErr: "between 0 and 15"},
		{name: "URL database not numeric", cfg: RedisConfig{URL: "redis://redis.example.com:6379/abc"}, env: "development", wantErr: "valid integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.env)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedisConfig_Endpoint(t *testing.T) {
	t.Run("Should mask the URL password", func(t *testing.T) {
		cfg := RedisConfig{URL: "rediss://:hunter2hunter2@redis.example.com:6379/2"}
		assert.NotContains(t, cfg.Endpoint(), "hunter2")
		assert.Contains(t, cfg.Endpoint(), "redis.example.com:6379")
	})

	t.Run("Should join IPv6 parts", func(t *testing.T) {
		cfg := RedisConfig{Host: "::1", Port: "6379"}
		assert.Equal(t, "[::1]:6379", cfg.Address())
	})

	t.Run("Should report nothing when unset", func(t *testing.T) {
		assert.Empty(t, (&RedisConfig{}).Endpoint())
		assert.False(t, (&RedisConfig{}).IsConfigured())
	})
}
