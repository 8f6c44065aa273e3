package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"API_BASE_URL", "API_TIMEOUT_MS", "API_RETRIES", "API_RETRY_BASE_DELAY_MS",
		"API_RATE_LIMIT_RPS", "API_CIRCUIT_THRESHOLD", "API_CIRCUIT_RESET_MS",
		"CACHE_TTL_MS", "CACHE_BACKEND", "PROFILE_CONCURRENCY", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.API.Retries)
	assert.Equal(t, time.Second, cfg.API.RetryBaseDelay)
	assert.Equal(t, 300000*time.Millisecond, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 4, cfg.Aggregate.Concurrency)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://refdata.example.com/api/v1/")
	t.Setenv("API_TIMEOUT_MS", "100")
	t.Setenv("API_RETRIES", "0")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://refdata.example.com/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 100*time.Millisecond, cfg.API.Timeout)
	assert.Equal(t, 0, cfg.API.Retries)
	assert.Equal(t, 2.5, cfg.API.RateLimitRPS)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 6380, cfg.Redis.Port)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"API_BASE_URL":        "not a url",
		"CACHE_BACKEND":       "memcached",
		"PROFILE_CONCURRENCY": "0",
		"LOG_LEVEL":           "verbose",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
