package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/constants"
)

type Config struct {
	API       APIConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Aggregate AggregateConfig
	Metrics   MetricsConfig
	Logging   LoggingConfig
}

type APIConfig struct {
	BaseURL          string        `validate:"required,url"`
	Timeout          time.Duration `validate:"gt=0"`
	Retries          int           `validate:"gte=0,lte=10"`
	RetryBaseDelay   time.Duration `validate:"gt=0"`
	RateLimitRPS     float64       `validate:"gte=0"`
	CircuitThreshold int           `validate:"gte=0"`
	CircuitReset     time.Duration `validate:"gt=0"`
}

type CacheConfig struct {
	TTL     time.Duration `validate:"gt=0"`
	Backend string        `validate:"oneof=memory redis"`
}

type RedisConfig struct {
	Host     string `validate:"required_if=Enabled true"`
	Port     int    `validate:"gte=1,lte=65535"`
	Password string
	DB       int `validate:"gte=0"`
	Enabled  bool
}

type AggregateConfig struct {
	Concurrency int `validate:"gte=1,lte=64"`
}

type MetricsConfig struct {
	Addr string
}

type LoggingConfig struct {
	Level string `validate:"omitempty,oneof=debug info warn error"`
	File  string
}

var validate = validator.New()

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	backend := strings.ToLower(getEnv("CACHE_BACKEND", "memory"))

	cfg := &Config{
		API: APIConfig{
			BaseURL:          strings.TrimRight(getEnv("API_BASE_URL", constants.APIConfig.DefaultBaseURL), "/"),
			Timeout:          getEnvMillis("API_TIMEOUT_MS", constants.RequestDefaults.Timeout),
			Retries:          getEnvInt("API_RETRIES", constants.RequestDefaults.Retries),
			RetryBaseDelay:   getEnvMillis("API_RETRY_BASE_DELAY_MS", constants.RequestDefaults.BaseDelay),
			RateLimitRPS:     getEnvFloat("API_RATE_LIMIT_RPS", 0),
			CircuitThreshold: getEnvInt("API_CIRCUIT_THRESHOLD", 0),
			CircuitReset:     getEnvMillis("API_CIRCUIT_RESET_MS", constants.CircuitBreakerConfig.ResetTimeout),
		},
		Cache: CacheConfig{
			TTL:     getEnvMillis("CACHE_TTL_MS", constants.RequestDefaults.CacheTTL),
			Backend: backend,
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  backend == "redis",
		},
		Aggregate: AggregateConfig{
			Concurrency: getEnvInt("PROFILE_CONCURRENCY", constants.AggregateConfig.DefaultConcurrency),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ""),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	return validate.Struct(c)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvMillis reads a millisecond count.
func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
