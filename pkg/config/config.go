package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Redis    RedisConfig    `json:"redis"`
	Governor GovernorConfig `json:"governor"`
	Breakers BreakerConfig  `json:"breakers"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics"`
	Tracing  TracingConfig  `json:"tracing"`
}

// ServerConfig contains the ops/admin HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// RedisConfig contains shared counter store connection configuration
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// GovernorConfig contains per-identity rate limiting configuration
type GovernorConfig struct {
	MinuteLimit   int           `json:"minute_limit"`
	HourlyLimit   int           `json:"hourly_limit"`
	SpamCooldown  time.Duration `json:"spam_cooldown"`
	AbuseCooldown time.Duration `json:"abuse_cooldown"`
	KeyPrefix     string        `json:"key_prefix"`
}

// BreakerConfig contains circuit breaker tuning overrides
type BreakerConfig struct {
	DefaultFailureThreshold int           `json:"default_failure_threshold"`
	DefaultRecoveryTimeout  time.Duration `json:"default_recovery_timeout"`
	SuccessThreshold        int           `json:"success_threshold"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
}

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	Environment    string  `json:"environment"`
	JaegerEndpoint string  `json:"jaeger_endpoint"`
	SamplingRate   float64 `json:"sampling_rate"`
	Enabled        bool    `json:"enabled"`
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Governor: GovernorConfig{
			MinuteLimit:   getEnvInt("GOVERNOR_MINUTE_LIMIT", 10),
			HourlyLimit:   getEnvInt("GOVERNOR_HOURLY_LIMIT", 60),
			SpamCooldown:  getEnvDuration("GOVERNOR_SPAM_COOLDOWN", 30*time.Minute),
			AbuseCooldown: getEnvDuration("GOVERNOR_ABUSE_COOLDOWN", 24*time.Hour),
			KeyPrefix:     getEnvString("GOVERNOR_KEY_PREFIX", "convoguard:governor:"),
		},
		Breakers: BreakerConfig{
			DefaultFailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
			DefaultRecoveryTimeout:  getEnvDuration("BREAKER_RECOVERY_TIMEOUT", 60*time.Second),
			SuccessThreshold:        getEnvInt("BREAKER_SUCCESS_THRESHOLD", 3),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
		Metrics: MetricsConfig{
			Namespace: getEnvString("METRICS_NAMESPACE", "convoguard"),
			Enabled:   getEnvBool("METRICS_ENABLED", true),
		},
		Tracing: TracingConfig{
			ServiceName:    getEnvString("TRACING_SERVICE_NAME", "convoguard"),
			Environment:    getEnvString("TRACING_ENVIRONMENT", "development"),
			JaegerEndpoint: getEnvString("TRACING_JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			SamplingRate:   getEnvFloat("TRACING_SAMPLING_RATE", 1.0),
			Enabled:        getEnvBool("TRACING_ENABLED", false),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Governor.MinuteLimit <= 0 {
		return fmt.Errorf("governor minute limit must be positive")
	}
	if c.Governor.HourlyLimit <= 0 {
		return fmt.Errorf("governor hourly limit must be positive")
	}
	if c.Governor.SpamCooldown <= 0 || c.Governor.AbuseCooldown <= 0 {
		return fmt.Errorf("governor cooldown durations must be positive")
	}
	if c.Breakers.DefaultFailureThreshold <= 0 {
		return fmt.Errorf("breaker failure threshold must be positive")
	}
	if c.Breakers.SuccessThreshold <= 0 {
		return fmt.Errorf("breaker success threshold must be positive")
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid Redis port: %d", c.Redis.Port)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
