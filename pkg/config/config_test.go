package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", config.Redis.Host)
	assert.Equal(t, 6379, config.Redis.Port)

	assert.Equal(t, 10, config.Governor.MinuteLimit)
	assert.Equal(t, 60, config.Governor.HourlyLimit)
	assert.Equal(t, 30*time.Minute, config.Governor.SpamCooldown)
	assert.Equal(t, 24*time.Hour, config.Governor.AbuseCooldown)

	assert.Equal(t, 5, config.Breakers.DefaultFailureThreshold)
	assert.Equal(t, 60*time.Second, config.Breakers.DefaultRecoveryTimeout)
	assert.Equal(t, 3, config.Breakers.SuccessThreshold)

	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.True(t, config.Metrics.Enabled)
	assert.False(t, config.Tracing.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GOVERNOR_MINUTE_LIMIT", "25")
	t.Setenv("GOVERNOR_SPAM_COOLDOWN", "10m")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "7")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("METRICS_ENABLED", "false")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, config.Governor.MinuteLimit)
	assert.Equal(t, 10*time.Minute, config.Governor.SpamCooldown)
	assert.Equal(t, 7, config.Breakers.DefaultFailureThreshold)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.False(t, config.Metrics.Enabled)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("GOVERNOR_MINUTE_LIMIT", "not-a-number")
	t.Setenv("GOVERNOR_SPAM_COOLDOWN", "soon")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, config.Governor.MinuteLimit)
	assert.Equal(t, 30*time.Minute, config.Governor.SpamCooldown)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Redis: RedisConfig{Host: "localhost", Port: 6379},
			Governor: GovernorConfig{
				MinuteLimit:   10,
				HourlyLimit:   60,
				SpamCooldown:  30 * time.Minute,
				AbuseCooldown: 24 * time.Hour,
			},
			Breakers: BreakerConfig{
				DefaultFailureThreshold: 5,
				DefaultRecoveryTimeout:  time.Minute,
				SuccessThreshold:        3,
			},
		}
	}

	assert.NoError(t, valid().Validate())

	t.Run("zero minute limit", func(t *testing.T) {
		c := valid()
		c.Governor.MinuteLimit = 0
		assert.Error(t, c.Validate())
	})

	t.Run("zero hourly limit", func(t *testing.T) {
		c := valid()
		c.Governor.HourlyLimit = 0
		assert.Error(t, c.Validate())
	})

	t.Run("negative cooldown", func(t *testing.T) {
		c := valid()
		c.Governor.AbuseCooldown = -time.Hour
		assert.Error(t, c.Validate())
	})

	t.Run("zero failure threshold", func(t *testing.T) {
		c := valid()
		c.Breakers.DefaultFailureThreshold = 0
		assert.Error(t, c.Validate())
	})

	t.Run("invalid redis port", func(t *testing.T) {
		c := valid()
		c.Redis.Port = 70000
		assert.Error(t, c.Validate())
	})
}
