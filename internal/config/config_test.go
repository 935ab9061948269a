package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultClassifierTimeout, cfg.ClassifierTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.DecayGracePeriod)
	assert.Equal(t, DefaultSweepInterval, cfg.SweepInterval)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPS)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "staging")
	t.Setenv("CLASSIFIER_TIMEOUT", "500ms")
	t.Setenv("DECAY_GRACE_DAYS", "14")
	t.Setenv("SWEEP_INTERVAL", "10m")
	t.Setenv("RATE_LIMIT_RPS", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, 500*time.Millisecond, cfg.ClassifierTimeout)
	assert.Equal(t, 14*24*time.Hour, cfg.DecayGracePeriod)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 250, cfg.RateLimitRPS)
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "not_a_number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPS)
}

func TestValidateProductionRequiresAdminSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("ADMIN_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_SECRET")
}

func TestValidateRejectsNonPositiveDurations(t *testing.T) {
	cfg := &Config{
		ClassifierTimeout: 0,
		DecayGracePeriod:  time.Hour,
		SweepInterval:     time.Hour,
	}
	assert.Error(t, cfg.Validate())

	cfg.ClassifierTimeout = time.Second
	cfg.SweepInterval = -time.Minute
	assert.Error(t, cfg.Validate())
}
