package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "")
	c := LoadRateLimitConfig()
	assert.True(t, c.Enabled)
	assert.Equal(t, 30, c.Capacity)
	assert.Equal(t, time.Second, c.RefillInterval)
	assert.Equal(t, "rl", c.Prefix)
}

func TestLoadRateLimitConfigOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "off")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2m")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.False(t, c.Enabled)
	assert.Equal(t, 5, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 2*time.Minute, c.RefillInterval)
	assert.Equal(t, 10*time.Minute, c.TTL, "TTL is raised to five refill intervals")
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, time.Hour, envDur("X_DUR", time.Hour))
	assert.True(t, envBool("X_BOOL", true))
}
