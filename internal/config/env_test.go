package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "oops")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_FLOAT", "3.14")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_BAD_DURATION", "soon")

	assert.Equal(t, "value", EnvOrDefault("TEST_STR", "fallback"))
	assert.Equal(t, "fallback", EnvOrDefault("TEST_MISSING", "fallback"))

	assert.Equal(t, 42, EnvIntOrDefault("TEST_INT", 0))
	assert.Equal(t, 7, EnvIntOrDefault("TEST_BAD_INT", 7))

	assert.True(t, EnvBoolOrDefault("TEST_BOOL", false))
	assert.True(t, EnvBoolOrDefault("TEST_MISSING", true))

	assert.InDelta(t, 3.14, EnvFloat64OrDefault("TEST_FLOAT", 0), 0.0001)
	assert.InDelta(t, 1.5, EnvFloat64OrDefault("TEST_MISSING", 1.5), 0.0001)

	assert.Equal(t, 90*time.Second, EnvDurationOrDefault("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, EnvDurationOrDefault("TEST_BAD_DURATION", time.Second))
}
