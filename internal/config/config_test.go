package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.EqualValues(t, 4000, cfg.HttpServerPort)
	assert.Equal(t, "localhost", cfg.PostgresHost)
	assert.Empty(t, cfg.RedisHost, "relay is off unless a Redis host is set")
	assert.Equal(t, 37, cfg.ClassCapacity)
	assert.Equal(t, 50, cfg.ConnectionLimit)
	assert.Equal(t, 2*time.Second, cfg.CreateGraceWait)
	assert.Equal(t, 100*time.Millisecond, cfg.PositionThrottle)
	assert.Equal(t, 50*time.Millisecond, cfg.WhiteboardThrottle)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_SERVER_PORT", "8080")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("CLASS_CAPACITY", "20")
	t.Setenv("POSITION_THROTTLE", "250ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.EqualValues(t, 8080, cfg.HttpServerPort)
	assert.Equal(t, "redis.internal", cfg.RedisHost)
	assert.Equal(t, 20, cfg.ClassCapacity)
	assert.Equal(t, 250*time.Millisecond, cfg.PositionThrottle)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("HTTP_SERVER_PORT", "80")

	_, err := LoadConfig()
	assert.Error(t, err, "ports below 1000 are reserved")
}
