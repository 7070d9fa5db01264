package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, 30, cfg.PingInterval)
	assert.Equal(t, 5, cfg.TypingTTL)
	assert.Equal(t, 1000, cfg.MaxConnections)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("REALTIME_LISTEN_ADDR", ":9000")
	t.Setenv("REALTIME_JWT_SECRET", "s3cret")
	t.Setenv("REALTIME_PING_INTERVAL", "15")
	t.Setenv("REALTIME_TYPING_TTL", "7")

	cfg := FromEnv()
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 15, cfg.PingInterval)
	assert.Equal(t, 7, cfg.TypingTTL)
}

func TestFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("REALTIME_PING_INTERVAL", "soon")

	cfg := FromEnv()
	assert.Equal(t, 30, cfg.PingInterval)
}
