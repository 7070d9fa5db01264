package config

import (
	"os"
	"strconv"
)

// SocketConfig holds the realtime server configuration.
type SocketConfig struct {
	ListenAddr      string `json:"listen_addr"`
	JWTSecret       string `json:"-"`
	MaxConnections  int    `json:"max_connections"`
	PingInterval    int    `json:"ping_interval_seconds"`
	TypingTTL       int    `json:"typing_ttl_seconds"`
	WriteTimeout    int    `json:"write_timeout_seconds"`
	ReadBufferSize  int    `json:"read_buffer_size"`
	WriteBufferSize int    `json:"write_buffer_size"`
}

// DefaultConfig returns the default realtime server configuration.
func DefaultConfig() *SocketConfig {
	return &SocketConfig{
		ListenAddr:      ":8090",
		MaxConnections:  1000,
		PingInterval:    30,
		TypingTTL:       5,
		WriteTimeout:    10,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// FromEnv loads the server configuration from environment variables,
// falling back to defaults for any missing values.
func FromEnv() *SocketConfig {
	cfg := DefaultConfig()

	if addr := os.Getenv("REALTIME_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.JWTSecret = os.Getenv("REALTIME_JWT_SECRET")

	if v, ok := envInt("REALTIME_MAX_CONNECTIONS"); ok {
		cfg.MaxConnections = v
	}
	if v, ok := envInt("REALTIME_PING_INTERVAL"); ok {
		cfg.PingInterval = v
	}
	if v, ok := envInt("REALTIME_TYPING_TTL"); ok {
		cfg.TypingTTL = v
	}
	if v, ok := envInt("REALTIME_WRITE_TIMEOUT"); ok {
		cfg.WriteTimeout = v
	}
	return cfg
}

func envInt(key string) (int, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
