package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/mentorhub/realtime/config"
	"github.com/mentorhub/realtime/server"
	"github.com/mentorhub/realtime/src/auth"
	"github.com/mentorhub/realtime/src/bridge"
	"github.com/mentorhub/realtime/src/hub"
	"github.com/mentorhub/realtime/src/service"
	"github.com/mentorhub/realtime/src/store"
)

func main() {
	_ = godotenv.Load()

	logger := newLogger(os.Getenv("REALTIME_LOG_LEVEL"))

	cfg := config.FromEnv()
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("REALTIME_JWT_SECRET is required")
	}

	redisCfg := bridge.RedisConfigFromEnv()
	broker := bridge.NewRedisBroker(redisCfg, logger)
	if err := broker.Start(); err != nil {
		logger.Fatal().Err(err).Str("addr", redisCfg.Addr).Msg("broker start failed")
	}

	kv := redisCfg.NewClient()
	presence := store.NewPresence(kv, redisCfg.Prefix)
	typing := store.NewTyping(kv, redisCfg.Prefix, time.Duration(cfg.TypingTTL)*time.Second)

	h := hub.New(hub.Options{
		Broker:       broker,
		Presence:     presence,
		Typing:       typing,
		PingInterval: time.Duration(cfg.PingInterval) * time.Second,
	}, logger)
	svc := service.New(h, broker, presence, typing, logger)
	verifier := auth.NewVerifier(cfg.JWTSecret)
	srv := server.New(cfg, h, svc, verifier, nil, logger)

	go h.Run()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("server stopped")
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	}

	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	h.Shutdown()
	if err := broker.Stop(); err != nil {
		logger.Error().Err(err).Msg("broker stop error")
	}
	kv.Close()
}

func newLogger(level string) zerolog.Logger {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if level == "" {
		level = "info"
	}
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		logger = logger.Level(lvl)
	}
	return logger
}
