package server

import (
	"context"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/mentorhub/realtime/config"
	"github.com/mentorhub/realtime/src/auth"
	"github.com/mentorhub/realtime/src/hub"
	"github.com/mentorhub/realtime/src/service"
)

// Server exposes the realtime core over HTTP: the WebSocket upgrade
// endpoint plus the operational surface (info, health, metrics). Fiber
// serves the JSON routes; the upgrade itself runs as a raw fasthttp
// handler since Fiber does not expose *fasthttp.RequestCtx.
type Server struct {
	cfg      *config.SocketConfig
	hub      *hub.Hub
	service  *service.Service
	verifier *auth.Verifier
	metrics  *serverMetrics
	registry *prometheus.Registry
	logger   zerolog.Logger

	app      *fiber.App
	httpSrv  *fasthttp.Server
	upgrader websocket.FastHTTPUpgrader
	done     chan struct{}
}

// New wires a server over the given hub and service. A nil registry gets
// a private one.
func New(cfg *config.SocketConfig, h *hub.Hub, svc *service.Service, verifier *auth.Verifier, reg *prometheus.Registry, logger zerolog.Logger) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		cfg:      cfg,
		hub:      h,
		service:  svc,
		verifier: verifier,
		metrics:  newServerMetrics(reg),
		registry: reg,
		logger:   logger.With().Str("component", "server").Logger(),
		app:      fiber.New(),
		upgrader: websocket.FastHTTPUpgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
		},
		done: make(chan struct{}),
	}

	s.app.Get("/ws/info", s.handleInfo)
	s.app.Get("/ws/connections/:id", s.handleConnection)
	s.app.Get("/healthz", s.handleHealth)

	h.OnEviction(func(string) { s.metrics.recordEviction() })
	return s
}

func (s *Server) handleInfo(c fiber.Ctx) error {
	return c.JSON(s.service.Stats())
}

func (s *Server) handleConnection(c fiber.Ctx) error {
	info := s.service.ConnectionInfo(c.Params("id"))
	if info == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown connection"})
	}
	return c.JSON(info)
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.service.Health(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// Handler returns the root fasthttp handler: upgrades on /ws, prometheus
// on /metrics, Fiber for everything else.
func (s *Server) Handler() fasthttp.RequestHandler {
	appHandler := s.app.Handler()
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}),
	)

	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/ws":
			s.handleUpgrade(ctx)
		case "/metrics":
			metricsHandler(ctx)
		default:
			appHandler(ctx)
		}
	}
}

// Listen serves until Shutdown. Blocking.
func (s *Server) Listen() error {
	s.httpSrv = &fasthttp.Server{
		Handler: s.Handler(),
		Name:    "mentorhub-realtime",
	}

	go s.observeLoop()

	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("listening")
	return s.httpSrv.ListenAndServe(s.cfg.ListenAddr)
}

// Shutdown stops accepting connections and drains the listener.
func (s *Server) Shutdown() error {
	close(s.done)
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown()
}

// observeLoop refreshes the gauge metrics that track hub and broker state.
func (s *Server) observeLoop() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st := s.service.Stats()
			s.metrics.observe(st.SubscribedChannels, st.BrokerAvailable)
		case <-s.done:
			return
		}
	}
}
