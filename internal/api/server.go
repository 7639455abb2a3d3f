package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/argus-bot/telemetry/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Server is the embedded HTTP service.
type Server struct {
	httpServer *http.Server
	hub        HubPort
	loop       LoopPort
	snapshot   SnapshotPort
	renderer   FrameRenderer
	upgrader   websocket.Upgrader
	cfg        config.ServerConfig
	broadcast  config.BroadcastConfig
	logger     *slog.Logger
	accessLog  io.Writer
	startTime  time.Time
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) func(*Server) {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAccessLog writes Apache-style access lines to w. Nil disables them.
func WithAccessLog(w io.Writer) func(*Server) {
	return func(s *Server) {
		s.accessLog = w
	}
}

// WithThermalSnapshot enables GET /api/v1/thermal.png.
func WithThermalSnapshot(snapshot SnapshotPort, renderer FrameRenderer) func(*Server) {
	return func(s *Server) {
		s.snapshot = snapshot
		s.renderer = renderer
	}
}

// NewServer wires the server to the hub and loop.
func NewServer(cfg *config.Config, hub HubPort, lp LoopPort, options ...func(*Server)) *Server {
	s := &Server{
		hub:       hub,
		loop:      lp,
		cfg:       cfg.Server,
		broadcast: cfg.Broadcast,
		logger:    slog.Default(),
		accessLog: os.Stdout,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.Server.ReadTimeout,
			// the dashboard is opened from a local file or another host
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, option := range options {
		option(s)
	}

	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	s.RegisterRoutes(router)

	var h http.Handler = router
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet}),
	)(h)
	if s.accessLog != nil {
		h = handlers.LoggingHandler(s.accessLog, h)
	}
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
	)(h)
	return h
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr, "ws_path", s.cfg.WSPath)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server. Hijacked WebSocket connections are
// not tracked by net/http; the hub closes those.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
