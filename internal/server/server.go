// Package server constructs and runs the relay HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/convohub/internal/relay"
)

// Server ties the relay hub to its HTTP transport. pumps counts every read
// and write pump spawned for an upgraded socket so Shutdown can wait for
// close frames to flush.
type Server struct {
	cfg      *Config
	hub      *relay.Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
	logger   *slog.Logger
	pumps    sync.WaitGroup
}

// New builds a Server around a fresh hub. canJoin is the external membership
// authority; nil permits every join.
func New(cfg *Config, canJoin relay.CanJoinFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Sanitize()

	s := &Server{
		cfg: cfg,
		hub: relay.NewHub(relay.Config{
			QueueSize: cfg.SendQueueSize,
			CanJoin:   canJoin,
			Logger:    logger,
		}),
		origins: newOriginPolicy(cfg.AllowedOrigins, logger),
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Hub exposes the relay hub, mainly for stats and tests.
func (s *Server) Hub() *relay.Hub { return s.hub }

// HTTPServer wraps the routes in an http.Server with production timeouts.
// Read and write timeouts stay unset because WebSocket connections are
// long-lived; liveness is handled by the ping/pong cycle instead.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:        s.cfg.Port,
		Handler:     s.Routes(),
		IdleTimeout: 60 * time.Second,
	}
}

// Shutdown stops accepting HTTP traffic, closes every live connection
// through the hub's leave cascade, then waits for the pump goroutines to
// finish so each write pump has flushed its close frame. Returns the
// context's error if the pumps do not drain before the deadline.
func (s *Server) Shutdown(ctx context.Context, httpServer *http.Server) error {
	s.logger.Info("shutting down HTTP server")
	err := httpServer.Shutdown(ctx)

	s.hub.Shutdown()

	done := make(chan struct{})
	go func() {
		s.pumps.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all client pumps stopped")
	case <-ctx.Done():
		s.logger.Warn("shutdown timed out waiting for client pumps")
		return ctx.Err()
	}
	return err
}
