// Package server exposes HTTP handlers: the WebSocket upgrade endpoint and
// the liveness check.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/Tyrowin/convohub/internal/relay"
	"github.com/Tyrowin/convohub/internal/version"
)

type healthResponse struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Hub     relay.Stats `json:"hub"`
}

// WebSocketHandler upgrades the request and hands the socket to a client
// whose pumps bridge it to the hub.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	newClient(ws, s.hub, s.cfg, s.logger).start(&s.pumps)
}

// HealthHandler reports process liveness plus a snapshot of hub activity.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := healthResponse{
		Status:  "ok",
		Version: version.String(),
		Hub:     s.hub.Stats(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("write health response", "error", err)
	}
}
