// Package server wires HTTP handlers into a ServeMux for the relay service.
package server

import "net/http"

// Routes returns a ServeMux with the WebSocket endpoint and health check.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	return mux
}
