// Package server implements the HTTP and WebSocket transport for the ConvoHub relay.
//
// The implementation is organized into specialized files for configuration,
// origin policy, rate limiting, client pumps, routing, and HTTP handlers to
// keep the transport layer maintainable and testable as the project grows.
// The relay semantics themselves live in internal/relay; this package only
// bridges sockets to the hub.
package server
