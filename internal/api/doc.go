// Package api implements the HTTP REST API and WebSocket server for the
// Eclypse bridge.
//
// This package provides:
//   - REST endpoints over the tracked BACnet objects, writes and refreshes
//   - Home Assistant entity read models
//   - The setup wizard and stored config entries
//   - The audit trail of property writes
//   - A WebSocket hub broadcasting poll results
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Graceful Degradation
//
// The server runs without a bridge so that the setup wizard is reachable
// before any controller is configured. Object endpoints then answer 503.
package api
