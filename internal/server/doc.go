// Package server implements the HTTP and WebSocket edge of movebox.
//
// The implementation is organized into specialized files for configuration,
// clients, routing, origin policy, and HTTP handlers. The room itself lives in
// package room and is injected through New.
package server
