// Package server provides the HTTP API and WebSocket event stream
package server

import "time"

// Server configuration constants
const (
	// WriteTimeout bounds a single WebSocket event write.
	WriteTimeout = 5 * time.Second
)
