// Package server runs the HTTP transport and background workers under one lifecycle.
package server

import "context"

// Lifecycle defines the lifecycle interface for servers.
type Lifecycle interface {
	// Start starts the component. It must not block.
	Start(ctx context.Context) error
	// Stop stops the component gracefully within ctx.
	Stop(ctx context.Context) error
}

// Runnable represents a named component that can be started and stopped,
// such as the HTTP server or the ingestion queue consumer.
type Runnable interface {
	Lifecycle
	// Name returns the component name for identification.
	Name() string
}
