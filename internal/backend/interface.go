package backend

import (
	"context"

	"carmatch/internal/records"
	"carmatch/internal/services"
)

// Backend is the record store the application reads and writes.
type Backend interface {
	records.Store
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional collaborators.
type BackendResult struct {
	Backend Backend
	// Publisher is set when stored submissions are mirrored through AMQP.
	Publisher services.SyncPublisher
	Cleanup   CleanupFunc
}

// Ping reports whether the backend is reachable. Backends without a
// health check are always ready.
func (r *BackendResult) Ping(ctx context.Context) error {
	if p, ok := r.Backend.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close runs the cleanup function if one is set.
func (r *BackendResult) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
