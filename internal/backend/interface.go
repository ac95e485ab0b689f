// Package backend builds the preference gateway and the change relay
// transport selected by configuration.
package backend

import (
	"context"

	"salvadanaio/internal/notify"
	"salvadanaio/internal/preferences"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Pinger is implemented by gateways that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendResult contains the gateway and its cleanup function.
type BackendResult struct {
	Gateway preferences.Gateway
	Cleanup CleanupFunc
}

// Ready reports whether the gateway can serve requests.
func (r *BackendResult) Ready(ctx context.Context) error {
	if p, ok := r.Gateway.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// TransportResult holds the relay transport, nil when relaying is disabled.
type TransportResult struct {
	Transport notify.Transport
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateTransport(ctx context.Context, config Config) (*TransportResult, error)
}
