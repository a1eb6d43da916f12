// Package adapter implements the Adapter Registry (C8) and the
// required email/whatsapp/cli channel adapters.
package adapter

import (
	"context"
	"strings"

	domainerrors "github.com/eloym/formasur/internal/domain/errors"
)

// Adapter delivers a rendered action payload to an external channel
// and returns a JSON-like response mapping. Any returned error signals
// a delivery failure.
type Adapter interface {
	Send(ctx context.Context, payload map[string]any) (map[string]any, error)
}

// Registry resolves a channel name to its Adapter, case-insensitively.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register installs adapter under channel (case-insensitive). Intended
// to be called only during startup wiring; the registry is read-only
// once the dispatcher begins using it.
func (r *Registry) Register(channel string, a Adapter) {
	r.adapters[strings.ToLower(channel)] = a
}

// Resolve looks up the adapter for channel. An empty channel resolves
// to "default". Unknown channels yield AdapterNotFoundError.
func (r *Registry) Resolve(channel string) (Adapter, error) {
	key := strings.ToLower(strings.TrimSpace(channel))
	if key == "" {
		key = "default"
	}
	a, ok := r.adapters[key]
	if !ok {
		return nil, domainerrors.NewAdapterNotFoundError(key)
	}
	return a, nil
}
