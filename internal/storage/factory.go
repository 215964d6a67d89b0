// Package storage provides the backend factory for measurement stores.
// Backends register themselves from init() and are selected by config kind,
// so binaries pick up every backend with one blank import of storage/all.
package storage

import (
	"context"
	"fmt"
	"sync"

	"cellpipe/internal/config"
	"cellpipe/internal/measure"
)

// Factory creates a measurement store from its config.
type Factory func(ctx context.Context, cfg config.StoreConfig) (measure.Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a store backend under a kind (e.g. "sqlite").
//
// Call Register from an init() function in a backend package. Registering
// the same kind twice panics, to fail fast on ambiguous backend selection.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// Open constructs a measurement store using the registered backend factory
// for cfg.Kind.
func Open(ctx context.Context, cfg config.StoreConfig) (measure.Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing store.kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported store.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
