package model

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/umekomi/internal/backend"
)

// Registry is the process-wide owner of loaded model graphs. Handles are
// shared read-only and reference-counted: Acquire loads a graph on first use
// and shares it afterwards; Release drops the count and unloads at zero.
type Registry struct {
	resolver *Resolver
	backend  backend.Backend
	log      *zap.Logger

	mu      sync.Mutex
	entries map[string]*registryEntry
	closed  bool
}

type registryEntry struct {
	resolved *Resolved
	graph    backend.Graph
	refs     int
}

// Handle is one reference to a loaded model. Callers must Release it when done.
type Handle struct {
	Resolved *Resolved
	Graph    backend.Graph

	registry *Registry
	key      string
	once     sync.Once
}

// Release returns the reference. Safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.registry.release(h.key)
	})
}

// NewRegistry creates a registry over the given resolver and backend.
func NewRegistry(resolver *Resolver, be backend.Backend, log *zap.Logger) *Registry {
	return &Registry{
		resolver: resolver,
		backend:  be,
		log:      log,
		entries:  make(map[string]*registryEntry),
	}
}

// Acquire resolves (role, hint) and returns a handle on its loaded graph,
// sharing an already-loaded graph when one exists.
func (r *Registry) Acquire(ctx context.Context, role Role, hint Quantization) (*Handle, error) {
	resolved, err := r.resolver.Resolve(ctx, role, hint)
	if err != nil {
		return nil, err
	}
	key := resolved.Descriptor.Slot().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("%w: registry is shut down", ErrModelUnavailable)
	}

	entry, ok := r.entries[key]
	if !ok {
		graph, err := r.backend.Load(
			resolved.Artifact.Path(resolved.Descriptor.Quantization.ModelFilename()),
			graphSpec(resolved.Descriptor),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: loading graph for %s: %v", ErrModelUnavailable, key, err)
		}
		entry = &registryEntry{resolved: resolved, graph: graph}
		r.entries[key] = entry
		r.log.Info("loaded model",
			zap.String("model", key),
			zap.String("role", string(role)))
	}
	entry.refs++

	return &Handle{
		Resolved: entry.resolved,
		Graph:    entry.graph,
		registry: r,
		key:      key,
	}, nil
}

func (r *Registry) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs > 0 {
		return
	}
	delete(r.entries, key)
	if err := entry.graph.Close(); err != nil {
		r.log.Warn("failed to unload model", zap.String("model", key), zap.Error(err))
	} else {
		r.log.Info("unloaded model", zap.String("model", key))
	}
}

// Close shuts the registry down, unloading every graph regardless of
// outstanding handles. Further Acquire calls fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	for key, entry := range r.entries {
		if err := entry.graph.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unloading %s: %w", key, err)
		}
		delete(r.entries, key)
	}
	return firstErr
}

// graphSpec maps a descriptor to the backend spec for its role. The
// embedding/reranker split is decided here, once, at load time.
func graphSpec(d *Descriptor) backend.Spec {
	if d.Role == RoleReranker {
		return backend.Spec{Kind: backend.KindLogits}
	}
	return backend.Spec{Kind: backend.KindHiddenStates, Hidden: d.Dimension}
}
