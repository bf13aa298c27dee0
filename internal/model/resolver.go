package model

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/umekomi/internal/cache"
	"github.com/hyperjump/umekomi/internal/hub"
)

// Resolved pairs a descriptor with its on-disk artifacts.
type Resolved struct {
	Descriptor *Descriptor
	Artifact   *cache.CachedArtifact
}

// Resolver maps (role, precision hint) to a concrete artifact set. It checks
// the cache first and only consults the fetcher on a miss. Concurrent
// resolutions of the same descriptor coalesce into a single fetch.
type Resolver struct {
	catalog *Catalog
	store   *cache.Store
	fetcher hub.Fetcher
	offline bool
	log     *zap.Logger
	group   singleflight.Group
}

// NewResolver creates a resolver. When offline is true a cache miss fails
// with ErrModelUnavailable instead of reaching the fetcher.
func NewResolver(catalog *Catalog, store *cache.Store, fetcher hub.Fetcher, offline bool, log *zap.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		store:   store,
		fetcher: fetcher,
		offline: offline,
		log:     log,
	}
}

// Resolve returns the artifact set for (role, hint). Idempotent: a warm
// cache returns structurally identical descriptors with no network activity.
func (r *Resolver) Resolve(ctx context.Context, role Role, hint Quantization) (*Resolved, error) {
	desc, err := r.catalog.Describe(role, hint)
	if err != nil {
		return nil, err
	}

	slot := desc.Slot()
	if art, ok := r.store.Locate(slot); ok {
		return &Resolved{Descriptor: desc, Artifact: art}, nil
	}

	if r.offline {
		return nil, fmt.Errorf("%w: %s not cached and engine is offline", ErrModelUnavailable, slot)
	}

	v, err, _ := r.group.Do(slot.String(), func() (interface{}, error) {
		// Re-check under the flight lock: a peer may have committed the
		// slot while this caller was queued.
		if art, ok := r.store.Locate(slot); ok {
			return art, nil
		}
		return r.download(ctx, desc)
	})
	if err != nil {
		return nil, err
	}
	return &Resolved{Descriptor: desc, Artifact: v.(*cache.CachedArtifact)}, nil
}

func (r *Resolver) download(ctx context.Context, desc *Descriptor) (*cache.CachedArtifact, error) {
	names := desc.Files()
	r.log.Info("resolving model",
		zap.String("repo", desc.ID),
		zap.String("role", string(desc.Role)),
		zap.String("quantization", string(desc.Quantization)),
		zap.Int("files", len(names)))

	files := make(map[string][]byte, len(names))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			data, err := r.fetcher.Fetch(gctx, desc.ID, name)
			if err != nil {
				return err
			}
			mu.Lock()
			files[name] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, desc.ID, err)
	}

	art, err := r.store.Put(desc.Slot(), files)
	if err != nil {
		// Storage failures keep their own identity (spec taxonomy); the
		// condition may clear for a later attempt.
		return nil, err
	}
	return art, nil
}
