package engine

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Factory creates a backend for a provider and model.
type Factory interface {
	Backend(ctx context.Context, provider, model string) (Backend, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, provider, model string) (Backend, error)

// Backend implements Factory.
func (f FactoryFunc) Backend(ctx context.Context, provider, model string) (Backend, error) {
	return f(ctx, provider, model)
}

// ModelCache memoizes backends by "provider:model" for the life of the
// process. Entries are created lazily on first use and never evicted. It is
// safe for concurrent use.
type ModelCache struct {
	factory Factory

	mu       sync.Mutex
	backends map[string]Backend
}

// NewModelCache creates an empty cache backed by factory.
func NewModelCache(factory Factory) *ModelCache {
	return &ModelCache{factory: factory, backends: make(map[string]Backend)}
}

// Get returns the cached backend for provider and model, creating it if needed.
func (c *ModelCache) Get(ctx context.Context, provider, model string) (Backend, error) {
	key := provider + ":" + model

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.backends[key]; ok {
		return b, nil
	}
	b, err := c.factory.Backend(ctx, provider, model)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: load model %s", key)
	}
	c.backends[key] = b
	zap.L().Debug("engine: model loaded", zap.String("model", key))
	return b, nil
}

// Len returns the number of cached backends.
func (c *ModelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.backends)
}
