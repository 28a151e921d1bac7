package cache

import (
	"context"
	"time"

	gcache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/justestif/artist-pulse/internal/metrics"
	"github.com/justestif/artist-pulse/internal/provider"
)

// Memory is an in-process Cache backed by go-cache.
type Memory struct {
	store *gcache.Cache
	group singleflight.Group
	opts  options
}

// NewMemory creates an in-process cache. Expired entries are swept every minute.
func NewMemory(opts ...Option) *Memory {
	return &Memory{
		store: gcache.New(gcache.NoExpiration, time.Minute),
		opts:  buildOptions(opts),
	}
}

// GetOrCompute implements Cache.
func (m *Memory) GetOrCompute(ctx context.Context, key Key, ttl time.Duration, compute ComputeFunc) (provider.Result, error) {
	k := key.String()

	if v, ok := m.store.Get(k); ok {
		metrics.CacheLookupsTotal.WithLabelValues("memory", "hit").Inc()
		return v.(provider.Result), nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("memory", "miss").Inc()

	v, err, _ := m.group.Do(k, func() (any, error) {
		// Check again: another caller may have filled it
		if v, ok := m.store.Get(k); ok {
			return v, nil
		}

		res, err := compute(ctx)
		if err != nil {
			return res, err
		}
		m.store.Set(k, res, m.opts.ttlFor(res, ttl))
		return res, nil
	})
	if err != nil {
		return provider.Result{}, err
	}
	return v.(provider.Result), nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *Memory) Len() int {
	return m.store.ItemCount()
}
