package cache

import (
	"context"
	"time"

	"github.com/justestif/artist-pulse/internal/provider"
)

// Wrap returns an Adapter that serves next's results through c.
// Cached Data is shared between callers and must be treated as read-only.
func Wrap(next provider.Adapter, c Cache, ttl time.Duration) provider.Adapter {
	return &cachedAdapter{next: next, cache: c, ttl: ttl}
}

type cachedAdapter struct {
	next  provider.Adapter
	cache Cache
	ttl   time.Duration
}

func (a *cachedAdapter) Name() provider.Name {
	return a.next.Name()
}

func (a *cachedAdapter) Fetch(ctx context.Context, q provider.Query) (*provider.Data, error) {
	key := Key{Provider: a.next.Name(), Query: q}

	res, err := a.cache.GetOrCompute(ctx, key, a.ttl, func(ctx context.Context) (provider.Result, error) {
		data, err := a.next.Fetch(ctx, q)
		// A caller giving up says nothing about the provider; don't remember it.
		if ctx.Err() != nil {
			return provider.Result{}, ctx.Err()
		}
		if err != nil {
			return provider.Failure(a.next.Name(), err), nil
		}
		return provider.Success(a.next.Name(), data), nil
	})
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, res.Err
	}
	return res.Data, nil
}
