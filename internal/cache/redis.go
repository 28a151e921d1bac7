package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/justestif/artist-pulse/internal/metrics"
	"github.com/justestif/artist-pulse/internal/provider"
)

// Redis is a Cache shared between processes through Redis. Values are
// stored as JSON; a failed result keeps its provider and message but not
// its wrapped cause.
type Redis struct {
	rdb   redis.UniversalClient
	group singleflight.Group
	opts  options
}

// NewRedis creates a Redis-backed cache.
func NewRedis(rdb redis.UniversalClient, opts ...Option) *Redis {
	return &Redis{rdb: rdb, opts: buildOptions(opts)}
}

// GetOrCompute implements Cache. Redis errors degrade to a cache miss; the
// cache never fails a provider call that could otherwise succeed.
func (r *Redis) GetOrCompute(ctx context.Context, key Key, ttl time.Duration, compute ComputeFunc) (provider.Result, error) {
	k := r.opts.prefix + key.String()

	if res, ok := r.get(ctx, k); ok {
		metrics.CacheLookupsTotal.WithLabelValues("redis", "hit").Inc()
		return res, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("redis", "miss").Inc()

	v, err, _ := r.group.Do(k, func() (any, error) {
		// Check again: another caller may have filled it
		if res, ok := r.get(ctx, k); ok {
			return res, nil
		}

		res, err := compute(ctx)
		if err != nil {
			return res, err
		}

		if b, err := json.Marshal(res); err == nil {
			// Write failures only cost a future miss
			_ = r.rdb.Set(ctx, k, b, r.opts.ttlFor(res, ttl)).Err()
		}
		return res, nil
	})
	if err != nil {
		return provider.Result{}, err
	}
	return v.(provider.Result), nil
}

func (r *Redis) get(ctx context.Context, k string) (provider.Result, bool) {
	// redis.Nil and transport errors are both treated as a miss
	b, err := r.rdb.Get(ctx, k).Bytes()
	if err != nil {
		return provider.Result{}, false
	}

	var res provider.Result
	if err := json.Unmarshal(b, &res); err != nil {
		return provider.Result{}, false
	}
	return res, true
}
