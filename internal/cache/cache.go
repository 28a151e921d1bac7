// Package cache memoizes provider results keyed by (provider, query).
//
// A hit within the TTL returns the stored result without calling compute.
// Concurrent misses for the same key share one compute. Failed results are
// stored too, under a shorter negative TTL, so a provider that is down is
// not hammered by every run.
package cache

import (
	"context"
	"time"

	"github.com/justestif/artist-pulse/internal/provider"
)

// DefaultNegativeTTL bounds how long a failed provider result is remembered.
const DefaultNegativeTTL = 60 * time.Second

// Key addresses one cached provider call.
type Key struct {
	Provider provider.Name
	Query    provider.Query
}

// String returns the normalized "provider:query" form.
func (k Key) String() string {
	return string(k.Provider) + ":" + k.Query.Normalized()
}

// ComputeFunc produces the value for a missing key. A non-nil error means
// the result must not be stored.
type ComputeFunc func(ctx context.Context) (provider.Result, error)

// Cache is the result cache contract.
type Cache interface {
	GetOrCompute(ctx context.Context, key Key, ttl time.Duration, compute ComputeFunc) (provider.Result, error)
}

// Option configures a cache implementation.
type Option func(*options)

type options struct {
	negativeTTL time.Duration
	prefix      string
}

// WithNegativeTTL sets how long failed results are kept.
func WithNegativeTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.negativeTTL = d
		}
	}
}

// WithPrefix namespaces keys in a shared store.
func WithPrefix(p string) Option {
	return func(o *options) {
		o.prefix = p
	}
}

func buildOptions(opts []Option) options {
	o := options{negativeTTL: DefaultNegativeTTL, prefix: "provider-cache:"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ttlFor picks the positive or negative TTL for res.
func (o options) ttlFor(res provider.Result, ttl time.Duration) time.Duration {
	if !res.OK() && o.negativeTTL < ttl {
		return o.negativeTTL
	}
	return ttl
}
