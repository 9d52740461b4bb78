package metricsource

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sells-group/covenant-monitor/internal/model"
)

// Cached memoizes per-metric values from another Source for a TTL. Only
// values that were found are cached, so a missing metric is asked for again
// on the next fetch.
type Cached struct {
	inner Source
	cache *gocache.Cache
}

// NewCached wraps inner with a TTL cache. A ttl <= 0 returns inner unchanged.
func NewCached(inner Source, ttl time.Duration) Source {
	if ttl <= 0 {
		return inner
	}
	return &Cached{inner: inner, cache: gocache.New(ttl, 2*ttl)}
}

// FetchMetrics implements Source.
func (c *Cached) FetchMetrics(ctx context.Context, names []string) (map[string]float64, error) {
	out := make(map[string]float64, len(names))
	var misses []string
	for _, n := range dedupe(names) {
		if v, ok := c.cache.Get(n); ok {
			out[n] = v.(float64)
			continue
		}
		misses = append(misses, n)
	}
	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := c.inner.FetchMetrics(ctx, misses)
	if err != nil {
		return nil, err
	}
	for n, v := range fetched {
		c.cache.Set(n, v, gocache.DefaultExpiration)
		out[n] = v
	}
	return out, nil
}

// FetchHistory passes through to the wrapped source when it supports history.
func (c *Cached) FetchHistory(ctx context.Context, names []string, since time.Time) (map[string][]model.MetricPoint, error) {
	hs, ok := c.inner.(HistorySource)
	if !ok {
		return nil, ErrNoHistory
	}
	return hs.FetchHistory(ctx, names, since)
}

// Flush drops every cached value.
func (c *Cached) Flush() {
	c.cache.Flush()
}
