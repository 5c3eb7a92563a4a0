package fetcher

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedFetcher decorates a ValueFetcher with a short TTL cache so a batch
// tick evaluating many rules on the same symbol fetches it once. Fetch
// failures are not cached; the next rule retries the provider.
type CachedFetcher struct {
	inner ValueFetcher
	cache *gocache.Cache
}

// NewCachedFetcher wraps inner with the given TTL.
func NewCachedFetcher(inner ValueFetcher, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Fetch implements ValueFetcher.
func (c *CachedFetcher) Fetch(ctx context.Context, ruleType, subject string) (float64, error) {
	key := fmt.Sprintf("%s|%s", ruleType, subject)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(float64), nil
	}
	value, err := c.inner.Fetch(ctx, ruleType, subject)
	if err != nil {
		return 0, err
	}
	c.cache.SetDefault(key, value)
	return value, nil
}
