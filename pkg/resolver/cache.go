package resolver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/arcade-market/media-api/pkg/cache"
	"github.com/arcade-market/media-api/pkg/logging"
	"github.com/arcade-market/media-api/pkg/metrics"
)

// ResolutionCache stores mode-independent resolution outcomes keyed by (raw locator, token id).
// Failures are stored as well, so a total outage is retried only once the freshness window passes.
type ResolutionCache struct {
	store   cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewResolutionCache wraps a cache backend with a freshness window
func NewResolutionCache(store cache.Cache, ttl time.Duration, m *metrics.Metrics) *ResolutionCache {
	return &ResolutionCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for freshness checks
func (c *ResolutionCache) WithClock(now func() time.Time) *ResolutionCache {
	c.now = now
	return c
}

// Get returns a fresh entry for the key
func (c *ResolutionCache) Get(ctx context.Context, raw, tokenID string) (Result, bool) {
	if c == nil || c.store == nil {
		return Result{}, false
	}

	var entry cache.ResolutionEntry
	if err := c.store.Get(ctx, cacheKey(raw, tokenID), &entry); err != nil {
		if !errors.Is(err, cache.ErrCacheNotFound) && !errors.Is(err, cache.ErrCacheExpired) {
			logging.Logger.Warn("Resolution cache read failed",
				zap.String("locator", raw),
				zap.Error(err))
		}
		c.metrics.CacheLookup("miss")
		return Result{}, false
	}

	if c.now().Sub(entry.CreatedAt) >= c.ttl {
		c.metrics.CacheLookup("stale")
		return Result{}, false
	}

	c.metrics.CacheLookup("hit")
	return Result{
		Status:      Status(entry.Status),
		URL:         entry.URL,
		FallbackURL: entry.FallbackURL,
		Strategy:    Strategy(entry.Strategy),
		FromCache:   true,
	}, true
}

// Put stores an outcome. A later Put for the same key overwrites it.
func (c *ResolutionCache) Put(ctx context.Context, raw, tokenID string, r Result) {
	if c == nil || c.store == nil {
		return
	}

	entry := cache.ResolutionEntry{
		Status:      string(r.Status),
		URL:         r.URL,
		FallbackURL: r.FallbackURL,
		Strategy:    string(r.Strategy),
		CreatedAt:   c.now(),
	}
	if err := c.store.Set(ctx, cacheKey(raw, tokenID), entry, c.ttl); err != nil {
		logging.Logger.Warn("Resolution cache write failed",
			zap.String("locator", raw),
			zap.Error(err))
	}
}

func cacheKey(raw, tokenID string) string {
	return tokenID + ":" + raw
}
