package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/louisbranch/paywall/internal/platform/telemetry/metrics"
	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"github.com/louisbranch/paywall/internal/services/membership/storage"
)

const catalogKey = "catalog"

// levelCache reads levels through expiring LRU caches. Individual levels
// and the full catalog are cached separately; writes purge both.
type levelCache struct {
	store   storage.LevelStore
	entries *expirable.LRU[string, domain.Level]
	catalog *expirable.LRU[string, []domain.Level]
	metrics *metrics.Metrics
}

func newLevelCache(store storage.LevelStore, size int, ttl time.Duration, m *metrics.Metrics) *levelCache {
	return &levelCache{
		store:   store,
		entries: expirable.NewLRU[string, domain.Level](size, nil, ttl),
		catalog: expirable.NewLRU[string, []domain.Level](1, nil, ttl),
		metrics: m,
	}
}

func (c *levelCache) get(ctx context.Context, levelID string) (domain.Level, error) {
	if level, ok := c.entries.Get(levelID); ok {
		c.metrics.ObserveLevelCache(true)
		return level, nil
	}
	c.metrics.ObserveLevelCache(false)
	level, err := c.store.GetLevel(ctx, levelID)
	if err != nil {
		return domain.Level{}, err
	}
	c.entries.Add(levelID, level)
	return level, nil
}

func (c *levelCache) list(ctx context.Context) ([]domain.Level, error) {
	if levels, ok := c.catalog.Get(catalogKey); ok {
		c.metrics.ObserveLevelCache(true)
		return append([]domain.Level(nil), levels...), nil
	}
	c.metrics.ObserveLevelCache(false)
	levels, err := c.store.ListLevels(ctx)
	if err != nil {
		return nil, err
	}
	domain.SortLevels(levels)
	c.catalog.Add(catalogKey, levels)
	for _, level := range levels {
		c.entries.Add(level.ID, level)
	}
	return append([]domain.Level(nil), levels...), nil
}

func (c *levelCache) all(ctx context.Context) (domain.Levels, error) {
	levels, err := c.list(ctx)
	if err != nil {
		return nil, err
	}
	return domain.NewLevels(levels), nil
}

func (c *levelCache) purge() {
	c.entries.Purge()
	c.catalog.Purge()
}
