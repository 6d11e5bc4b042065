package validation

import (
	"context"
	"strings"
	"time"

	"github.com/geocoder89/clubevents/internal/cache"
)

type SportCatalog interface {
	Exists(ctx context.Context, sportID string) (bool, error)
}

// StaticCatalog is a fixed set of sport ids, typically loaded from config.
type StaticCatalog struct {
	ids map[string]struct{}
}

func NewStaticCatalog(ids ...string) *StaticCatalog {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			m[id] = struct{}{}
		}
	}
	return &StaticCatalog{ids: m}
}

func (c *StaticCatalog) Exists(_ context.Context, sportID string) (bool, error) {
	_, ok := c.ids[sportID]
	return ok, nil
}

// CachedCatalog memoizes lookups against a slower catalog (e.g. the sports table).
type CachedCatalog struct {
	inner SportCatalog
	cache *cache.Cache[bool]
}

func NewCachedCatalog(inner SportCatalog, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{inner: inner, cache: cache.New[bool](ttl)}
}

func (c *CachedCatalog) Exists(ctx context.Context, sportID string) (bool, error) {
	key := "sport:" + sportID
	if exists, ok := c.cache.Get(key); ok {
		return exists, nil
	}

	exists, err := c.inner.Exists(ctx, sportID)
	if err != nil {
		return false, err
	}
	c.cache.Set(key, exists)
	return exists, nil
}
