package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const configCacheKeyPrefix = "go-roundup::config_document::v1"

// NopConfigCache reads through to the loader on every call.
type NopConfigCache struct{}

func (NopConfigCache) GetOrLoad(
	ctx context.Context,
	_ string,
	load func(context.Context) (ConfigDocument, error),
) (ConfigDocument, error) {
	if load == nil {
		return ConfigDocument{}, fmt.Errorf("core: config loader is required")
	}
	return load(ctx)
}

func (NopConfigCache) Invalidate(context.Context, string) error { return nil }

// RepositoryConfigCache keeps the last loaded document in a go-repository-cache
// service. Entries are only replaced by Invalidate or by TTL expiry.
type RepositoryConfigCache struct {
	cache repositorycache.CacheService
}

func NewRepositoryConfigCache(ttl time.Duration) (*RepositoryConfigCache, error) {
	config := repositorycache.DefaultConfig()
	if ttl > 0 {
		config.TTL = ttl
	}
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		return nil, fmt.Errorf("core: build config cache: %w", err)
	}
	return NewRepositoryConfigCacheWithService(service)
}

func NewRepositoryConfigCacheWithService(service repositorycache.CacheService) (*RepositoryConfigCache, error) {
	if service == nil {
		return nil, fmt.Errorf("core: config cache service is required")
	}
	return &RepositoryConfigCache{cache: service}, nil
}

// ConfigCacheKey returns go-roundup::config_document::v1::<document_id>.
func ConfigCacheKey(documentID string) string {
	return configCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(documentID))
}

func (c *RepositoryConfigCache) GetOrLoad(
	ctx context.Context,
	key string,
	load func(context.Context) (ConfigDocument, error),
) (ConfigDocument, error) {
	if c == nil || c.cache == nil {
		return ConfigDocument{}, fmt.Errorf("core: config cache is not configured")
	}
	if load == nil {
		return ConfigDocument{}, fmt.Errorf("core: config loader is required")
	}
	doc, err := repositorycache.GetOrFetch(ctx, c.cache, ConfigCacheKey(key), func(ctx context.Context) (ConfigDocument, error) {
		loaded, loadErr := load(ctx)
		if loadErr != nil {
			return ConfigDocument{}, loadErr
		}
		return loaded.Clone(), nil
	})
	if err != nil {
		return ConfigDocument{}, err
	}
	return doc.Clone(), nil
}

func (c *RepositoryConfigCache) Invalidate(ctx context.Context, key string) error {
	if c == nil || c.cache == nil {
		return fmt.Errorf("core: config cache is not configured")
	}
	return c.cache.Delete(ctx, ConfigCacheKey(key))
}

var (
	_ ConfigCache = NopConfigCache{}
	_ ConfigCache = (*RepositoryConfigCache)(nil)
)
