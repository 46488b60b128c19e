package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// Cache is the byte store behind CachedCatalog. kvstore.RedisStore implements it.
type Cache interface {
	// Get returns nil and no error when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const cachePrefix = "dynamoplus:catalog:"

func collectionCacheKey(name string) string   { return cachePrefix + "collection:" + name }
func indexesCacheKey(name string) string      { return cachePrefix + "indexes:" + name }
func aggregationsCacheKey(name string) string { return cachePrefix + "aggregations:" + name }

// CachedCatalog is a read-through cache in front of another catalog. Reads on the write
// path (collection, indexes, aggregation configurations) are served from the cache; every
// mutation invalidates the entries of the affected collection. Cache failures fall back
// to the underlying catalog.
type CachedCatalog struct {
	core.Catalog
	cache Cache
	ttl   time.Duration
}

// NewCachedCatalog wraps catalog with cache. Entries expire after ttl.
func NewCachedCatalog(catalog core.Catalog, cache Cache, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{Catalog: catalog, cache: cache, ttl: ttl}
}

func (c *CachedCatalog) load(ctx context.Context, key string, v interface{}) bool {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Printf("[CATALOG] WARNING: cache read failed for %s: %v", key, err)
		return false
	}
	if data == nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("[CATALOG] WARNING: dropping undecodable cache entry %s: %v", key, err)
		c.invalidate(ctx, key)
		return false
	}
	return true
}

func (c *CachedCatalog) store(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[CATALOG] WARNING: failed to encode cache entry %s: %v", key, err)
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		log.Printf("[CATALOG] WARNING: cache write failed for %s: %v", key, err)
	}
}

func (c *CachedCatalog) invalidate(ctx context.Context, keys ...string) {
	if err := c.cache.Delete(ctx, keys...); err != nil {
		log.Printf("[CATALOG] WARNING: cache invalidation failed for %v: %v", keys, err)
	}
}

func (c *CachedCatalog) invalidateCollection(ctx context.Context, name string) {
	c.invalidate(ctx, collectionCacheKey(name), indexesCacheKey(name), aggregationsCacheKey(name))
}

// GetCollection returns the cached collection or reads it through.
func (c *CachedCatalog) GetCollection(ctx context.Context, name string) (*core.Collection, error) {
	var cached core.Collection
	if c.load(ctx, collectionCacheKey(name), &cached) {
		return &cached, nil
	}
	collection, err := c.Catalog.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	c.store(ctx, collectionCacheKey(name), collection)
	return collection, nil
}

// ListIndexes returns the cached indexes of a collection or reads them through.
func (c *CachedCatalog) ListIndexes(ctx context.Context, collection string) ([]core.Index, error) {
	var cached []core.Index
	if c.load(ctx, indexesCacheKey(collection), &cached) {
		return cached, nil
	}
	indexes, err := c.Catalog.ListIndexes(ctx, collection)
	if err != nil {
		return nil, err
	}
	c.store(ctx, indexesCacheKey(collection), indexes)
	return indexes, nil
}

// ListAggregationConfigurations returns the cached configurations or reads them through.
func (c *CachedCatalog) ListAggregationConfigurations(ctx context.Context, collection string) ([]core.AggregationConfiguration, error) {
	var docs []aggregationDocument
	if c.load(ctx, aggregationsCacheKey(collection), &docs) {
		configs, err := configurations(docs)
		if err == nil {
			return configs, nil
		}
		c.invalidate(ctx, aggregationsCacheKey(collection))
	}

	configs, err := c.Catalog.ListAggregationConfigurations(ctx, collection)
	if err != nil {
		return nil, err
	}
	docs = make([]aggregationDocument, 0, len(configs))
	for _, config := range configs {
		doc, err := newAggregationDocument(config)
		if err != nil {
			return configs, nil
		}
		docs = append(docs, doc)
	}
	c.store(ctx, aggregationsCacheKey(collection), docs)
	return configs, nil
}

func configurations(docs []aggregationDocument) ([]core.AggregationConfiguration, error) {
	configs := make([]core.AggregationConfiguration, 0, len(docs))
	for _, doc := range docs {
		config, err := doc.configuration()
		if err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}
	return configs, nil
}

// CreateCollection writes through and invalidates the collection entries.
func (c *CachedCatalog) CreateCollection(ctx context.Context, collection core.Collection) (*core.Collection, error) {
	created, err := c.Catalog.CreateCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	c.invalidateCollection(ctx, collection.Name)
	return created, nil
}

// DeleteCollection deletes through and invalidates the collection entries.
func (c *CachedCatalog) DeleteCollection(ctx context.Context, name string) error {
	if err := c.Catalog.DeleteCollection(ctx, name); err != nil {
		return err
	}
	c.invalidateCollection(ctx, name)
	return nil
}

// CreateIndex writes through and invalidates the cached index list.
func (c *CachedCatalog) CreateIndex(ctx context.Context, index core.Index) (*core.Index, bool, error) {
	created, isNew, err := c.Catalog.CreateIndex(ctx, index)
	if err != nil {
		return nil, false, err
	}
	if isNew {
		c.invalidate(ctx, indexesCacheKey(index.Collection))
	}
	return created, isNew, nil
}

// DeleteIndex deletes through and invalidates the cached index list of its collection.
func (c *CachedCatalog) DeleteIndex(ctx context.Context, id string) error {
	index, err := c.Catalog.GetIndex(ctx, id)
	if err != nil {
		return err
	}
	if err := c.Catalog.DeleteIndex(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, indexesCacheKey(index.Collection))
	return nil
}

// CreateAggregationConfiguration writes through and invalidates the cached configurations.
func (c *CachedCatalog) CreateAggregationConfiguration(ctx context.Context, config core.AggregationConfiguration) (*core.AggregationConfiguration, error) {
	created, err := c.Catalog.CreateAggregationConfiguration(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to store aggregation configuration: %w", err)
	}
	c.invalidate(ctx, aggregationsCacheKey(config.Collection))
	return created, nil
}

var _ core.Catalog = (*CachedCatalog)(nil)
