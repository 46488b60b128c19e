package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// CollectionMetadata contains a registered collection and its bookkeeping timestamps.
type CollectionMetadata struct {
	Collection core.Collection

	// CreatedAt is the timestamp when the collection was registered.
	CreatedAt time.Time

	// UpdatedAt is the timestamp when the collection metadata was last replaced.
	UpdatedAt time.Time
}

// CollectionRegistry is an in-memory catalog of collections, indexes and aggregation
// configurations. It provides thread-safe registration and lookup.
type CollectionRegistry struct {
	mu           sync.RWMutex
	collections  map[string]*CollectionMetadata
	indexes      map[string]core.Index
	aggregations map[string][]core.AggregationConfiguration
}

// NewCollectionRegistry creates an empty registry.
func NewCollectionRegistry() *CollectionRegistry {
	return &CollectionRegistry{
		collections:  make(map[string]*CollectionMetadata),
		indexes:      make(map[string]core.Index),
		aggregations: make(map[string][]core.AggregationConfiguration),
	}
}

// CreateCollection registers a collection. Registering an existing collection replaces its
// metadata and keeps its creation time.
func (r *CollectionRegistry) CreateCollection(ctx context.Context, collection core.Collection) (*core.Collection, error) {
	if err := core.ValidateCollectionName(collection.Name); err != nil {
		return nil, err
	}
	if collection.IDKey == "" {
		return nil, fmt.Errorf("%w: collection %q requires an id key", core.ErrInvalidRecord, collection.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	metadata := &CollectionMetadata{Collection: collection, CreatedAt: now, UpdatedAt: now}
	if existing, exists := r.collections[collection.Name]; exists {
		metadata.CreatedAt = existing.CreatedAt
	}
	r.collections[collection.Name] = metadata

	created := collection
	return &created, nil
}

// GetCollection retrieves a collection by name.
func (r *CollectionRegistry) GetCollection(ctx context.Context, name string) (*core.Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata, exists := r.collections[name]
	if !exists {
		return nil, fmt.Errorf("%w: collection %q is not registered", core.ErrNotFound, name)
	}
	collection := metadata.Collection
	return &collection, nil
}

// GetMetadata retrieves a copy of the metadata of a collection.
func (r *CollectionRegistry) GetMetadata(name string) (*CollectionMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata, exists := r.collections[name]
	if !exists {
		return nil, fmt.Errorf("%w: collection %q is not registered", core.ErrNotFound, name)
	}
	copied := *metadata
	return &copied, nil
}

// DeleteCollection removes a collection together with its indexes and aggregation configurations.
func (r *CollectionRegistry) DeleteCollection(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[name]; !exists {
		return fmt.Errorf("%w: collection %q is not registered", core.ErrNotFound, name)
	}
	delete(r.collections, name)
	for id, index := range r.indexes {
		if index.Collection == name {
			delete(r.indexes, id)
		}
	}
	delete(r.aggregations, name)
	return nil
}

// ListCollections returns every registered collection ordered by name.
func (r *CollectionRegistry) ListCollections(ctx context.Context) ([]core.Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	collections := make([]core.Collection, 0, len(r.collections))
	for _, metadata := range r.collections {
		collections = append(collections, metadata.Collection)
	}
	sort.Slice(collections, func(i, j int) bool { return collections[i].Name < collections[j].Name })
	return collections, nil
}

// CreateIndex registers an index. An index with the same collection and conditions is
// returned as is.
func (r *CollectionRegistry) CreateIndex(ctx context.Context, index core.Index) (*core.Index, bool, error) {
	if index.Collection == "" {
		return nil, false, fmt.Errorf("index collection cannot be empty")
	}
	if len(index.Conditions) == 0 {
		return nil, false, fmt.Errorf("index on %q requires at least one condition", index.Collection)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[index.Collection]; !exists {
		return nil, false, fmt.Errorf("%w: collection %q is not registered", core.ErrNotFound, index.Collection)
	}
	for _, existing := range r.indexes {
		if existing.Collection == index.Collection && existing.Covers(index.Conditions) {
			found := existing
			return &found, false, nil
		}
	}

	if index.ID == "" {
		index.ID = uuid.NewString()
	}
	if index.Strategy == "" {
		index.Strategy = core.IndexReadOptimized
	}
	r.indexes[index.ID] = index

	created := index
	return &created, true, nil
}

// GetIndex retrieves an index by id.
func (r *CollectionRegistry) GetIndex(ctx context.Context, id string) (*core.Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	index, exists := r.indexes[id]
	if !exists {
		return nil, fmt.Errorf("%w: index %q", core.ErrNotFound, id)
	}
	return &index, nil
}

// DeleteIndex removes an index definition.
func (r *CollectionRegistry) DeleteIndex(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.indexes[id]; !exists {
		return fmt.Errorf("%w: index %q", core.ErrNotFound, id)
	}
	delete(r.indexes, id)
	return nil
}

// ListIndexes returns the indexes of a collection ordered by name.
func (r *CollectionRegistry) ListIndexes(ctx context.Context, collection string) ([]core.Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	indexes := make([]core.Index, 0)
	for _, index := range r.indexes {
		if index.Collection == collection {
			indexes = append(indexes, index)
		}
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i].Name() < indexes[j].Name() })
	return indexes, nil
}

// CreateAggregationConfiguration registers an aggregation configuration.
func (r *CollectionRegistry) CreateAggregationConfiguration(ctx context.Context, config core.AggregationConfiguration) (*core.AggregationConfiguration, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[config.Collection]; !exists {
		return nil, fmt.Errorf("%w: collection %q is not registered", core.ErrNotFound, config.Collection)
	}
	if config.ID == "" {
		config.ID = uuid.NewString()
	}

	configs := r.aggregations[config.Collection]
	for i, existing := range configs {
		if existing.Name() == config.Name() {
			config.ID = existing.ID
			configs[i] = config
			created := config
			return &created, nil
		}
	}
	r.aggregations[config.Collection] = append(configs, config)

	created := config
	return &created, nil
}

// ListAggregationConfigurations returns the aggregation configurations of a collection.
func (r *CollectionRegistry) ListAggregationConfigurations(ctx context.Context, collection string) ([]core.AggregationConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	configs := r.aggregations[collection]
	copied := make([]core.AggregationConfiguration, len(configs))
	copy(copied, configs)
	return copied, nil
}

// Count returns the number of registered collections.
func (r *CollectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collections)
}

var _ core.Catalog = (*CollectionRegistry)(nil)
