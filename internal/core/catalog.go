package core

import (
	"context"
)

// CollectionCatalog resolves collection metadata by name.
type CollectionCatalog interface {
	// GetCollection returns the metadata of a collection.
	// Returns an error wrapping ErrNotFound if the collection does not exist.
	GetCollection(ctx context.Context, name string) (*Collection, error)
}

// IndexCatalog lists the secondary indexes of a collection.
type IndexCatalog interface {
	ListIndexes(ctx context.Context, collection string) ([]Index, error)
}

// AggregationCatalog lists the aggregation configurations of a collection.
type AggregationCatalog interface {
	ListAggregationConfigurations(ctx context.Context, collection string) ([]AggregationConfiguration, error)
}

// Catalog is the administrative surface over collections, indexes and aggregations.
type Catalog interface {
	CollectionCatalog
	IndexCatalog
	AggregationCatalog

	// CreateCollection stores collection metadata. Creating an existing collection replaces it.
	CreateCollection(ctx context.Context, collection Collection) (*Collection, error)

	// DeleteCollection removes a collection together with its indexes and aggregation configurations.
	DeleteCollection(ctx context.Context, name string) error

	// ListCollections returns every collection.
	ListCollections(ctx context.Context) ([]Collection, error)

	// CreateIndex stores an index definition. When an index with the same collection and
	// conditions exists, that index is returned and created is false.
	CreateIndex(ctx context.Context, index Index) (created *Index, isNew bool, err error)

	// GetIndex returns an index by id.
	GetIndex(ctx context.Context, id string) (*Index, error)

	// DeleteIndex removes an index definition.
	DeleteIndex(ctx context.Context, id string) error

	// CreateAggregationConfiguration stores an aggregation configuration.
	CreateAggregationConfiguration(ctx context.Context, config AggregationConfiguration) (*AggregationConfiguration, error)
}

// SchemaValidator is the yes/no gate applied to a payload before it is written.
type SchemaValidator interface {
	Validate(collection *Collection, payload map[string]interface{}) error
}
