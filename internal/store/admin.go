package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/rzpsarthak13/dynamoplus/internal/aggregation"
	"github.com/rzpsarthak13/dynamoplus/internal/codec"
	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

const rebuildPageSize = 100

// CreateCollection stores collection metadata.
func (s *Store) CreateCollection(ctx context.Context, collection core.Collection) (*core.Collection, error) {
	if err := core.ValidateCollectionName(collection.Name); err != nil {
		return nil, err
	}
	if collection.IDKey == "" {
		return nil, fmt.Errorf("%w: collection %q requires an id key", ErrInvalidRecord, collection.Name)
	}
	return s.catalog.CreateCollection(ctx, collection)
}

// GetCollection returns collection metadata.
func (s *Store) GetCollection(ctx context.Context, name string) (*core.Collection, error) {
	return s.catalog.GetCollection(ctx, name)
}

// ListCollections returns every collection.
func (s *Store) ListCollections(ctx context.Context) ([]core.Collection, error) {
	return s.catalog.ListCollections(ctx)
}

// DeleteCollection removes a collection, its index rows and its definitions.
// Documents and aggregation rows are left in place.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	collection, err := s.catalog.GetCollection(ctx, name)
	if err != nil {
		return err
	}
	indexes, err := s.catalog.ListIndexes(ctx, name)
	if err != nil {
		return err
	}
	if err := s.catalog.DeleteCollection(ctx, name); err != nil {
		return err
	}
	for _, index := range indexes {
		if err := s.lifecycle.ExecuteDropHooks(ctx, collection, index); err != nil {
			return fmt.Errorf("failed to drop index %s: %w", index.Name(), err)
		}
	}
	return nil
}

// CreateIndex defines an index. A new index is backfilled from the existing documents;
// an index over the same conditions is returned unchanged.
func (s *Store) CreateIndex(ctx context.Context, index core.Index) (*core.Index, error) {
	collection, err := s.catalog.GetCollection(ctx, index.Collection)
	if err != nil {
		return nil, err
	}
	if len(index.Conditions) == 0 {
		return nil, fmt.Errorf("%w: an index requires at least one condition", core.ErrInvalidQuery)
	}
	switch index.Strategy {
	case "", core.IndexReadOptimized, core.IndexWriteOptimized:
	default:
		return nil, fmt.Errorf("%w: unknown index strategy %q", core.ErrInvalidQuery, index.Strategy)
	}

	created, isNew, err := s.catalog.CreateIndex(ctx, index)
	if err != nil {
		return nil, err
	}
	if isNew {
		if err := s.lifecycle.ExecuteCreateHooks(ctx, collection, *created); err != nil {
			return created, fmt.Errorf("failed to build index %s: %w", created.Name(), err)
		}
	}
	return created, nil
}

// GetIndex returns an index definition.
func (s *Store) GetIndex(ctx context.Context, id string) (*core.Index, error) {
	return s.catalog.GetIndex(ctx, id)
}

// ListIndexes returns the index definitions of a collection.
func (s *Store) ListIndexes(ctx context.Context, collection string) ([]core.Index, error) {
	if _, err := s.catalog.GetCollection(ctx, collection); err != nil {
		return nil, err
	}
	return s.catalog.ListIndexes(ctx, collection)
}

// DeleteIndex removes an index definition and its rows.
func (s *Store) DeleteIndex(ctx context.Context, id string) error {
	index, err := s.catalog.GetIndex(ctx, id)
	if err != nil {
		return err
	}
	collection, err := s.catalog.GetCollection(ctx, index.Collection)
	if err != nil {
		return err
	}
	if err := s.catalog.DeleteIndex(ctx, id); err != nil {
		return err
	}
	return s.lifecycle.ExecuteDropHooks(ctx, collection, *index)
}

// RebuildIndex rewrites the rows of an index from the primary rows of its collection.
func (s *Store) RebuildIndex(ctx context.Context, id string) (int, error) {
	index, err := s.catalog.GetIndex(ctx, id)
	if err != nil {
		return 0, err
	}
	collection, err := s.catalog.GetCollection(ctx, index.Collection)
	if err != nil {
		return 0, err
	}
	if err := s.dropIndexRows(ctx, collection, *index); err != nil {
		return 0, err
	}
	return s.writeIndexRows(ctx, collection, *index)
}

func (s *Store) backfillIndex(ctx context.Context, collection *core.Collection, index core.Index) error {
	_, err := s.writeIndexRows(ctx, collection, index)
	return err
}

func (s *Store) writeIndexRows(ctx context.Context, collection *core.Collection, index core.Index) (int, error) {
	written := 0
	err := s.scanAll(ctx, core.ScanDescriptor{Partition: collection.Name}, func(row core.Row) error {
		record, err := codec.DecodeEntity(row)
		if err != nil {
			return err
		}
		indexRow, ok := codec.EncodeIndexRow(index, collection, record)
		if !ok {
			return nil
		}
		if err := s.driver.Put(ctx, indexRow.Row()); err != nil {
			return fmt.Errorf("%w: failed to write index row %s: %v", core.ErrStorageFailure, index.Name(), err)
		}
		written++
		return nil
	})
	if err != nil {
		return written, err
	}
	log.Printf("[INDEXING] Built %d rows of %s", written, index.Name())
	return written, nil
}

func (s *Store) dropIndexRows(ctx context.Context, collection *core.Collection, index core.Index) error {
	var keys []core.Key
	err := s.scanAll(ctx, core.ScanDescriptor{Partition: index.Name()}, func(row core.Row) error {
		keys = append(keys, row.Key())
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.driver.Delete(ctx, key.PK, key.SK); err != nil {
			return fmt.Errorf("%w: failed to delete index row %s: %v", core.ErrStorageFailure, index.Name(), err)
		}
	}
	log.Printf("[INDEXING] Dropped %d rows of %s", len(keys), index.Name())
	return nil
}

func (s *Store) scanAll(ctx context.Context, descriptor core.ScanDescriptor, fn func(core.Row) error) error {
	var start *core.Key
	for {
		rows, next, err := s.driver.Scan(ctx, descriptor, rebuildPageSize, start)
		if err != nil {
			return fmt.Errorf("%w: failed to scan %s: %v", core.ErrStorageFailure, descriptor.Partition, err)
		}
		for _, row := range rows {
			if err := fn(row); err != nil {
				return err
			}
		}
		if next == nil {
			return nil
		}
		start = next
	}
}

// CreateAggregationConfiguration defines an aggregation. It starts from the next write;
// existing documents are not counted.
func (s *Store) CreateAggregationConfiguration(ctx context.Context, config core.AggregationConfiguration) (*core.AggregationConfiguration, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return s.catalog.CreateAggregationConfiguration(ctx, config)
}

// ListAggregationConfigurations returns the aggregation configurations of a collection.
func (s *Store) ListAggregationConfigurations(ctx context.Context, collection string) ([]core.AggregationConfiguration, error) {
	return s.catalog.ListAggregationConfigurations(ctx, collection)
}

// GetAggregation reads a materialized aggregation row by name, e.g. count_orders_count.
func (s *Store) GetAggregation(ctx context.Context, name string) (*core.Aggregation, error) {
	return s.aggregations.Read(ctx, name)
}

// ListAggregations reads every materialized row of the configurations of a collection.
// Rows not written yet are omitted.
func (s *Store) ListAggregations(ctx context.Context, collection string) ([]core.Aggregation, error) {
	configs, err := s.catalog.ListAggregationConfigurations(ctx, collection)
	if err != nil {
		return nil, err
	}
	var out []core.Aggregation
	for _, config := range configs {
		for _, name := range aggregation.RowNames(config) {
			agg, err := s.aggregations.Read(ctx, name)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, *agg)
		}
	}
	return out, nil
}
