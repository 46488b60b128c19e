package store

import (
	"context"
	"fmt"
	"log"

	"github.com/rzpsarthak13/dynamoplus/internal/codec"
	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/query"
)

// QueryResult is one page of documents.
type QueryResult struct {
	Records []core.Record

	// LastKey is the cursor of the next page. Empty when there are no more documents.
	LastKey string
}

// Query returns the documents matching condition, newest sort value first. Conditions
// other than Any are served by the index whose conditions are exactly the fields the
// condition reads; without one the query is rejected. startFrom is the cursor returned
// by a previous page.
func (s *Store) Query(ctx context.Context, collectionName string, condition core.Condition, limit int, startFrom string) (*QueryResult, error) {
	if condition == nil {
		condition = core.Any{}
	}
	collection, err := s.catalog.GetCollection(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	var index *core.Index
	if _, all := condition.(core.Any); !all {
		index, err = s.FindIndex(ctx, collectionName, condition.Fields())
		if err != nil {
			return nil, err
		}
	}

	descriptor, err := s.compiler.Compile(condition, collection.Name)
	if err != nil {
		return nil, err
	}
	if index != nil && index.OrderingKey != "" {
		descriptor = query.ForOrderedIndex(descriptor)
	}

	limit = s.clampLimit(limit)
	start, err := query.StartKey(ctx, s.driver, collection, index, descriptor, startFrom)
	if err != nil {
		return nil, err
	}

	rows, next, err := s.driver.Scan(ctx, descriptor, limit, start)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan %s: %v", core.ErrStorageFailure, descriptor.Partition, err)
	}

	records := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		record, err := s.materialize(ctx, collection, index, row)
		if err != nil {
			return nil, err
		}
		if record != nil {
			records = append(records, *record)
		}
	}

	result := &QueryResult{Records: records}
	if next != nil && len(records) > 0 {
		result.LastKey = query.CursorFor(records[len(records)-1])
	}
	log.Printf("[QUERY] %s on %s returned %d documents", collection.Name, descriptor.Partition, len(records))
	return result, nil
}

// FindIndex returns the index of a collection whose conditions are exactly fields, in order.
func (s *Store) FindIndex(ctx context.Context, collection string, fields []string) (*core.Index, error) {
	indexes, err := s.catalog.ListIndexes(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes of %s: %w", collection, err)
	}
	for _, index := range indexes {
		if index.Covers(fields) {
			found := index
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: no index on %s covers %v", core.ErrInvalidQuery, collection, fields)
}

// materialize turns a scanned row into a record. Rows of write-optimized indexes only
// carry key fields, so the full record is re-read; a missing record yields nil.
func (s *Store) materialize(ctx context.Context, collection *core.Collection, index *core.Index, row core.Row) (*core.Record, error) {
	if index == nil {
		record, err := codec.DecodeEntity(row)
		if err != nil {
			return nil, err
		}
		return &record, nil
	}

	indexRow, err := codec.DecodeIndexRow(row, *index)
	if err != nil {
		return nil, err
	}
	if !index.ReadOptimized() {
		record, err := s.read(ctx, collection, indexRow.ID)
		if err != nil {
			return nil, err
		}
		if record == nil {
			log.Printf("[QUERY] WARNING: index %s points at missing %s %s", index.Name(), collection.Name, indexRow.ID)
		}
		return record, nil
	}
	return newRecord(collection, indexRow.ID, indexRow.Document), nil
}

func (s *Store) clampLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}
