package query

import (
	"context"
	"fmt"

	"github.com/rzpsarthak13/dynamoplus/internal/codec"
	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// CursorFor returns the pagination cursor of a record: its id.
func CursorFor(record core.Record) string {
	return record.ID
}

// StartKey resolves a cursor into the exclusive start key of a scan. It reads the primary
// row of the cursor record once and rebuilds the physical key the record has in the
// descriptor partition. A nil index means the scan runs over the primary rows.
func StartKey(ctx context.Context, driver core.StorageDriver, collection *core.Collection, index *core.Index, descriptor core.ScanDescriptor, cursor string) (*core.Key, error) {
	if cursor == "" {
		return nil, nil
	}

	pk, sk := codec.PrimaryKey(collection.Name, cursor)
	row, err := driver.Get(ctx, pk, sk)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read cursor record %s: %v", core.ErrStorageFailure, cursor, err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: cursor record %s", core.ErrNotFound, cursor)
	}

	if index == nil {
		key := row.Key()
		return &key, nil
	}

	record, err := codec.DecodeEntity(*row)
	if err != nil {
		return nil, err
	}
	indexRow, ok := codec.EncodeIndexRow(*index, collection, record)
	if !ok {
		return nil, fmt.Errorf("%w: cursor record %s is not part of index %s", core.ErrInvalidQuery, cursor, index.Name())
	}
	key := indexRow.Row().Key()
	key.SK = descriptor.Partition
	return &key, nil
}
