package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/dynamoplus/internal/codec"
	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/kvstore"
)

func TestStartKey(t *testing.T) {
	ctx := context.Background()
	driver := kvstore.NewMemoryDriver()
	collection := &core.Collection{Name: "book", IDKey: "id"}
	record := core.Record{
		Collection: "book",
		ID:         "1",
		Ordering:   "100",
		Payload:    map[string]interface{}{"id": "1", "author": "Orwell", "year": float64(1945)},
	}
	require.NoError(t, driver.Put(ctx, codec.EncodeEntity(record)))

	t.Run("empty cursor", func(t *testing.T) {
		key, err := StartKey(ctx, driver, collection, nil, core.ScanDescriptor{Partition: "book"}, "")
		require.NoError(t, err)
		assert.Nil(t, key)
	})

	t.Run("primary rows", func(t *testing.T) {
		key, err := StartKey(ctx, driver, collection, nil, core.ScanDescriptor{Partition: "book"}, CursorFor(record))
		require.NoError(t, err)
		assert.Equal(t, &core.Key{PK: "book#1", SK: "book", Data: "100"}, key)
	})

	t.Run("index partition", func(t *testing.T) {
		index := &core.Index{Collection: "book", Conditions: []string{"author", "year"}}
		key, err := StartKey(ctx, driver, collection, index, core.ScanDescriptor{Partition: "book#author__year"}, "1")
		require.NoError(t, err)
		assert.Equal(t, &core.Key{PK: "book#1", SK: "book#author__year", Data: "Orwell#1945"}, key)
	})

	t.Run("unknown cursor", func(t *testing.T) {
		_, err := StartKey(ctx, driver, collection, nil, core.ScanDescriptor{Partition: "book"}, "404")
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})

	t.Run("record outside the index", func(t *testing.T) {
		index := &core.Index{Collection: "book", Conditions: []string{"isbn"}}
		_, err := StartKey(ctx, driver, collection, index, core.ScanDescriptor{Partition: "book#isbn"}, "1")
		assert.True(t, errors.Is(err, core.ErrInvalidQuery))
	})
}
