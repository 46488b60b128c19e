package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/kvstore"
	"github.com/rzpsarthak13/dynamoplus/internal/registry"
)

func catalogs(t *testing.T) map[string]core.Catalog {
	t.Helper()
	return map[string]core.Catalog{
		"table":    NewTableCatalog(kvstore.NewMemoryDriver()),
		"registry": registry.NewCollectionRegistry(),
		"cached":   NewCachedCatalog(NewTableCatalog(kvstore.NewMemoryDriver()), newFakeCache(), time.Minute),
	}
}

func TestCatalog_Contract(t *testing.T) {
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := c.CreateCollection(ctx, core.Collection{
				Name:  "book",
				IDKey: "isbn",
				Attributes: []core.Attribute{
					{Name: "title", Type: core.AttributeString, Constraints: []core.AttributeConstraint{core.ConstraintNotNull}},
				},
			})
			require.NoError(t, err)
			_, err = c.CreateCollection(ctx, core.Collection{Name: "author", IDKey: "id"})
			require.NoError(t, err)

			book, err := c.GetCollection(ctx, "book")
			require.NoError(t, err)
			assert.Equal(t, "isbn", book.IDKey)
			require.Len(t, book.Attributes, 1)
			assert.True(t, book.Attributes[0].NotNull())

			_, err = c.GetCollection(ctx, "missing")
			assert.True(t, errors.Is(err, core.ErrNotFound))

			all, err := c.ListCollections(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)

			idx, isNew, err := c.CreateIndex(ctx, core.Index{Collection: "book", Conditions: []string{"author", "title"}, OrderingKey: "published"})
			require.NoError(t, err)
			assert.True(t, isNew)
			_, _, err = c.CreateIndex(ctx, core.Index{Collection: "author", Conditions: []string{"name"}})
			require.NoError(t, err)

			again, isNew, err := c.CreateIndex(ctx, core.Index{Collection: "book", Conditions: []string{"author", "title"}})
			require.NoError(t, err)
			assert.False(t, isNew)
			assert.Equal(t, idx.ID, again.ID)

			indexes, err := c.ListIndexes(ctx, "book")
			require.NoError(t, err)
			require.Len(t, indexes, 1)
			assert.Equal(t, "book#author#title", indexes[0].Name())
			assert.Equal(t, "published", indexes[0].OrderingKey)

			got, err := c.GetIndex(ctx, idx.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"author", "title"}, got.Conditions)

			and, err := core.NewAnd([]core.Eq{{FieldName: "status", Value: "paid"}}, core.Between{FieldName: "day", From: "2024-01-01", To: "2024-12-31"})
			require.NoError(t, err)
			created, err := c.CreateAggregationConfiguration(ctx, core.AggregationConfiguration{
				Collection:  "book",
				Type:        core.AggregationSum,
				TargetField: "price",
				On:          []core.Trigger{core.TriggerInsert, core.TriggerDelete},
				Matches:     and,
			})
			require.NoError(t, err)
			assert.NotEmpty(t, created.ID)

			configs, err := c.ListAggregationConfigurations(ctx, "book")
			require.NoError(t, err)
			require.Len(t, configs, 1)
			assert.Equal(t, created.Name(), configs[0].Name())
			assert.Equal(t, []core.Trigger{core.TriggerInsert, core.TriggerDelete}, configs[0].On)
			assert.Equal(t, []string{"status", "day"}, configs[0].Matches.Fields())

			// served twice to exercise the cached path
			configs, err = c.ListAggregationConfigurations(ctx, "book")
			require.NoError(t, err)
			require.Len(t, configs, 1)

			require.NoError(t, c.DeleteIndex(ctx, idx.ID))
			indexes, err = c.ListIndexes(ctx, "book")
			require.NoError(t, err)
			assert.Empty(t, indexes)

			require.NoError(t, c.DeleteCollection(ctx, "book"))
			_, err = c.GetCollection(ctx, "book")
			assert.True(t, errors.Is(err, core.ErrNotFound))
			configs, err = c.ListAggregationConfigurations(ctx, "book")
			require.NoError(t, err)
			assert.Empty(t, configs)

			indexes, err = c.ListIndexes(ctx, "author")
			require.NoError(t, err)
			assert.Len(t, indexes, 1)
		})
	}
}

func TestTableCatalog_StoresSystemRowsInTheSingleTable(t *testing.T) {
	ctx := context.Background()
	driver := kvstore.NewMemoryDriver()
	c := NewTableCatalog(driver)

	_, err := c.CreateCollection(ctx, core.Collection{Name: "book", IDKey: "isbn"})
	require.NoError(t, err)
	idx, _, err := c.CreateIndex(ctx, core.Index{Collection: "book", Conditions: []string{"author"}})
	require.NoError(t, err)

	row, err := driver.Get(ctx, "collection#book", "collection")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Regexp(t, `^\d+_[0-9a-f]{32}$`, row.Data)

	indexRow, err := driver.Get(ctx, "index#"+idx.ID, "index#collection.name")
	require.NoError(t, err)
	require.NotNil(t, indexRow)
	assert.Equal(t, "book", indexRow.Data)

	t.Run("recreating a collection keeps its ordering", func(t *testing.T) {
		_, err := c.CreateCollection(ctx, core.Collection{Name: "book", IDKey: "isbn", OrderingKey: "published"})
		require.NoError(t, err)
		again, err := driver.Get(ctx, "collection#book", "collection")
		require.NoError(t, err)
		assert.Equal(t, row.Data, again.Data)
	})

	t.Run("indexes of missing collections are rejected", func(t *testing.T) {
		_, _, err := c.CreateIndex(ctx, core.Index{Collection: "nope", Conditions: []string{"a"}})
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})
}

func TestCatalog_RejectsReservedCollectionNames(t *testing.T) {
	names := []string{core.SystemCollection, core.SystemIndex, core.SystemAggregation, core.SystemAggregationDefinition, "orders#status", ""}
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, collection := range names {
				_, err := c.CreateCollection(ctx, core.Collection{Name: collection, IDKey: "id"})
				assert.True(t, errors.Is(err, core.ErrInvalidRecord), "collection %q", collection)
			}
			_, err := c.CreateCollection(ctx, core.Collection{Name: "orders", IDKey: ""})
			assert.True(t, errors.Is(err, core.ErrInvalidRecord))

			all, err := c.ListCollections(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestCachedCatalog_ReadThroughAndInvalidation(t *testing.T) {
	ctx := context.Background()
	backing := registry.NewCollectionRegistry()
	cache := newFakeCache()
	c := NewCachedCatalog(backing, cache, time.Minute)

	_, err := c.CreateCollection(ctx, core.Collection{Name: "book", IDKey: "isbn"})
	require.NoError(t, err)

	_, err = c.GetCollection(ctx, "book")
	require.NoError(t, err)
	assert.Contains(t, cache.keys(), "dynamoplus:catalog:collection:book")

	// a change behind the cache is not visible until invalidated
	_, err = backing.CreateCollection(ctx, core.Collection{Name: "book", IDKey: "code"})
	require.NoError(t, err)
	got, err := c.GetCollection(ctx, "book")
	require.NoError(t, err)
	assert.Equal(t, "isbn", got.IDKey)

	_, err = c.CreateCollection(ctx, core.Collection{Name: "book", IDKey: "code"})
	require.NoError(t, err)
	assert.NotContains(t, cache.keys(), "dynamoplus:catalog:collection:book")
	got, err = c.GetCollection(ctx, "book")
	require.NoError(t, err)
	assert.Equal(t, "code", got.IDKey)

	indexes, err := c.ListIndexes(ctx, "book")
	require.NoError(t, err)
	assert.Empty(t, indexes)
	_, _, err = c.CreateIndex(ctx, core.Index{Collection: "book", Conditions: []string{"author"}})
	require.NoError(t, err)
	indexes, err = c.ListIndexes(ctx, "book")
	require.NoError(t, err)
	assert.Len(t, indexes, 1)

	t.Run("cache failures fall back to the catalog", func(t *testing.T) {
		cache.fail = true
		defer func() { cache.fail = false }()
		got, err := c.GetCollection(ctx, "book")
		require.NoError(t, err)
		assert.Equal(t, "code", got.IDKey)
	})

	t.Run("undecodable entries are dropped", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "dynamoplus:catalog:indexes:book", []byte("{"), time.Minute))
		indexes, err := c.ListIndexes(ctx, "book")
		require.NoError(t, err)
		assert.Len(t, indexes, 1)
	})
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	fail    bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("connection refused")
	}
	return f.entries[key], nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("connection refused")
	}
	f.entries[key] = value
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.entries, key)
	}
	return nil
}

func (f *fakeCache) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.entries))
	for key := range f.entries {
		keys = append(keys, key)
	}
	return keys
}

var _ Cache = (*kvstore.RedisStore)(nil)
