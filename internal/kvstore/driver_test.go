package kvstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

func newDrivers(t *testing.T) map[string]core.StorageDriver {
	t.Helper()

	bolt, err := NewBoltDriver(filepath.Join(t.TempDir(), "test.db"), false, 0)
	require.NoError(t, err)
	compressed, err := NewBoltDriver(filepath.Join(t.TempDir(), "compressed.db"), true, 0)
	require.NoError(t, err)

	drivers := map[string]core.StorageDriver{
		"memory":          NewMemoryDriver(),
		"bolt":            bolt,
		"bolt compressed": compressed,
	}
	t.Cleanup(func() {
		for _, d := range drivers {
			d.Close()
		}
	})
	return drivers
}

func TestDriverGetPutDelete(t *testing.T) {
	ctx := context.Background()
	for name, driver := range newDrivers(t) {
		t.Run(name, func(t *testing.T) {
			row, err := driver.Get(ctx, "book#1", "book")
			require.NoError(t, err)
			assert.Nil(t, row)

			stored := core.Row{
				PK:   "book#1",
				SK:   "book",
				Data: "1",
				Document: map[string]interface{}{
					"title":  "Animal Farm",
					"year":   float64(1945),
					"author": map[string]interface{}{"name": "Orwell"},
				},
			}
			require.NoError(t, driver.Put(ctx, stored))

			row, err = driver.Get(ctx, "book#1", "book")
			require.NoError(t, err)
			require.NotNil(t, row)
			assert.Equal(t, stored.Key(), row.Key())
			assert.Equal(t, "Animal Farm", row.Document["title"])
			year, ok := core.ToFloat(row.Document["year"])
			require.True(t, ok)
			assert.Equal(t, float64(1945), year)
			assert.Equal(t, "Orwell", row.Document["author"].(map[string]interface{})["name"])

			require.NoError(t, driver.Delete(ctx, "book#1", "book"))
			row, err = driver.Get(ctx, "book#1", "book")
			require.NoError(t, err)
			assert.Nil(t, row)

			require.NoError(t, driver.Delete(ctx, "book#1", "book"))
		})
	}
}

func TestDriverScanOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	for name, driver := range newDrivers(t) {
		t.Run(name, func(t *testing.T) {
			for i, data := range []string{"Huxley#Brave", "Orwell#1984", "Orwell#Animal Farm", "Orwell#Animal Farm"} {
				require.NoError(t, driver.Put(ctx, core.Row{
					PK:   fmt.Sprintf("book#%d", i),
					SK:   "book#author#title",
					Data: data,
				}))
			}
			require.NoError(t, driver.Put(ctx, core.Row{PK: "book#9", SK: "book#author", Data: "Orwell"}))

			tests := []struct {
				name       string
				descriptor core.ScanDescriptor
				expected   []string
			}{
				{
					name:       "whole partition descending",
					descriptor: core.ScanDescriptor{Partition: "book#author#title"},
					expected:   []string{"book#3", "book#2", "book#1", "book#0"},
				},
				{
					name:       "begins with",
					descriptor: core.ScanDescriptor{Partition: "book#author#title", Op: core.SortBeginsWith, Operand: "Orwell#Animal"},
					expected:   []string{"book#3", "book#2"},
				},
				{
					name:       "equality",
					descriptor: core.ScanDescriptor{Partition: "book#author#title", Op: core.SortEq, Operand: "Orwell#1984"},
					expected:   []string{"book#1"},
				},
				{
					name:       "less than",
					descriptor: core.ScanDescriptor{Partition: "book#author#title", Op: core.SortLt, Operand: "Orwell"},
					expected:   []string{"book#0"},
				},
				{
					name:       "between",
					descriptor: core.ScanDescriptor{Partition: "book#author#title", Op: core.SortBetween, Operand: "Orwell#1984", OperandTo: "Orwell#Z"},
					expected:   []string{"book#3", "book#2", "book#1"},
				},
				{
					name:       "empty partition",
					descriptor: core.ScanDescriptor{Partition: "author"},
					expected:   []string{},
				},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					rows, next, err := driver.Scan(ctx, tt.descriptor, 0, nil)
					require.NoError(t, err)
					assert.Nil(t, next)
					assert.Equal(t, tt.expected, pks(rows))
				})
			}
		})
	}
}

func TestDriverScanPagination(t *testing.T) {
	ctx := context.Background()
	for name, driver := range newDrivers(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				require.NoError(t, driver.Put(ctx, core.Row{
					PK:   fmt.Sprintf("order#%d", i),
					SK:   "order",
					Data: fmt.Sprintf("%d", i),
				}))
			}

			descriptor := core.ScanDescriptor{Partition: "order"}
			var seen []string
			var start *core.Key
			pages := 0
			for {
				rows, next, err := driver.Scan(ctx, descriptor, 2, start)
				require.NoError(t, err)
				seen = append(seen, pks(rows)...)
				pages++
				if next == nil {
					break
				}
				start = next
			}

			assert.Equal(t, 3, pages)
			assert.Equal(t, []string{"order#4", "order#3", "order#2", "order#1", "order#0"}, seen)
		})
	}
}

func TestDriverPutMovesProjectionEntry(t *testing.T) {
	ctx := context.Background()
	for name, driver := range newDrivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, driver.Put(ctx, core.Row{PK: "book#1", SK: "book#author", Data: "Orwell"}))
			require.NoError(t, driver.Put(ctx, core.Row{PK: "book#1", SK: "book#author", Data: "Huxley"}))

			rows, _, err := driver.Scan(ctx, core.ScanDescriptor{Partition: "book#author", Op: core.SortEq, Operand: "Orwell"}, 0, nil)
			require.NoError(t, err)
			assert.Empty(t, rows)

			rows, _, err = driver.Scan(ctx, core.ScanDescriptor{Partition: "book#author"}, 0, nil)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "Huxley", rows[0].Data)
		})
	}
}

func TestDriverAtomicIncrement(t *testing.T) {
	ctx := context.Background()
	key := core.Key{PK: "aggregation#count_orders_count", SK: "aggregation", Data: "count_orders_count"}

	for name, driver := range newDrivers(t) {
		t.Run(name, func(t *testing.T) {
			value, err := driver.AtomicIncrement(ctx, key, "value", 1)
			require.NoError(t, err)
			assert.Equal(t, float64(1), value)

			value, err = driver.AtomicIncrement(ctx, key, "value", 2.5)
			require.NoError(t, err)
			assert.Equal(t, 3.5, value)

			value, err = driver.AtomicIncrement(ctx, key, "value", -1)
			require.NoError(t, err)
			assert.Equal(t, 2.5, value)

			row, err := driver.Get(ctx, key.PK, key.SK)
			require.NoError(t, err)
			require.NotNil(t, row)
			stored, ok := core.ToFloat(row.Document["value"])
			require.True(t, ok)
			assert.Equal(t, 2.5, stored)
		})
	}
}

func TestMemoryDriverIsolatesDocuments(t *testing.T) {
	ctx := context.Background()
	driver := NewMemoryDriver()

	doc := map[string]interface{}{"nested": map[string]interface{}{"a": 1}}
	require.NoError(t, driver.Put(ctx, core.Row{PK: "x#1", SK: "x", Data: "1", Document: doc}))
	doc["nested"].(map[string]interface{})["a"] = 2

	row, err := driver.Get(ctx, "x#1", "x")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Document["nested"].(map[string]interface{})["a"])
}

func TestClosedDriverFails(t *testing.T) {
	ctx := context.Background()
	for name, driver := range newDrivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, driver.Close())
			require.NoError(t, driver.Close())

			_, err := driver.Get(ctx, "a", "b")
			assert.ErrorIs(t, err, core.ErrStorageFailure)
		})
	}
}

func TestCreateUsesRegisteredFactory(t *testing.T) {
	driver, err := Create(DriverConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryDriver{}, driver)

	limited, err := Create(DriverConfig{Type: "memory", RateLimit: 1000})
	require.NoError(t, err)
	assert.IsType(t, &RateLimitedDriver{}, limited)

	_, err = Create(DriverConfig{Type: "cassandra"})
	assert.Error(t, err)

	_, err = Create(DriverConfig{Type: "bolt"})
	assert.Error(t, err)

	assert.True(t, IsTypeRegistered("dynamodb"))
	assert.ElementsMatch(t, []string{"dynamodb", "bolt", "memory"}, GetRegisteredTypes())
}

func pks(rows []core.Row) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.PK)
	}
	return out
}
