package catalog

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/dynamoplus/internal/codec"
	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/indexing"
)

// Names of the system collections kept next to user data in the single table.
const (
	SystemCollection  = core.SystemCollection
	SystemIndex       = core.SystemIndex
	SystemAggregation = core.SystemAggregationDefinition
)

const scanPageSize = 100

var (
	collectionSchema  = core.Collection{Name: SystemCollection, IDKey: "name"}
	indexSchema       = core.Collection{Name: SystemIndex, IDKey: "id"}
	aggregationSchema = core.Collection{Name: SystemAggregation, IDKey: "id"}

	indexByCollection       = core.Index{Collection: SystemIndex, Conditions: []string{"collection.name"}, Strategy: core.IndexReadOptimized}
	aggregationByCollection = core.Index{Collection: SystemAggregation, Conditions: []string{"collection.name"}, Strategy: core.IndexReadOptimized}
)

// TableCatalog stores collection, index and aggregation definitions as system entities in
// the same table as the documents they describe. Definitions of one collection are listed
// through system index rows keyed on the owning collection name.
type TableCatalog struct {
	driver     core.StorageDriver
	maintainer *indexing.Maintainer
}

// NewTableCatalog creates a catalog persisting definitions through driver.
func NewTableCatalog(driver core.StorageDriver) *TableCatalog {
	return &TableCatalog{
		driver:     driver,
		maintainer: indexing.NewMaintainer(driver),
	}
}

// systemOrdering returns a creation-ordered, unique sort value.
func systemOrdering() string {
	id := uuid.New()
	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), hex.EncodeToString(id[:]))
}

func (c *TableCatalog) get(ctx context.Context, collection, id string) (*core.Record, error) {
	pk, sk := codec.PrimaryKey(collection, id)
	row, err := c.driver.Get(ctx, pk, sk)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s %s: %v", core.ErrStorageFailure, collection, id, err)
	}
	if row == nil {
		return nil, nil
	}
	record, err := codec.DecodeEntity(*row)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// save writes a system entity and keeps its system index row in step.
func (c *TableCatalog) save(ctx context.Context, schema *core.Collection, index *core.Index, record core.Record) error {
	old, err := c.get(ctx, record.Collection, record.ID)
	if err != nil {
		return err
	}
	if old != nil && record.Ordering == "" {
		record.Ordering = old.Ordering
	}
	if record.Ordering == "" {
		record.Ordering = systemOrdering()
	}
	if err := c.driver.Put(ctx, codec.EncodeEntity(record)); err != nil {
		return fmt.Errorf("%w: failed to write %s %s: %v", core.ErrStorageFailure, record.Collection, record.ID, err)
	}
	if index == nil {
		return nil
	}
	plan := c.maintainer.Plan(schema, []core.Index{*index}, old, &record)
	return c.maintainer.Apply(ctx, plan)
}

// remove deletes a system entity and its system index row.
func (c *TableCatalog) remove(ctx context.Context, schema *core.Collection, index *core.Index, collection, id string) error {
	old, err := c.get(ctx, collection, id)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("%w: %s %q", core.ErrNotFound, collection, id)
	}
	pk, sk := codec.PrimaryKey(collection, id)
	if err := c.driver.Delete(ctx, pk, sk); err != nil {
		return fmt.Errorf("%w: failed to delete %s %s: %v", core.ErrStorageFailure, collection, id, err)
	}
	if index == nil {
		return nil
	}
	plan := c.maintainer.Plan(schema, []core.Index{*index}, old, nil)
	return c.maintainer.Apply(ctx, plan)
}

// scanAll reads every row of a projection partition.
func (c *TableCatalog) scanAll(ctx context.Context, descriptor core.ScanDescriptor) ([]core.Row, error) {
	var (
		rows  []core.Row
		start *core.Key
	)
	for {
		page, next, err := c.driver.Scan(ctx, descriptor, scanPageSize, start)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan %s: %v", core.ErrStorageFailure, descriptor.Partition, err)
		}
		rows = append(rows, page...)
		if next == nil {
			return rows, nil
		}
		start = next
	}
}

func byCollection(index core.Index, collection string) core.ScanDescriptor {
	return core.ScanDescriptor{
		Partition: index.Name(),
		Op:        core.SortEq,
		Operand:   codec.Escape(collection),
	}
}

// CreateCollection stores collection metadata, replacing an existing definition.
func (c *TableCatalog) CreateCollection(ctx context.Context, collection core.Collection) (*core.Collection, error) {
	if err := core.ValidateCollectionName(collection.Name); err != nil {
		return nil, err
	}
	if collection.IDKey == "" {
		return nil, fmt.Errorf("%w: collection %q requires an id key", core.ErrInvalidRecord, collection.Name)
	}
	doc, err := toDocument(collection)
	if err != nil {
		return nil, err
	}
	record := core.Record{Collection: SystemCollection, ID: collection.Name, Payload: doc}
	if err := c.save(ctx, &collectionSchema, nil, record); err != nil {
		return nil, err
	}
	log.Printf("[CATALOG] Stored collection %s", collection.Name)
	created := collection
	return &created, nil
}

// GetCollection reads collection metadata.
func (c *TableCatalog) GetCollection(ctx context.Context, name string) (*core.Collection, error) {
	record, err := c.get(ctx, SystemCollection, name)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: collection %q", core.ErrNotFound, name)
	}
	var collection core.Collection
	if err := fromDocument(record.Payload, &collection); err != nil {
		return nil, err
	}
	return &collection, nil
}

// ListCollections returns every collection, most recently created first.
func (c *TableCatalog) ListCollections(ctx context.Context) ([]core.Collection, error) {
	rows, err := c.scanAll(ctx, core.ScanDescriptor{Partition: SystemCollection})
	if err != nil {
		return nil, err
	}
	collections := make([]core.Collection, 0, len(rows))
	for _, row := range rows {
		var collection core.Collection
		if err := fromDocument(row.Document, &collection); err != nil {
			return nil, err
		}
		collections = append(collections, collection)
	}
	return collections, nil
}

// DeleteCollection removes a collection together with its index and aggregation definitions.
func (c *TableCatalog) DeleteCollection(ctx context.Context, name string) error {
	indexes, err := c.ListIndexes(ctx, name)
	if err != nil {
		return err
	}
	for _, index := range indexes {
		if err := c.DeleteIndex(ctx, index.ID); err != nil {
			return err
		}
	}
	configs, err := c.ListAggregationConfigurations(ctx, name)
	if err != nil {
		return err
	}
	for _, config := range configs {
		if err := c.remove(ctx, &aggregationSchema, &aggregationByCollection, SystemAggregation, config.ID); err != nil {
			return err
		}
	}
	if err := c.remove(ctx, &collectionSchema, nil, SystemCollection, name); err != nil {
		return err
	}
	log.Printf("[CATALOG] Deleted collection %s with %d indexes and %d aggregations", name, len(indexes), len(configs))
	return nil
}

// CreateIndex stores an index definition. An index over the same conditions is returned as is.
func (c *TableCatalog) CreateIndex(ctx context.Context, index core.Index) (*core.Index, bool, error) {
	if len(index.Conditions) == 0 {
		return nil, false, fmt.Errorf("index on %q requires at least one condition", index.Collection)
	}
	if _, err := c.GetCollection(ctx, index.Collection); err != nil {
		return nil, false, err
	}
	existing, err := c.ListIndexes(ctx, index.Collection)
	if err != nil {
		return nil, false, err
	}
	for _, e := range existing {
		if e.Covers(index.Conditions) {
			found := e
			return &found, false, nil
		}
	}

	if index.ID == "" {
		index.ID = uuid.NewString()
	}
	if index.Strategy == "" {
		index.Strategy = core.IndexReadOptimized
	}
	doc, err := toDocument(newIndexDocument(index))
	if err != nil {
		return nil, false, err
	}
	record := core.Record{Collection: SystemIndex, ID: index.ID, Payload: doc}
	if err := c.save(ctx, &indexSchema, &indexByCollection, record); err != nil {
		return nil, false, err
	}
	log.Printf("[CATALOG] Stored index %s (%s)", index.Name(), index.ID)
	created := index
	return &created, true, nil
}

// GetIndex reads an index definition by id.
func (c *TableCatalog) GetIndex(ctx context.Context, id string) (*core.Index, error) {
	record, err := c.get(ctx, SystemIndex, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: index %q", core.ErrNotFound, id)
	}
	var doc indexDocument
	if err := fromDocument(record.Payload, &doc); err != nil {
		return nil, err
	}
	index := doc.index()
	return &index, nil
}

// DeleteIndex removes an index definition.
func (c *TableCatalog) DeleteIndex(ctx context.Context, id string) error {
	return c.remove(ctx, &indexSchema, &indexByCollection, SystemIndex, id)
}

// ListIndexes returns the index definitions of a collection.
func (c *TableCatalog) ListIndexes(ctx context.Context, collection string) ([]core.Index, error) {
	rows, err := c.scanAll(ctx, byCollection(indexByCollection, collection))
	if err != nil {
		return nil, err
	}
	indexes := make([]core.Index, 0, len(rows))
	for _, row := range rows {
		var doc indexDocument
		if err := fromDocument(row.Document, &doc); err != nil {
			return nil, err
		}
		indexes = append(indexes, doc.index())
	}
	return indexes, nil
}

// CreateAggregationConfiguration stores an aggregation configuration. A configuration with
// the same name replaces the stored one.
func (c *TableCatalog) CreateAggregationConfiguration(ctx context.Context, config core.AggregationConfiguration) (*core.AggregationConfiguration, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if _, err := c.GetCollection(ctx, config.Collection); err != nil {
		return nil, err
	}
	existing, err := c.ListAggregationConfigurations(ctx, config.Collection)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.Name() == config.Name() {
			config.ID = e.ID
		}
	}
	if config.ID == "" {
		config.ID = uuid.NewString()
	}

	doc, err := newAggregationDocument(config)
	if err != nil {
		return nil, err
	}
	payload, err := toDocument(doc)
	if err != nil {
		return nil, err
	}
	record := core.Record{Collection: SystemAggregation, ID: config.ID, Payload: payload}
	if err := c.save(ctx, &aggregationSchema, &aggregationByCollection, record); err != nil {
		return nil, err
	}
	log.Printf("[CATALOG] Stored aggregation configuration %s", config.Name())
	created := config
	return &created, nil
}

// ListAggregationConfigurations returns the aggregation configurations of a collection.
func (c *TableCatalog) ListAggregationConfigurations(ctx context.Context, collection string) ([]core.AggregationConfiguration, error) {
	rows, err := c.scanAll(ctx, byCollection(aggregationByCollection, collection))
	if err != nil {
		return nil, err
	}
	configs := make([]core.AggregationConfiguration, 0, len(rows))
	for _, row := range rows {
		var doc aggregationDocument
		if err := fromDocument(row.Document, &doc); err != nil {
			return nil, err
		}
		config, err := doc.configuration()
		if err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}
	return configs, nil
}

var _ core.Catalog = (*TableCatalog)(nil)
