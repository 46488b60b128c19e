package kvstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/registry"
)

// MemoryDriver is an in-process ordered driver. Rows are kept per projection partition
// so scans only touch the partition they read.
type MemoryDriver struct {
	mu         sync.RWMutex
	rows       map[string]core.Row            // pk\x00sk -> row
	partitions map[string]map[string]struct{} // sk -> set of pk\x00sk
	closed     bool
}

// NewMemoryDriver creates an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		rows:       make(map[string]core.Row),
		partitions: make(map[string]map[string]struct{}),
	}
}

func rowKey(pk, sk string) string {
	return pk + "\x00" + sk
}

// Get retrieves a row by its base table key.
func (m *MemoryDriver) Get(ctx context.Context, pk, sk string) (*core.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("%w: memory driver is closed", core.ErrStorageFailure)
	}

	row, ok := m.rows[rowKey(pk, sk)]
	if !ok {
		return nil, nil
	}
	copied := cloneRow(row)
	return &copied, nil
}

// Put stores a row, replacing any row with the same key.
func (m *MemoryDriver) Put(ctx context.Context, row core.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("%w: memory driver is closed", core.ErrStorageFailure)
	}

	m.putLocked(cloneRow(row))
	return nil
}

func (m *MemoryDriver) putLocked(row core.Row) {
	key := rowKey(row.PK, row.SK)
	m.rows[key] = row
	partition, ok := m.partitions[row.SK]
	if !ok {
		partition = make(map[string]struct{})
		m.partitions[row.SK] = partition
	}
	partition[key] = struct{}{}
}

// Delete removes a row.
func (m *MemoryDriver) Delete(ctx context.Context, pk, sk string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("%w: memory driver is closed", core.ErrStorageFailure)
	}

	key := rowKey(pk, sk)
	delete(m.rows, key)
	if partition, ok := m.partitions[sk]; ok {
		delete(partition, key)
		if len(partition) == 0 {
			delete(m.partitions, sk)
		}
	}
	return nil
}

// Scan reads one projection partition in descending (data, pk) order.
func (m *MemoryDriver) Scan(ctx context.Context, descriptor core.ScanDescriptor, limit int, exclusiveStart *core.Key) ([]core.Row, *core.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, nil, fmt.Errorf("%w: memory driver is closed", core.ErrStorageFailure)
	}

	matched := make([]core.Row, 0)
	for key := range m.partitions[descriptor.Partition] {
		row := m.rows[key]
		if descriptor.Matches(row.Data) {
			matched = append(matched, row)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return rowAfter(matched[i].Data, matched[i].PK, matched[j].Data, matched[j].PK)
	})

	return page(matched, limit, exclusiveStart)
}

// AtomicIncrement adds delta to a numeric document field under the driver lock.
func (m *MemoryDriver) AtomicIncrement(ctx context.Context, key core.Key, field string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, fmt.Errorf("%w: memory driver is closed", core.ErrStorageFailure)
	}

	row, ok := m.rows[rowKey(key.PK, key.SK)]
	if !ok {
		row = core.Row{PK: key.PK, SK: key.SK, Data: key.Data, Document: map[string]interface{}{}}
	}
	if row.Document == nil {
		row.Document = map[string]interface{}{}
	}

	current := 0.0
	if raw, exists := row.Document[field]; exists {
		v, ok := core.ToFloat(raw)
		if !ok {
			return 0, fmt.Errorf("%w: field %s of %s is not numeric", core.ErrStorageFailure, field, key.PK)
		}
		current = v
	}
	next := current + delta
	row.Document[field] = next
	m.putLocked(row)
	return next, nil
}

// Close releases the stored rows.
func (m *MemoryDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.rows = nil
	m.partitions = nil
	return nil
}

// rowAfter reports whether (dataA, pkA) sorts after (dataB, pkB).
func rowAfter(dataA, pkA, dataB, pkB string) bool {
	if dataA != dataB {
		return dataA > dataB
	}
	return pkA > pkB
}

// page cuts a descending, fully matched result down to one page.
func page(rows []core.Row, limit int, exclusiveStart *core.Key) ([]core.Row, *core.Key, error) {
	start := 0
	if exclusiveStart != nil {
		start = len(rows)
		for i, row := range rows {
			if rowAfter(exclusiveStart.Data, exclusiveStart.PK, row.Data, row.PK) {
				start = i
				break
			}
		}
	}
	rows = rows[start:]

	if limit <= 0 || len(rows) <= limit {
		return cloneRows(rows), nil, nil
	}
	rows = rows[:limit]
	last := rows[len(rows)-1].Key()
	return cloneRows(rows), &last, nil
}

func cloneRows(rows []core.Row) []core.Row {
	out := make([]core.Row, len(rows))
	for i, row := range rows {
		out[i] = cloneRow(row)
	}
	return out
}

func cloneRow(row core.Row) core.Row {
	row.Document = cloneDocument(row.Document)
	return row
}

func cloneDocument(doc map[string]interface{}) map[string]interface{} {
	if doc == nil {
		return nil
	}
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneDocument(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// MemoryDriverFactory implements the DriverFactory interface for the in-memory driver.
type MemoryDriverFactory struct{}

// Type returns the type identifier for this factory.
func (f *MemoryDriverFactory) Type() string {
	return "memory"
}

// Validate validates the memory driver configuration.
func (f *MemoryDriverFactory) Validate(config DriverConfig) error {
	if config.Type != "memory" {
		return fmt.Errorf("invalid type for memory factory: %s", config.Type)
	}
	return nil
}

// Create creates a new in-memory driver.
func (f *MemoryDriverFactory) Create(config DriverConfig) (core.StorageDriver, error) {
	return NewMemoryDriver(), nil
}

// MemoryConfigValidator implements the ConfigValidator interface for the in-memory driver.
type MemoryConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *MemoryConfigValidator) Type() string {
	return "memory"
}

// Validate validates the memory driver section of the internal config.
func (v *MemoryConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.Storage.Type != "memory" {
		return fmt.Errorf("invalid type for memory validator: %s", config.Storage.Type)
	}
	return nil
}

func init() {
	RegisterFactory(&MemoryDriverFactory{})
	registry.RegisterValidator(&MemoryConfigValidator{})
}
