package kvstore

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/registry"
)

var (
	rowsBucket       = []byte("rows")
	projectionBucket = []byte("projection")
)

const keySeparator = 0x00

// BoltDriver stores the single table in a bbolt file. The rows bucket holds the base
// table keyed by pk and sk; the projection bucket keys sk, data and pk for ordered scans.
type BoltDriver struct {
	db       *bbolt.DB
	compress bool
	closed   bool
}

// boltRow is the msgpack envelope of a stored row.
type boltRow struct {
	PK   string `msgpack:"pk"`
	SK   string `msgpack:"sk"`
	Data string `msgpack:"data"`

	// Document is the msgpack-encoded document, lz4 block-compressed when Size > 0.
	Document []byte `msgpack:"doc"`
	Size     int    `msgpack:"size,omitempty"`
}

// NewBoltDriver opens (or creates) the bbolt file at path.
func NewBoltDriver(path string, compress bool, timeout time.Duration) (*BoltDriver, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt file %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(rowsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(projectionBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	log.Printf("[BOLT] Opened %s (compression: %v)", path, compress)
	return &BoltDriver{db: db, compress: compress}, nil
}

func boltRowKey(pk, sk string) []byte {
	key := make([]byte, 0, len(pk)+len(sk)+1)
	key = append(key, pk...)
	key = append(key, keySeparator)
	return append(key, sk...)
}

func boltProjectionKey(sk, data, pk string) []byte {
	key := make([]byte, 0, len(sk)+len(data)+len(pk)+2)
	key = append(key, sk...)
	key = append(key, keySeparator)
	key = append(key, data...)
	key = append(key, keySeparator)
	return append(key, pk...)
}

func (b *BoltDriver) encode(row core.Row) ([]byte, error) {
	doc, err := msgpack.Marshal(row.Document)
	if err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	stored := boltRow{PK: row.PK, SK: row.SK, Data: row.Data, Document: doc}
	if b.compress && len(doc) > 0 {
		compressed := make([]byte, lz4.CompressBlockBound(len(doc)))
		n, err := lz4.CompressBlock(doc, compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to compress document: %w", err)
		}
		// n == 0 means the document is incompressible; keep it raw.
		if n > 0 && n < len(doc) {
			stored.Document = compressed[:n]
			stored.Size = len(doc)
		}
	}
	return msgpack.Marshal(&stored)
}

func decodeBoltRow(data []byte) (core.Row, error) {
	var stored boltRow
	if err := msgpack.Unmarshal(data, &stored); err != nil {
		return core.Row{}, fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	doc := stored.Document
	if stored.Size > 0 {
		decompressed := make([]byte, stored.Size)
		n, err := lz4.UncompressBlock(stored.Document, decompressed)
		if err != nil {
			return core.Row{}, fmt.Errorf("failed to decompress document: %w", err)
		}
		doc = decompressed[:n]
	}

	row := core.Row{PK: stored.PK, SK: stored.SK, Data: stored.Data}
	if len(doc) > 0 {
		dec := msgpack.NewDecoder(bytes.NewReader(doc))
		dec.UseLooseInterfaceDecoding(true)
		var document map[string]interface{}
		if err := dec.Decode(&document); err != nil {
			return core.Row{}, fmt.Errorf("failed to decode document: %w", err)
		}
		row.Document = document
	}
	return row, nil
}

// Get retrieves a row by its base table key.
func (b *BoltDriver) Get(ctx context.Context, pk, sk string) (*core.Row, error) {
	if b.closed {
		return nil, fmt.Errorf("%w: bolt driver is closed", core.ErrStorageFailure)
	}

	var row *core.Row
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(rowsBucket).Get(boltRowKey(pk, sk))
		if data == nil {
			return nil
		}
		decoded, err := decodeBoltRow(data)
		if err != nil {
			return err
		}
		row = &decoded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get %s/%s: %v", core.ErrStorageFailure, pk, sk, err)
	}
	return row, nil
}

// Put stores a row and moves its projection entry when the sort value changed.
func (b *BoltDriver) Put(ctx context.Context, row core.Row) error {
	if b.closed {
		return fmt.Errorf("%w: bolt driver is closed", core.ErrStorageFailure)
	}

	encoded, err := b.encode(row)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrEncoding, err)
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		return putBoltRow(tx, row, encoded)
	})
	if err != nil {
		return fmt.Errorf("%w: failed to put %s/%s: %v", core.ErrStorageFailure, row.PK, row.SK, err)
	}
	return nil
}

func putBoltRow(tx *bbolt.Tx, row core.Row, encoded []byte) error {
	rows := tx.Bucket(rowsBucket)
	projection := tx.Bucket(projectionBucket)
	key := boltRowKey(row.PK, row.SK)

	if previous := rows.Get(key); previous != nil {
		old, err := decodeBoltRow(previous)
		if err != nil {
			return err
		}
		if err := projection.Delete(boltProjectionKey(old.SK, old.Data, old.PK)); err != nil {
			return err
		}
	}
	if err := rows.Put(key, encoded); err != nil {
		return err
	}
	return projection.Put(boltProjectionKey(row.SK, row.Data, row.PK), key)
}

// Delete removes a row and its projection entry.
func (b *BoltDriver) Delete(ctx context.Context, pk, sk string) error {
	if b.closed {
		return fmt.Errorf("%w: bolt driver is closed", core.ErrStorageFailure)
	}

	err := b.db.Update(func(tx *bbolt.Tx) error {
		rows := tx.Bucket(rowsBucket)
		key := boltRowKey(pk, sk)
		previous := rows.Get(key)
		if previous == nil {
			return nil
		}
		old, err := decodeBoltRow(previous)
		if err != nil {
			return err
		}
		if err := tx.Bucket(projectionBucket).Delete(boltProjectionKey(old.SK, old.Data, old.PK)); err != nil {
			return err
		}
		return rows.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete %s/%s: %v", core.ErrStorageFailure, pk, sk, err)
	}
	return nil
}

// Scan walks the projection partition backwards, which yields descending (data, pk) order.
func (b *BoltDriver) Scan(ctx context.Context, descriptor core.ScanDescriptor, limit int, exclusiveStart *core.Key) ([]core.Row, *core.Key, error) {
	if b.closed {
		return nil, nil, fmt.Errorf("%w: bolt driver is closed", core.ErrStorageFailure)
	}

	prefix := append([]byte(descriptor.Partition), keySeparator)
	var rows []core.Row
	var next *core.Key

	err := b.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(projectionBucket).Cursor()
		base := tx.Bucket(rowsBucket)

		var k, v []byte
		if exclusiveStart != nil {
			startKey := boltProjectionKey(descriptor.Partition, exclusiveStart.Data, exclusiveStart.PK)
			k, v = cursor.Seek(startKey)
			if k == nil {
				k, v = cursor.Last()
			}
			for k != nil && bytes.Compare(k, startKey) >= 0 {
				k, v = cursor.Prev()
			}
		} else {
			upper := append([]byte(descriptor.Partition), keySeparator+1)
			k, v = cursor.Seek(upper)
			if k == nil {
				k, v = cursor.Last()
			} else {
				k, v = cursor.Prev()
			}
		}

		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Prev() {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, ok := projectionData(k, len(prefix))
			if !ok || !descriptor.Matches(data) {
				continue
			}
			if limit > 0 && len(rows) == limit {
				last := rows[len(rows)-1].Key()
				next = &last
				return nil
			}
			raw := base.Get(v)
			if raw == nil {
				continue
			}
			row, err := decodeBoltRow(raw)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to scan %s: %v", core.ErrStorageFailure, descriptor.Partition, err)
	}
	return rows, next, nil
}

// projectionData extracts the data component of a projection key.
func projectionData(key []byte, prefixLen int) (string, bool) {
	rest := key[prefixLen:]
	idx := bytes.LastIndexByte(rest, keySeparator)
	if idx < 0 {
		return "", false
	}
	return string(rest[:idx]), true
}

// AtomicIncrement adds delta to a document field inside one bbolt write transaction.
func (b *BoltDriver) AtomicIncrement(ctx context.Context, key core.Key, field string, delta float64) (float64, error) {
	if b.closed {
		return 0, fmt.Errorf("%w: bolt driver is closed", core.ErrStorageFailure)
	}

	var next float64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		row := core.Row{PK: key.PK, SK: key.SK, Data: key.Data}
		if raw := tx.Bucket(rowsBucket).Get(boltRowKey(key.PK, key.SK)); raw != nil {
			decoded, err := decodeBoltRow(raw)
			if err != nil {
				return err
			}
			row = decoded
		}
		if row.Document == nil {
			row.Document = map[string]interface{}{}
		}

		current := 0.0
		if raw, exists := row.Document[field]; exists {
			v, ok := core.ToFloat(raw)
			if !ok {
				return fmt.Errorf("field %s of %s is not numeric", field, key.PK)
			}
			current = v
		}
		next = current + delta
		row.Document[field] = next

		encoded, err := b.encode(row)
		if err != nil {
			return err
		}
		return putBoltRow(tx, row, encoded)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to increment %s: %v", core.ErrStorageFailure, key.PK, err)
	}
	return next, nil
}

// Close closes the bbolt file.
func (b *BoltDriver) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// BoltDriverFactory implements the DriverFactory interface for bbolt.
type BoltDriverFactory struct{}

// Type returns the type identifier for this factory.
func (f *BoltDriverFactory) Type() string {
	return "bolt"
}

// Validate validates the bolt-specific configuration.
func (f *BoltDriverFactory) Validate(config DriverConfig) error {
	if config.Type != "bolt" {
		return fmt.Errorf("invalid type for bolt factory: %s", config.Type)
	}
	if config.Path == "" {
		return fmt.Errorf("path is required for bolt")
	}
	return nil
}

// Create creates a new bolt driver based on the provided configuration.
func (f *BoltDriverFactory) Create(config DriverConfig) (core.StorageDriver, error) {
	driver, err := NewBoltDriver(config.Path, config.Compress, config.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create bolt driver: %w", err)
	}
	return driver, nil
}

// BoltConfigValidator implements the ConfigValidator interface for bbolt.
type BoltConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *BoltConfigValidator) Type() string {
	return "bolt"
}

// Validate validates the bolt section of the internal config.
func (v *BoltConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.Storage.Type != "bolt" {
		return fmt.Errorf("invalid type for bolt validator: %s", config.Storage.Type)
	}
	if config.Storage.BoltConfig.Path == "" {
		return fmt.Errorf("bolt_config.path is required for bolt")
	}
	return nil
}

func init() {
	RegisterFactory(&BoltDriverFactory{})
	registry.RegisterValidator(&BoltConfigValidator{})
}
