package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// MySQLConfig holds the connection settings of the MySQL catalog.
type MySQLConfig struct {
	Host              string
	Port              int
	Database          string
	Username          string
	Password          string
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	ConnMaxIdleTime   time.Duration
	ConnectionTimeout time.Duration
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS dynamoplus_collections (
		name VARCHAR(255) NOT NULL PRIMARY KEY,
		definition JSON NOT NULL,
		created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	)`,
	`CREATE TABLE IF NOT EXISTS dynamoplus_indexes (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		collection VARCHAR(255) NOT NULL,
		name VARCHAR(1024) NOT NULL,
		definition JSON NOT NULL,
		INDEX idx_indexes_collection (collection)
	)`,
	`CREATE TABLE IF NOT EXISTS dynamoplus_aggregations (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		collection VARCHAR(255) NOT NULL,
		name VARCHAR(1024) NOT NULL,
		definition JSON NOT NULL,
		INDEX idx_aggregations_collection (collection)
	)`,
}

// MySQLCatalog stores definitions as JSON documents in MySQL tables.
type MySQLCatalog struct {
	db     *sql.DB
	closed bool
}

// NewMySQLCatalog opens the database, checks the connection and creates the catalog tables.
func NewMySQLCatalog(config MySQLConfig) (*MySQLCatalog, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%s",
		config.Username, config.Password, config.Host, config.Port, config.Database, config.ConnectionTimeout)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c := NewMySQLCatalogWithDB(db)
	if err := c.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewMySQLCatalogWithDB wraps an open database handle.
func NewMySQLCatalogWithDB(db *sql.DB) *MySQLCatalog {
	return &MySQLCatalog{db: db}
}

// Migrate creates the catalog tables when they are missing.
func (m *MySQLCatalog) Migrate(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create catalog tables: %w", err)
		}
	}
	return nil
}

func (m *MySQLCatalog) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if m.closed {
		return nil, fmt.Errorf("catalog is closed")
	}
	log.Printf("[MYSQL] Executing statement: %s", query)
	result, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Printf("[MYSQL] ERROR: Exec failed: %v", err)
		return nil, fmt.Errorf("%w: failed to execute statement: %v", core.ErrStorageFailure, err)
	}
	return result, nil
}

// definitions runs a query selecting one JSON definition column.
func (m *MySQLCatalog) definitions(ctx context.Context, query string, args ...interface{}) ([][]byte, error) {
	if m.closed {
		return nil, fmt.Errorf("catalog is closed")
	}
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Printf("[MYSQL] ERROR: Query failed: %v", err)
		return nil, fmt.Errorf("%w: failed to execute query: %v", core.ErrStorageFailure, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var definition []byte
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		out = append(out, definition)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}
	return out, nil
}

func (m *MySQLCatalog) definition(ctx context.Context, what, query string, args ...interface{}) ([]byte, error) {
	if m.closed {
		return nil, fmt.Errorf("catalog is closed")
	}
	var definition []byte
	err := m.db.QueryRowContext(ctx, query, args...).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", core.ErrStorageFailure, what, err)
	}
	return definition, nil
}

func decodeJSON(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: failed to decode definition: %v", core.ErrEncoding, err)
	}
	return nil
}

// CreateCollection stores collection metadata, replacing an existing definition.
func (m *MySQLCatalog) CreateCollection(ctx context.Context, collection core.Collection) (*core.Collection, error) {
	if err := core.ValidateCollectionName(collection.Name); err != nil {
		return nil, err
	}
	if collection.IDKey == "" {
		return nil, fmt.Errorf("%w: collection %q requires an id key", core.ErrInvalidRecord, collection.Name)
	}
	definition, err := json.Marshal(collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEncoding, err)
	}
	_, err = m.exec(ctx,
		`INSERT INTO dynamoplus_collections (name, definition) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE definition = VALUES(definition)`,
		collection.Name, definition)
	if err != nil {
		return nil, err
	}
	created := collection
	return &created, nil
}

// GetCollection reads collection metadata.
func (m *MySQLCatalog) GetCollection(ctx context.Context, name string) (*core.Collection, error) {
	data, err := m.definition(ctx, fmt.Sprintf("collection %q", name),
		`SELECT definition FROM dynamoplus_collections WHERE name = ?`, name)
	if err != nil {
		return nil, err
	}
	var collection core.Collection
	if err := decodeJSON(data, &collection); err != nil {
		return nil, err
	}
	return &collection, nil
}

// ListCollections returns every collection ordered by name.
func (m *MySQLCatalog) ListCollections(ctx context.Context) ([]core.Collection, error) {
	defs, err := m.definitions(ctx, `SELECT definition FROM dynamoplus_collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	collections := make([]core.Collection, 0, len(defs))
	for _, data := range defs {
		var collection core.Collection
		if err := decodeJSON(data, &collection); err != nil {
			return nil, err
		}
		collections = append(collections, collection)
	}
	return collections, nil
}

// DeleteCollection removes a collection together with its indexes and aggregation configurations.
func (m *MySQLCatalog) DeleteCollection(ctx context.Context, name string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM dynamoplus_collections WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("%w: failed to delete collection: %v", core.ErrStorageFailure, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: collection %q", core.ErrNotFound, name)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dynamoplus_indexes WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("%w: failed to delete indexes: %v", core.ErrStorageFailure, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dynamoplus_aggregations WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("%w: failed to delete aggregations: %v", core.ErrStorageFailure, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateIndex stores an index definition. An index over the same conditions is returned as is.
func (m *MySQLCatalog) CreateIndex(ctx context.Context, index core.Index) (*core.Index, bool, error) {
	if len(index.Conditions) == 0 {
		return nil, false, fmt.Errorf("index on %q requires at least one condition", index.Collection)
	}
	if _, err := m.GetCollection(ctx, index.Collection); err != nil {
		return nil, false, err
	}
	existing, err := m.ListIndexes(ctx, index.Collection)
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
	definition, err := json.Marshal(index)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", core.ErrEncoding, err)
	}
	_, err = m.exec(ctx,
		`INSERT INTO dynamoplus_indexes (id, collection, name, definition) VALUES (?, ?, ?, ?)`,
		index.ID, index.Collection, index.Name(), definition)
	if err != nil {
		return nil, false, err
	}
	created := index
	return &created, true, nil
}

// GetIndex reads an index definition by id.
func (m *MySQLCatalog) GetIndex(ctx context.Context, id string) (*core.Index, error) {
	data, err := m.definition(ctx, fmt.Sprintf("index %q", id),
		`SELECT definition FROM dynamoplus_indexes WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	var index core.Index
	if err := decodeJSON(data, &index); err != nil {
		return nil, err
	}
	return &index, nil
}

// DeleteIndex removes an index definition.
func (m *MySQLCatalog) DeleteIndex(ctx context.Context, id string) error {
	result, err := m.exec(ctx, `DELETE FROM dynamoplus_indexes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: index %q", core.ErrNotFound, id)
	}
	return nil
}

// ListIndexes returns the index definitions of a collection ordered by name.
func (m *MySQLCatalog) ListIndexes(ctx context.Context, collection string) ([]core.Index, error) {
	defs, err := m.definitions(ctx,
		`SELECT definition FROM dynamoplus_indexes WHERE collection = ? ORDER BY name`, collection)
	if err != nil {
		return nil, err
	}
	indexes := make([]core.Index, 0, len(defs))
	for _, data := range defs {
		var index core.Index
		if err := decodeJSON(data, &index); err != nil {
			return nil, err
		}
		indexes = append(indexes, index)
	}
	return indexes, nil
}

// CreateAggregationConfiguration stores an aggregation configuration. A configuration with
// the same name replaces the stored one.
func (m *MySQLCatalog) CreateAggregationConfiguration(ctx context.Context, config core.AggregationConfiguration) (*core.AggregationConfiguration, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if _, err := m.GetCollection(ctx, config.Collection); err != nil {
		return nil, err
	}
	existing, err := m.ListAggregationConfigurations(ctx, config.Collection)
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
	definition, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEncoding, err)
	}
	_, err = m.exec(ctx,
		`INSERT INTO dynamoplus_aggregations (id, collection, name, definition) VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE definition = VALUES(definition)`,
		config.ID, config.Collection, config.Name(), definition)
	if err != nil {
		return nil, err
	}
	created := config
	return &created, nil
}

// ListAggregationConfigurations returns the aggregation configurations of a collection.
func (m *MySQLCatalog) ListAggregationConfigurations(ctx context.Context, collection string) ([]core.AggregationConfiguration, error) {
	defs, err := m.definitions(ctx,
		`SELECT definition FROM dynamoplus_aggregations WHERE collection = ? ORDER BY name`, collection)
	if err != nil {
		return nil, err
	}
	configs := make([]core.AggregationConfiguration, 0, len(defs))
	for _, data := range defs {
		var doc aggregationDocument
		if err := decodeJSON(data, &doc); err != nil {
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

// Close closes the database connection.
func (m *MySQLCatalog) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

var _ core.Catalog = (*MySQLCatalog)(nil)
