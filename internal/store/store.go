package store

import (
	"fmt"
	"log"

	"github.com/rzpsarthak13/dynamoplus/internal/aggregation"
	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/indexing"
	"github.com/rzpsarthak13/dynamoplus/internal/query"
	"github.com/rzpsarthak13/dynamoplus/internal/registry"
)

// Indexing modes.
const (
	// ModeSync maintains indexes and aggregations inside the write call.
	ModeSync = "sync"

	// ModeAsync writes the primary row and leaves the rest to a change queue consumer.
	ModeAsync = "async"
)

// Options configures a Store.
type Options struct {
	// Mode is ModeSync or ModeAsync. Empty means ModeSync.
	Mode string

	// Queue receives a change event for every write. It is required in async mode and
	// serves as an outbound change feed in sync mode.
	Queue core.ChangeQueue

	// Validator gates payloads before they are written. Defaults to AttributeValidator.
	Validator core.SchemaValidator

	// Compiler options for queries.
	Compiler query.CompilerOptions

	DefaultLimit int
	MaxLimit     int
}

// Store orchestrates documents, their index rows and aggregations over one storage driver.
type Store struct {
	driver       core.StorageDriver
	catalog      core.Catalog
	maintainer   *indexing.Maintainer
	aggregations *aggregation.Engine
	compiler     *query.Compiler
	validator    core.SchemaValidator
	queue        core.ChangeQueue
	async        bool
	lifecycle    *registry.LifecycleManager
	defaultLimit int
	maxLimit     int
}

// New creates a store. Index creation backfills existing documents and index deletion
// removes index rows through lifecycle hooks registered here.
func New(driver core.StorageDriver, catalog core.Catalog, opts Options) (*Store, error) {
	if driver == nil {
		return nil, fmt.Errorf("storage driver cannot be nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}

	s := &Store{
		driver:       driver,
		catalog:      catalog,
		maintainer:   indexing.NewMaintainer(driver),
		aggregations: aggregation.NewEngine(driver),
		compiler:     query.NewCompiler(opts.Compiler),
		validator:    opts.Validator,
		queue:        opts.Queue,
		lifecycle:    registry.NewLifecycleManager(),
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
	}

	switch opts.Mode {
	case "", ModeSync:
	case ModeAsync:
		if opts.Queue == nil {
			return nil, fmt.Errorf("async indexing requires a change queue")
		}
		s.async = true
	default:
		return nil, fmt.Errorf("unsupported indexing mode: %s", opts.Mode)
	}

	if s.validator == nil {
		s.validator = NewAttributeValidator()
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = 20
	}
	if s.maxLimit < s.defaultLimit {
		s.maxLimit = s.defaultLimit
	}

	s.lifecycle.RegisterHook(registry.IndexHookFunc{
		OnCreateFunc: s.backfillIndex,
		OnDropFunc:   s.dropIndexRows,
	})
	return s, nil
}

// Lifecycle returns the index lifecycle manager, to which callers may add their own hooks.
func (s *Store) Lifecycle() *registry.LifecycleManager {
	return s.lifecycle
}

// Catalog returns the catalog the store resolves collections through.
func (s *Store) Catalog() core.Catalog {
	return s.catalog
}

// Async reports whether index maintenance is left to a change queue consumer.
func (s *Store) Async() bool {
	return s.async
}

// Close releases the change queue and the storage driver.
func (s *Store) Close() error {
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			log.Printf("[STORE] ERROR: Failed to close change queue: %v", err)
		}
	}
	return s.driver.Close()
}
