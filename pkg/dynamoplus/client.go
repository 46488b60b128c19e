package dynamoplus

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/dynamoplus/internal/api"
	"github.com/rzpsarthak13/dynamoplus/internal/client"
	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/registry"
	"github.com/rzpsarthak13/dynamoplus/internal/store"
)

// Types of the document model.
type (
	Collection               = core.Collection
	Attribute                = core.Attribute
	Index                    = core.Index
	Record                   = core.Record
	Condition                = core.Condition
	AggregationConfiguration = core.AggregationConfiguration
	Aggregation              = core.Aggregation
	QueryResult              = store.QueryResult
)

// Client is the main interface of a dynamoplus document store.
type Client interface {
	// CreateCollection registers a collection.
	CreateCollection(ctx context.Context, collection Collection) (*Collection, error)

	// GetCollection returns the metadata of a collection.
	GetCollection(ctx context.Context, name string) (*Collection, error)

	// DeleteCollection removes a collection together with its indexes and aggregation configurations.
	DeleteCollection(ctx context.Context, name string) error

	// CreateIndex declares an index and backfills it from existing documents.
	// Declaring the same conditions twice returns the existing index.
	CreateIndex(ctx context.Context, index Index) (*Index, error)

	// DeleteIndex removes an index and its rows.
	DeleteIndex(ctx context.Context, id string) error

	// CreateAggregation declares an aggregation maintained from the next write on.
	CreateAggregation(ctx context.Context, config AggregationConfiguration) (*AggregationConfiguration, error)

	// GetAggregation reads a materialized aggregation, e.g. count_orders_count.
	GetAggregation(ctx context.Context, name string) (*Aggregation, error)

	Create(ctx context.Context, collection string, document map[string]interface{}) (*Record, error)
	Get(ctx context.Context, collection, id string) (*Record, error)
	Update(ctx context.Context, collection, id string, document map[string]interface{}) (*Record, error)
	Delete(ctx context.Context, collection, id string) error

	// Query returns one page of the documents matching condition. startFrom is the
	// LastKey of the previous page.
	Query(ctx context.Context, collection string, condition Condition, limit int, startFrom string) (*QueryResult, error)

	// Handler returns the HTTP API of the store.
	Handler() http.Handler

	// Start starts the async indexing drainer. It is a no-op in sync mode.
	Start(ctx context.Context) error

	// Stop stops the drainer.
	Stop() error

	// IsRunning returns whether the drainer is running.
	IsRunning() bool

	// Close stops the drainer and releases every connection.
	Close() error
}

// configProvider implements client.ConfigProvider interface.
type configProvider struct {
	config *Config
}

// GetYAML returns the configuration as YAML.
func (cp *configProvider) GetYAML() ([]byte, error) {
	return yaml.Marshal(cp.config)
}

type clientWrapper struct {
	*store.Store

	mu      sync.Mutex
	impl    *client.ClientImpl
	drainer *Drainer
	started bool
}

// NewClient creates a client from config.
func NewClient(config *Config) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	impl, err := client.NewClientImpl(&configProvider{config: config})
	if err != nil {
		return nil, err
	}
	return wrap(impl), nil
}

// NewClientFromFile creates a client from a YAML or JSON configuration file.
func NewClientFromFile(path string) (Client, error) {
	configMgr := registry.NewConfigManager()
	if err := configMgr.LoadFromFile(path); err != nil {
		return nil, err
	}
	impl, err := client.NewFromManager(configMgr)
	if err != nil {
		return nil, err
	}
	return wrap(impl), nil
}

// NewClientFromEnv creates a client configured by DYNAMOPLUS_* environment variables.
func NewClientFromEnv() (Client, error) {
	configMgr := registry.NewConfigManager()
	if err := configMgr.LoadFromEnv(); err != nil {
		return nil, err
	}
	impl, err := client.NewFromManager(configMgr)
	if err != nil {
		return nil, err
	}
	return wrap(impl), nil
}

func wrap(impl *client.ClientImpl) *clientWrapper {
	cw := &clientWrapper{
		Store: impl.Store(),
		impl:  impl,
	}
	if cw.Store.Async() {
		indexing := impl.Config().Indexing
		cw.drainer = NewDrainer("changes", impl.Queue(), cw.Store, DrainerConfig{
			DrainRate:       indexing.DrainRate,
			BatchSize:       indexing.BatchSize,
			MaxRetries:      indexing.MaxRetries,
			RetryBackoff:    indexing.RetryBackoffBase,
			RetryBackoffMax: indexing.RetryBackoffMax,
		})
	}
	return cw
}

func (cw *clientWrapper) CreateAggregation(ctx context.Context, config AggregationConfiguration) (*AggregationConfiguration, error) {
	return cw.Store.CreateAggregationConfiguration(ctx, config)
}

func (cw *clientWrapper) Handler() http.Handler {
	return api.NewHandler(cw.Store).Router()
}

func (cw *clientWrapper) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.started {
		return nil
	}
	if cw.drainer != nil {
		if err := cw.drainer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start drainer: %w", err)
		}
	}
	cw.started = true
	return nil
}

func (cw *clientWrapper) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.started {
		return nil
	}
	if cw.drainer != nil {
		if err := cw.drainer.Stop(); err != nil {
			return fmt.Errorf("failed to stop drainer: %w", err)
		}
	}
	cw.started = false
	return nil
}

func (cw *clientWrapper) IsRunning() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.started
}

func (cw *clientWrapper) Close() error {
	if err := cw.Stop(); err != nil {
		return err
	}
	return cw.impl.Close()
}
