package client

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/rzpsarthak13/dynamoplus/internal/catalog"
	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/kvstore"
	"github.com/rzpsarthak13/dynamoplus/internal/query"
	"github.com/rzpsarthak13/dynamoplus/internal/registry"
	"github.com/rzpsarthak13/dynamoplus/internal/store"
	"github.com/rzpsarthak13/dynamoplus/internal/stream"
)

// ConfigProvider is an interface to provide configuration as YAML without importing the public package.
type ConfigProvider interface {
	GetYAML() ([]byte, error)
}

// ClientImpl assembles a Store from configuration: the storage driver, the catalog
// (optionally fronted by the Redis cache) and the change queue.
type ClientImpl struct {
	mu        sync.RWMutex
	configMgr *registry.ConfigManager
	driver    core.StorageDriver
	catalog   core.Catalog
	queue     core.ChangeQueue
	store     *store.Store
	closers   []io.Closer
	closed    bool
}

// NewClientImpl creates a client from the YAML handed out by the provider.
// It accepts a config provider to avoid import cycles.
func NewClientImpl(configProvider ConfigProvider) (*ClientImpl, error) {
	if configProvider == nil {
		return nil, fmt.Errorf("config provider cannot be nil")
	}

	configMgr := registry.NewConfigManager()
	yamlData, err := configProvider.GetYAML()
	if err != nil {
		return nil, fmt.Errorf("failed to get config YAML: %w", err)
	}
	if err := configMgr.LoadFromYAML(yamlData); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewFromManager(configMgr)
}

// NewFromManager creates a client from an already loaded configuration.
func NewFromManager(configMgr *registry.ConfigManager) (*ClientImpl, error) {
	if configMgr == nil || configMgr.GetConfig() == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}

	c := &ClientImpl{configMgr: configMgr}
	if err := c.initializeConnections(); err != nil {
		c.release()
		return nil, fmt.Errorf("failed to initialize connections: %w", err)
	}
	return c, nil
}

// initializeConnections builds the driver, the catalog, the queue and the store, in that order.
func (c *ClientImpl) initializeConnections() error {
	config := c.configMgr.GetConfig()

	driver, err := kvstore.Create(driverConfig(config.Storage))
	if err != nil {
		return fmt.Errorf("failed to create storage driver: %w", err)
	}
	c.driver = driver
	log.Printf("[CLIENT] Storage driver %s ready", config.Storage.Type)

	cat, err := c.newCatalog(config.Catalog)
	if err != nil {
		return err
	}
	c.catalog = cat

	queue, err := c.newQueue(config.Indexing)
	if err != nil {
		return err
	}
	c.queue = queue

	s, err := store.New(driver, cat, store.Options{
		Mode:         config.Indexing.Mode,
		Queue:        queue,
		Compiler:     query.CompilerOptions{UnifiedRangeJoin: config.Query.UnifiedRangeJoin},
		DefaultLimit: config.Query.DefaultLimit,
		MaxLimit:     config.Query.MaxLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	c.store = s
	return nil
}

func driverConfig(storage registry.InternalStorageConfig) kvstore.DriverConfig {
	cfg := kvstore.DriverConfig{
		Type:            storage.Type,
		DialTimeout:     storage.DialTimeout,
		Region:          storage.DynamoDBConfig.Region,
		TableName:       storage.DynamoDBConfig.TableName,
		Endpoint:        storage.DynamoDBConfig.Endpoint,
		AccessKeyID:     storage.DynamoDBConfig.AccessKeyID,
		SecretAccessKey: storage.DynamoDBConfig.SecretAccessKey,
		CreateTable:     storage.DynamoDBConfig.CreateTable,
		Path:            storage.BoltConfig.Path,
		Compress:        storage.BoltConfig.Compress,
	}
	if storage.RateLimit.Enabled {
		cfg.RateLimit = storage.RateLimit.OpsPerSecond
		cfg.Burst = storage.RateLimit.Burst
	}
	return cfg
}

func redisConfig(redis registry.InternalRedisConfig) kvstore.RedisConfig {
	if redis.ClusterMode {
		log.Printf("[CLIENT] WARNING: Redis cluster mode is not supported, using the first endpoint")
	}
	return kvstore.RedisConfig{
		Endpoints:    redis.Endpoints,
		Password:     redis.Password,
		DB:           redis.DB,
		PoolSize:     redis.PoolSize,
		MinIdleConns: redis.MinIdleConns,
		DialTimeout:  redis.DialTimeout,
		ReadTimeout:  redis.ReadTimeout,
		WriteTimeout: redis.WriteTimeout,
	}
}

func (c *ClientImpl) newCatalog(config registry.InternalCatalogConfig) (core.Catalog, error) {
	var cat core.Catalog
	switch strings.ToLower(config.Type) {
	case "", "memory":
		cat = registry.NewCollectionRegistry()
	case "table":
		cat = catalog.NewTableCatalog(c.driver)
	case "mysql":
		db := config.Database
		m, err := catalog.NewMySQLCatalog(catalog.MySQLConfig{
			Host:              db.Host,
			Port:              db.Port,
			Database:          db.Database,
			Username:          db.Username,
			Password:          db.Password,
			MaxOpenConns:      db.MaxOpenConns,
			MaxIdleConns:      db.MaxIdleConns,
			ConnMaxLifetime:   db.ConnMaxLifetime,
			ConnMaxIdleTime:   db.ConnMaxIdleTime,
			ConnectionTimeout: db.ConnectionTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create catalog database: %w", err)
		}
		c.closers = append(c.closers, m)
		cat = m
	default:
		return nil, fmt.Errorf("unsupported catalog type: %s", config.Type)
	}
	log.Printf("[CLIENT] Catalog %s ready", config.Type)

	if !config.Cache.Enabled {
		return cat, nil
	}
	cache, err := kvstore.NewRedisStore(redisConfig(config.Cache.Redis))
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}
	c.closers = append(c.closers, cache)
	log.Printf("[CLIENT] Catalog cache enabled (ttl: %v)", config.Cache.TTL)
	return catalog.NewCachedCatalog(cat, cache, config.Cache.TTL), nil
}

// newQueue creates the change queue. Sync mode only gets one when a queue type is configured
// explicitly, in which case it serves as the outbound change feed.
func (c *ClientImpl) newQueue(config registry.InternalIndexingConfig) (core.ChangeQueue, error) {
	if config.Mode != store.ModeAsync && config.QueueType == "" {
		return nil, nil
	}

	switch strings.ToLower(config.QueueType) {
	case "", "memory":
		return stream.NewMemoryQueue(config.QueueBufferSize), nil
	case "redis":
		redis, err := kvstore.NewRedisStore(redisConfig(config.RedisConfig))
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis change queue: %w", err)
		}
		c.closers = append(c.closers, redis)
		return stream.NewRedisQueue(redis, config.RedisQueueKey), nil
	case "kafka":
		k := config.KafkaConfig
		q, err := stream.NewKafkaQueue(stream.KafkaQueueConfig{
			Brokers:         k.Brokers,
			Topic:           k.Topic,
			GroupID:         k.GroupID,
			BatchSize:       k.BatchSize,
			BatchTimeout:    k.BatchTimeout,
			WriteTimeout:    k.WriteTimeout,
			ReadTimeout:     k.ReadTimeout,
			RequiredAcks:    k.RequiredAcks,
			MaxMessageBytes: k.MaxMessageBytes,
			MinBytes:        k.MinBytes,
			MaxBytes:        k.MaxBytes,
			MaxWait:         k.MaxWait,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka change queue: %w", err)
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unsupported queue type: %s", config.QueueType)
	}
}

// Store returns the assembled store.
func (c *ClientImpl) Store() *store.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

// Queue returns the change queue, or nil when none is configured.
func (c *ClientImpl) Queue() core.ChangeQueue {
	return c.queue
}

// Config returns the loaded configuration.
func (c *ClientImpl) Config() *registry.InternalConfig {
	return c.configMgr.GetConfig()
}

// Close closes the store (queue and driver) and every connection opened for the catalog and queue.
func (c *ClientImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.release()
}

func (c *ClientImpl) release() error {
	var errs []error
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	} else {
		if c.queue != nil {
			if err := c.queue.Close(); err != nil {
				errs = append(errs, fmt.Errorf("queue: %w", err))
			}
		}
		if c.driver != nil {
			if err := c.driver.Close(); err != nil {
				errs = append(errs, fmt.Errorf("driver: %w", err))
			}
		}
	}
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
