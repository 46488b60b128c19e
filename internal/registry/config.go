package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigValidator is the Strategy interface for validating configuration.
// Each storage backend (DynamoDB, bolt, memory) provides its own validator to validate
// backend-specific configuration using the Strategy pattern.
type ConfigValidator interface {
	// Validate validates the internal configuration for this storage type.
	// It should validate only the storage-specific configuration.
	Validate(config *InternalConfig) error

	// Type returns the type identifier for this validator (e.g., "dynamodb", "bolt").
	Type() string
}

var (
	// validatorRegistry stores all registered config validators.
	validatorRegistry = make(map[string]ConfigValidator)

	// validatorRegistryMutex protects the validator registry from concurrent access.
	validatorRegistryMutex sync.RWMutex
)

// ValidationStrategyRegistry provides methods to register and retrieve config validators.
// This implements the Strategy pattern for configuration validation.
type ValidationStrategyRegistry struct{}

// RegisterValidator registers a config validator.
// This is called automatically by each implementation's init() function.
// Panics if validator is nil, type is empty, or type is already registered.
func (r *ValidationStrategyRegistry) Register(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" {
		panic("validator type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	if _, exists := validatorRegistry[validator.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", validator.Type()))
	}

	validatorRegistry[validator.Type()] = validator
}

// Get retrieves a validator by type.
// Returns the validator and true if found, nil and false otherwise.
func (r *ValidationStrategyRegistry) Get(validatorType string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	validator, exists := validatorRegistry[validatorType]
	return validator, exists
}

// RegisterValidator is a convenience function to register a validator using the default registry.
// This is the preferred way to register validators from init() functions.
func RegisterValidator(validator ConfigValidator) {
	defaultValidationRegistry.Register(validator)
}

// GetValidator is a convenience function to retrieve a validator by type using the default registry.
func GetValidator(validatorType string) (ConfigValidator, bool) {
	return defaultValidationRegistry.Get(validatorType)
}

// defaultValidationRegistry is the default instance of ValidationStrategyRegistry.
var defaultValidationRegistry = &ValidationStrategyRegistry{}

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *InternalConfig
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: defaultInternalConfig(),
	}
}

// defaultInternalConfig returns a configuration with sensible defaults.
func defaultInternalConfig() *InternalConfig {
	return &InternalConfig{
		Storage: InternalStorageConfig{
			Type: "memory",
			DynamoDBConfig: InternalDynamoDBConfig{
				Region:    "eu-west-1",
				TableName: "dynamoplus",
			},
			BoltConfig: InternalBoltConfig{
				Path: "dynamoplus.db",
			},
			RateLimit: InternalRateLimitConfig{
				Enabled:      false,
				OpsPerSecond: 100,
				Burst:        20,
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Catalog: InternalCatalogConfig{
			Type: "memory",
			Database: InternalDatabaseConfig{
				Host:              "localhost",
				Port:              3306,
				MaxOpenConns:      25,
				MaxIdleConns:      5,
				ConnMaxLifetime:   5 * time.Minute,
				ConnMaxIdleTime:   10 * time.Minute,
				ConnectionTimeout: 10 * time.Second,
			},
			Cache: InternalCacheConfig{
				Enabled: false,
				Redis:   defaultRedisConfig(),
				TTL:     5 * time.Minute,
			},
		},
		Indexing: InternalIndexingConfig{
			Mode:             "sync",
			BatchSize:        100,
			DrainRate:        50, // Default: 50 events per second applied to the projection
			MaxRetries:       5,
			RetryBackoffBase: 1 * time.Second,
			RetryBackoffMax:  30 * time.Second,
			QueueType:        "",
			QueueBufferSize:  10000,
			RedisConfig:      defaultRedisConfig(),
			RedisQueueKey:    "dynamoplus:changes",
			KafkaConfig: InternalKafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "dynamoplus-changes",
				GroupID:         "dynamoplus-indexer",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1,      // All replicas
				MaxMessageBytes: 1000000, // 1MB
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024, // 10MB
				MaxWait:         100 * time.Millisecond,
			},
		},
		Query: InternalQueryConfig{
			UnifiedRangeJoin: false,
			DefaultLimit:     20,
			MaxLimit:         1000,
		},
		Server: InternalServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

func defaultRedisConfig() InternalRedisConfig {
	return InternalRedisConfig{
		Endpoints:    []string{"localhost:6379"},
		ClusterMode:  false,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := defaultInternalConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// LoadFromJSON loads configuration from JSON data.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := defaultInternalConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables follow the pattern: DYNAMOPLUS_<SECTION>_<KEY>
// Examples:
//   - DYNAMOPLUS_STORAGE_TYPE=dynamodb
//   - DYNAMOPLUS_STORAGE_TABLE_NAME=dynamoplus
//   - DYNAMOPLUS_CATALOG_TYPE=table
//   - DYNAMOPLUS_INDEXING_MODE=async
//   - DYNAMOPLUS_SERVER_ADDRESS=:8080
func (cm *ConfigManager) LoadFromEnv() error {
	config := defaultInternalConfig()

	// Storage configuration
	if val := os.Getenv("DYNAMOPLUS_STORAGE_TYPE"); val != "" {
		config.Storage.Type = val
	}
	if val := os.Getenv("DYNAMOPLUS_STORAGE_REGION"); val != "" {
		config.Storage.DynamoDBConfig.Region = val
	}
	if val := os.Getenv("DYNAMOPLUS_STORAGE_TABLE_NAME"); val != "" {
		config.Storage.DynamoDBConfig.TableName = val
	}
	if val := os.Getenv("DYNAMOPLUS_STORAGE_ENDPOINT"); val != "" {
		config.Storage.DynamoDBConfig.Endpoint = val
	}
	if val := os.Getenv("DYNAMOPLUS_STORAGE_ACCESS_KEY_ID"); val != "" {
		config.Storage.DynamoDBConfig.AccessKeyID = val
	}
	if val := os.Getenv("DYNAMOPLUS_STORAGE_SECRET_ACCESS_KEY"); val != "" {
		config.Storage.DynamoDBConfig.SecretAccessKey = val
	}
	if val := os.Getenv("DYNAMOPLUS_STORAGE_CREATE_TABLE"); val != "" {
		config.Storage.DynamoDBConfig.CreateTable = (val == "true" || val == "1")
	}
	if val := os.Getenv("DYNAMOPLUS_STORAGE_BOLT_PATH"); val != "" {
		config.Storage.BoltConfig.Path = val
	}
	if val := os.Getenv("DYNAMOPLUS_STORAGE_BOLT_COMPRESS"); val != "" {
		config.Storage.BoltConfig.Compress = (val == "true" || val == "1")
	}
	if val := os.Getenv("DYNAMOPLUS_STORAGE_RATE_LIMIT"); val != "" {
		var ops int
		if _, err := fmt.Sscanf(val, "%d", &ops); err == nil {
			config.Storage.RateLimit.Enabled = ops > 0
			config.Storage.RateLimit.OpsPerSecond = ops
		}
	}

	// Catalog configuration
	if val := os.Getenv("DYNAMOPLUS_CATALOG_TYPE"); val != "" {
		config.Catalog.Type = val
	}
	if val := os.Getenv("DYNAMOPLUS_CATALOG_DATABASE_HOST"); val != "" {
		config.Catalog.Database.Host = val
	}
	if val := os.Getenv("DYNAMOPLUS_CATALOG_DATABASE_PORT"); val != "" {
		var port int
		if _, err := fmt.Sscanf(val, "%d", &port); err == nil {
			config.Catalog.Database.Port = port
		}
	}
	if val := os.Getenv("DYNAMOPLUS_CATALOG_DATABASE_DATABASE"); val != "" {
		config.Catalog.Database.Database = val
	}
	if val := os.Getenv("DYNAMOPLUS_CATALOG_DATABASE_USERNAME"); val != "" {
		config.Catalog.Database.Username = val
	}
	if val := os.Getenv("DYNAMOPLUS_CATALOG_DATABASE_PASSWORD"); val != "" {
		config.Catalog.Database.Password = val
	}
	if val := os.Getenv("DYNAMOPLUS_CATALOG_CACHE_ENABLED"); val != "" {
		config.Catalog.Cache.Enabled = (val == "true" || val == "1")
	}
	if val := os.Getenv("DYNAMOPLUS_CATALOG_CACHE_ENDPOINTS"); val != "" {
		config.Catalog.Cache.Redis.Endpoints = strings.Split(val, ",")
	}
	if val := os.Getenv("DYNAMOPLUS_CATALOG_CACHE_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil {
			config.Catalog.Cache.TTL = ttl
		}
	}

	// Indexing configuration
	if val := os.Getenv("DYNAMOPLUS_INDEXING_MODE"); val != "" {
		config.Indexing.Mode = val
	}
	if val := os.Getenv("DYNAMOPLUS_INDEXING_BATCH_SIZE"); val != "" {
		var batchSize int
		if _, err := fmt.Sscanf(val, "%d", &batchSize); err == nil {
			config.Indexing.BatchSize = batchSize
		}
	}
	if val := os.Getenv("DYNAMOPLUS_INDEXING_DRAIN_RATE"); val != "" {
		var drainRate int
		if _, err := fmt.Sscanf(val, "%d", &drainRate); err == nil {
			config.Indexing.DrainRate = drainRate
		}
	}
	if val := os.Getenv("DYNAMOPLUS_INDEXING_MAX_RETRIES"); val != "" {
		var maxRetries int
		if _, err := fmt.Sscanf(val, "%d", &maxRetries); err == nil {
			config.Indexing.MaxRetries = maxRetries
		}
	}
	if val := os.Getenv("DYNAMOPLUS_INDEXING_QUEUE_TYPE"); val != "" {
		config.Indexing.QueueType = val
	}
	if val := os.Getenv("DYNAMOPLUS_INDEXING_REDIS_ENDPOINTS"); val != "" {
		config.Indexing.RedisConfig.Endpoints = strings.Split(val, ",")
	}
	if val := os.Getenv("DYNAMOPLUS_INDEXING_KAFKA_BROKERS"); val != "" {
		config.Indexing.KafkaConfig.Brokers = strings.Split(val, ",")
	}
	if val := os.Getenv("DYNAMOPLUS_INDEXING_KAFKA_TOPIC"); val != "" {
		config.Indexing.KafkaConfig.Topic = val
	}

	// Query configuration
	if val := os.Getenv("DYNAMOPLUS_QUERY_UNIFIED_RANGE_JOIN"); val != "" {
		config.Query.UnifiedRangeJoin = (val == "true" || val == "1")
	}
	if val := os.Getenv("DYNAMOPLUS_QUERY_DEFAULT_LIMIT"); val != "" {
		var limit int
		if _, err := fmt.Sscanf(val, "%d", &limit); err == nil {
			config.Query.DefaultLimit = limit
		}
	}

	// Server configuration
	if val := os.Getenv("DYNAMOPLUS_SERVER_ADDRESS"); val != "" {
		config.Server.Address = val
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// GetConfig returns the current internal configuration.
func (cm *ConfigManager) GetConfig() *InternalConfig {
	return cm.config
}

// validateConfig validates the configuration and returns an error if invalid.
// Storage validation is delegated to the validator registered for the storage type.
func (cm *ConfigManager) validateConfig(config *InternalConfig) error {
	if config.Storage.Type == "" {
		return fmt.Errorf("storage.type is required")
	}

	validator, exists := GetValidator(config.Storage.Type)
	if !exists {
		return fmt.Errorf("unsupported storage type: %s", config.Storage.Type)
	}
	if err := validator.Validate(config); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}

	if config.Storage.RateLimit.Enabled && config.Storage.RateLimit.OpsPerSecond <= 0 {
		return fmt.Errorf("storage.rate_limit.ops_per_second must be greater than 0")
	}

	// Catalog configuration
	switch config.Catalog.Type {
	case "memory", "table":
	case "mysql":
		if config.Catalog.Database.Host == "" {
			return fmt.Errorf("catalog.database.host is required")
		}
		if config.Catalog.Database.Port <= 0 || config.Catalog.Database.Port > 65535 {
			return fmt.Errorf("catalog.database.port must be between 1 and 65535")
		}
		if config.Catalog.Database.Database == "" {
			return fmt.Errorf("catalog.database.database is required")
		}
		if config.Catalog.Database.Username == "" {
			return fmt.Errorf("catalog.database.username is required")
		}
		if config.Catalog.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("catalog.database.max_open_conns must be greater than 0")
		}
	default:
		return fmt.Errorf("catalog.type must be 'memory', 'table', or 'mysql'")
	}
	if config.Catalog.Cache.Enabled {
		if len(config.Catalog.Cache.Redis.Endpoints) == 0 {
			return fmt.Errorf("catalog.cache.redis.endpoints is required when the cache is enabled")
		}
		if config.Catalog.Cache.TTL <= 0 {
			return fmt.Errorf("catalog.cache.ttl must be greater than 0")
		}
	}

	// Indexing configuration
	if config.Indexing.Mode != "sync" && config.Indexing.Mode != "async" {
		return fmt.Errorf("indexing.mode must be 'sync' or 'async'")
	}
	if config.Indexing.QueueType != "" && config.Indexing.QueueType != "memory" && config.Indexing.QueueType != "redis" && config.Indexing.QueueType != "kafka" {
		return fmt.Errorf("indexing.queue_type must be 'memory', 'redis', or 'kafka'")
	}
	if config.Indexing.Mode == "async" {
		if config.Indexing.QueueType == "" {
			return fmt.Errorf("indexing.queue_type is required when indexing.mode is 'async'")
		}
		if config.Indexing.BatchSize <= 0 {
			return fmt.Errorf("indexing.batch_size must be greater than 0")
		}
		if config.Indexing.DrainRate <= 0 {
			return fmt.Errorf("indexing.drain_rate must be greater than 0")
		}
		if config.Indexing.MaxRetries < 0 {
			return fmt.Errorf("indexing.max_retries must be non-negative")
		}
	}
	if config.Indexing.QueueType == "redis" && len(config.Indexing.RedisConfig.Endpoints) == 0 {
		return fmt.Errorf("indexing.redis_config.endpoints is required when queue_type is 'redis'")
	}
	if config.Indexing.QueueType == "kafka" {
		if len(config.Indexing.KafkaConfig.Brokers) == 0 {
			return fmt.Errorf("kafka_config.brokers is required when queue_type is 'kafka'")
		}
		if config.Indexing.KafkaConfig.Topic == "" {
			return fmt.Errorf("kafka_config.topic is required when queue_type is 'kafka'")
		}
	}

	// Query configuration
	if config.Query.DefaultLimit <= 0 {
		return fmt.Errorf("query.default_limit must be greater than 0")
	}
	if config.Query.MaxLimit < config.Query.DefaultLimit {
		return fmt.Errorf("query.max_limit must be >= query.default_limit")
	}

	return nil
}
